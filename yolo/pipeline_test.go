package yolo

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector 按调用次数返回预设的检测结果
type fakeDetector struct {
	calls      int
	detections []Detection
	failOn     map[int]bool
	onCall     func(call int)
}

func (f *fakeDetector) DetectImage(img image.Image) ([]Detection, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall(f.calls)
	}
	if f.failOn[f.calls] {
		return nil, errors.New("inference failed")
	}
	return f.detections, nil
}

type fakeReader struct {
	frames []*image.RGBA
	info   VideoInfo
	pos    int
	closed bool
}

func (r *fakeReader) Read() bool {
	if r.pos >= len(r.frames) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeReader) Frame() *image.RGBA { return r.frames[r.pos-1] }
func (r *fakeReader) Info() VideoInfo    { return r.info }
func (r *fakeReader) Close()             { r.closed = true }

type fakeWriter struct {
	path   string
	info   VideoInfo
	audio  string
	frames []image.Image
	closed bool
}

func (w *fakeWriter) Write(img image.Image) error {
	w.frames = append(w.frames, img)
	return nil
}

func (w *fakeWriter) Close() { w.closed = true }

// steppingClock 每次调用前进 step
func steppingClock(step time.Duration) func() time.Time {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func newTestProcessor(detector Detector, naming NamingStyle) *Processor {
	output := DefaultOutputOptions()
	output.Naming = naming
	p := NewProcessor(detector, DefaultDetectionOptions(), output)
	p.now = steppingClock(100 * time.Millisecond)
	return p
}

func writeTestImage(t *testing.T, path string) {
	t.Helper()
	img := imaging.New(64, 48, color.NRGBA{200, 200, 200, 255})
	require.NoError(t, imaging.Save(img, path))
}

func sampleDetections() []Detection {
	return []Detection{
		{Box: [4]float32{2, 20, 30, 40}, Score: 0.6, Class: "dog"},
		{Box: [4]float32{4, 22, 32, 44}, Score: 0.9, Class: "dog"},
		{Box: [4]float32{34, 20, 60, 40}, Score: 0.7, Class: "cat"},
	}
}

func TestProcessImage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "street.png")
	writeTestImage(t, input)
	outDir := t.TempDir()

	p := newTestProcessor(&fakeDetector{detections: sampleDetections()}, NamePrefixed)
	result, err := p.ProcessImage(context.Background(), input, outDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "processed_street.png"), result.OutputPath)
	assert.Equal(t, []Detection{sampleDetections()[1], sampleDetections()[2]}, result.Detections)
	assert.Equal(t, 100*time.Millisecond, result.Elapsed)
	require.NotNil(t, result.Result)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, result.Result.RGBAAt(4, 22))

	saved, err := imaging.Open(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), saved.Bounds())
}

func TestProcessLogFields(t *testing.T) {
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	input := filepath.Join(t.TempDir(), "street.png")
	writeTestImage(t, input)
	p := newTestProcessor(&fakeDetector{}, NamePrefixed)
	_, err := p.ProcessImage(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	_, _, install := newFakeVideo(2)
	install(p)
	_, err = p.ProcessVideo(context.Background(), "/videos/walk.mp4", "/out", nil)
	require.NoError(t, err)

	timed := 0
	for _, entry := range hook.AllEntries() {
		assert.NotContains(t, entry.Data, "time", "reserved by the text formatter: %s", entry.Message)
		if _, ok := entry.Data["elapsed"]; ok {
			timed++
		}
	}
	assert.Equal(t, 2, timed)
}

func TestProcessImageAllDetections(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "street.png")
	writeTestImage(t, input)

	p := NewProcessor(&fakeDetector{detections: sampleDetections()},
		DefaultDetectionOptions().WithBestPerClass(false), &OutputOptions{Naming: NameSuffixed})
	result, err := p.ProcessImage(context.Background(), input, t.TempDir())

	require.NoError(t, err)
	assert.Len(t, result.Detections, 3)
	assert.Equal(t, "street_result.png", filepath.Base(result.OutputPath))
}

func TestProcessImageErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "street.png")
	writeTestImage(t, input)

	p := newTestProcessor(&fakeDetector{failOn: map[int]bool{1: true}}, NamePrefixed)
	_, err := p.ProcessImage(context.Background(), input, t.TempDir())
	assert.ErrorContains(t, err, "inference failed")

	_, err = p.ProcessImage(context.Background(), filepath.Join(dir, "missing.png"), t.TempDir())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ProcessImage(ctx, input, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessFolder(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("not an image"), 0644))
	writeTestImage(t, filepath.Join(dir, "c.png"))
	outDir := t.TempDir()

	var progress []FolderProgress
	p := newTestProcessor(&fakeDetector{detections: sampleDetections()}, NamePrefixed)
	result, err := p.ProcessFolder(context.Background(), dir, outDir, func(fp FolderProgress) {
		progress = append(progress, fp)
	})

	require.NoError(t, err)
	assert.Len(t, result.Images, 2)
	assert.Equal(t, []string{filepath.Join(dir, "b.jpg")}, result.Failed)
	require.Len(t, progress, 3)
	assert.Equal(t, 3, progress[2].Index)
	assert.InDelta(t, 100, progress[2].Percent, 1e-9)
	assert.Greater(t, progress[2].ImagesPerSecond, 0.0)
	assert.FileExists(t, filepath.Join(outDir, "processed_a.png"))
	assert.FileExists(t, filepath.Join(outDir, "processed_c.png"))
}

func TestProcessFolderReleasesImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeTestImage(t, filepath.Join(dir, name))
	}

	hooked := 0
	p := newTestProcessor(&fakeDetector{detections: sampleDetections()}, NamePrefixed).
		WithFrameHook(func(original, result image.Image) {
			assert.NotNil(t, result)
			hooked++
		})
	result, err := p.ProcessFolder(context.Background(), dir, t.TempDir(), nil)

	require.NoError(t, err)
	require.Len(t, result.Images, 3)
	assert.Equal(t, 3, hooked, "each image is still previewed")
	for _, img := range result.Images {
		assert.Nil(t, img.Result, "annotated image is not retained: %s", img.InputPath)
		assert.NotEmpty(t, img.OutputPath)
		assert.FileExists(t, img.OutputPath)
	}
}

func TestProcessFolderNoImages(t *testing.T) {
	p := newTestProcessor(&fakeDetector{}, NamePrefixed)

	_, err := p.ProcessFolder(context.Background(), t.TempDir(), t.TempDir(), nil)

	assert.ErrorIs(t, err, ErrNoImages)
}

func TestProcessFolderCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"))
	writeTestImage(t, filepath.Join(dir, "b.png"))

	ctx, cancel := context.WithCancel(context.Background())
	detector := &fakeDetector{onCall: func(int) { cancel() }}
	p := newTestProcessor(detector, NamePrefixed)

	result, err := p.ProcessFolder(ctx, dir, t.TempDir(), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, result.Images, 1, "stops between images")
	assert.Equal(t, 1, detector.calls)
}

func newFakeVideo(frames int) (*fakeReader, *fakeWriter, func(*Processor)) {
	reader := &fakeReader{info: VideoInfo{Width: 32, Height: 24, FPS: 10, Frames: frames, Duration: float64(frames) / 10}}
	for i := 0; i < frames; i++ {
		reader.frames = append(reader.frames, image.NewRGBA(image.Rect(0, 0, 32, 24)))
	}
	writer := &fakeWriter{}
	install := func(p *Processor) {
		p.openVideo = func(string) (FrameReader, error) { return reader, nil }
		p.createVideo = func(path string, info VideoInfo, audioSource string) (FrameWriter, error) {
			writer.path = path
			writer.info = info
			writer.audio = audioSource
			return writer, nil
		}
	}
	return reader, writer, install
}

func TestProcessVideo(t *testing.T) {
	reader, writer, install := newFakeVideo(5)
	detector := &fakeDetector{
		detections: []Detection{{Box: [4]float32{1, 1, 20, 20}, Score: 0.8, Class: "person"}},
		failOn:     map[int]bool{3: true},
	}
	p := newTestProcessor(detector, NamePrefixed).WithProgressInterval(0)
	install(p)

	hookCalls := 0
	p.WithFrameHook(func(original, result image.Image) { hookCalls++ })

	var progress []VideoProgress
	result, err := p.ProcessVideo(context.Background(), "/videos/walk.mp4", "/out", func(vp VideoProgress) {
		progress = append(progress, vp)
	})

	require.NoError(t, err)
	assert.Equal(t, 5, result.Frames)
	assert.Equal(t, 1, result.FailedFrames)
	assert.False(t, result.Cancelled)
	assert.Equal(t, filepath.Join("/out", "processed_walk.mp4"), result.OutputPath)
	assert.Equal(t, result.OutputPath, writer.path)
	assert.Equal(t, reader.info, writer.info, "output keeps size and fps")
	assert.Len(t, writer.frames, 5)
	assert.True(t, writer.closed)
	assert.True(t, reader.closed)
	assert.Equal(t, 5, hookCalls)

	// 失败的帧原样写入
	assert.Same(t, reader.frames[2], writer.frames[2])
	annotated, ok := writer.frames[0].(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, annotated.RGBAAt(1, 1))

	require.Len(t, progress, 5)
	last := progress[4]
	assert.InDelta(t, 100, last.Percent, 1e-9)
	assert.InDelta(t, 0.5, last.ProcessedSeconds, 1e-9)
	assert.InDelta(t, 0.5, last.TotalSeconds, 1e-9)
	assert.Greater(t, result.AverageFPS, 0.0)
}

func TestProcessVideoProgressInterval(t *testing.T) {
	_, _, install := newFakeVideo(10)
	p := newTestProcessor(&fakeDetector{}, NamePrefixed).WithProgressInterval(500 * time.Millisecond)
	install(p)

	calls := 0
	_, err := p.ProcessVideo(context.Background(), "clip.mp4", t.TempDir(), func(VideoProgress) { calls++ })

	require.NoError(t, err)
	// 时钟每次读取前进100ms，每帧读取一次
	assert.Equal(t, 2, calls)
}

func TestProcessVideoCancelFinalizesOutput(t *testing.T) {
	_, writer, install := newFakeVideo(6)
	ctx, cancel := context.WithCancel(context.Background())
	detector := &fakeDetector{onCall: func(call int) {
		if call == 2 {
			cancel()
		}
	}}
	p := newTestProcessor(detector, NamePrefixed)
	install(p)

	result, err := p.ProcessVideo(ctx, "clip.mp4", t.TempDir(), nil)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 2, result.Frames)
	assert.Len(t, writer.frames, 2)
	assert.True(t, writer.closed)
}

func TestProcessVideoKeepAudio(t *testing.T) {
	tests := []struct {
		name      string
		keepAudio bool
		hasAudio  bool
		want      string
	}{
		{"disabled", false, true, ""},
		{"source has audio", true, true, "/videos/walk.mp4"},
		{"source is silent", true, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, writer, install := newFakeVideo(2)
			reader.info.HasAudio = tt.hasAudio
			p := newTestProcessor(&fakeDetector{}, NamePrefixed)
			p.keepAudio = tt.keepAudio
			install(p)

			_, err := p.ProcessVideo(context.Background(), "/videos/walk.mp4", "/out", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, writer.audio)
		})
	}
}

func TestProcessVideoOpenError(t *testing.T) {
	p := newTestProcessor(&fakeDetector{}, NamePrefixed)
	p.openVideo = func(string) (FrameReader, error) { return nil, errors.New("no ffmpeg") }

	_, err := p.ProcessVideo(context.Background(), "clip.mp4", t.TempDir(), nil)

	assert.ErrorContains(t, err, "no ffmpeg")
}

func TestComputeVideoProgress(t *testing.T) {
	info := VideoInfo{FPS: 30, Frames: 300}

	progress := computeVideoProgress(150, info, 10, 5*time.Second)

	assert.InDelta(t, 5, progress.ProcessedSeconds, 1e-9)
	assert.InDelta(t, 50, progress.Percent, 1e-9)
	assert.InDelta(t, 30, progress.FPS, 1e-9)
	assert.Equal(t, 5*time.Second, progress.Remaining)

	empty := computeVideoProgress(0, VideoInfo{}, 0, 0)
	assert.Zero(t, empty.Percent)
	assert.Zero(t, empty.Remaining)
}
