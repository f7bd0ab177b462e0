package yolo

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

// Detector 能对内存图像进行检测的对象（*YOLO 实现了该接口）
type Detector interface {
	DetectImage(img image.Image) ([]Detection, error)
}

// FrameHook 每处理完一张图片或一帧视频后调用，用于GUI预览
type FrameHook func(original, result image.Image)

// ImageResult 单张图片的处理结果
type ImageResult struct {
	InputPath  string
	OutputPath string
	Detections []Detection // 经过筛选后绘制的检测结果
	Result     *image.RGBA // 标注后的图像；ProcessFolder 返回的结果中为 nil
	Elapsed    time.Duration
}

// FolderProgress 文件夹处理进度
type FolderProgress struct {
	Index           int // 已处理的图片数（包括失败的）
	Total           int
	Current         string
	Percent         float64
	Elapsed         time.Duration
	ImagesPerSecond float64
}

// FolderResult 文件夹处理结果（不保留标注后的图像）
type FolderResult struct {
	Images  []*ImageResult
	Failed  []string
	Elapsed time.Duration
}

// VideoProgress 视频处理进度
type VideoProgress struct {
	Frame            int
	TotalFrames      int
	Percent          float64 // 按视频时长计算
	ProcessedSeconds float64
	TotalSeconds     float64
	Elapsed          time.Duration
	Remaining        time.Duration // 按当前处理速度估算的剩余时间
	FPS              float64
}

// VideoResult 视频处理结果
type VideoResult struct {
	InputPath    string
	OutputPath   string
	Info         VideoInfo
	Frames       int
	FailedFrames int
	Elapsed      time.Duration
	AverageFPS   float64
	Cancelled    bool
}

// Processor 逐帧处理流程：读取 → 检测 → 每类筛选 → 绘制 → 写出
type Processor struct {
	detector         Detector
	options          *DetectionOptions
	style            LabelStyle
	naming           NamingStyle
	progressInterval time.Duration
	keepAudio        bool
	frameHook        FrameHook

	openVideo   func(path string) (FrameReader, error)
	createVideo func(path string, info VideoInfo, audioSource string) (FrameWriter, error)
	now         func() time.Time
}

// NewProcessor 创建处理器，options/output 为 nil 时使用默认值
func NewProcessor(detector Detector, options *DetectionOptions, output *OutputOptions) *Processor {
	if options == nil {
		options = DefaultDetectionOptions()
	}
	if output == nil {
		output = DefaultOutputOptions()
	}
	return &Processor{
		detector:         detector,
		options:          options,
		style:            StyleFromOptions(options),
		naming:           output.Naming,
		progressInterval: output.ProgressInterval,
		keepAudio:        output.KeepAudio,
		openVideo:        OpenVideo,
		createVideo:      CreateVideo,
		now:              time.Now,
	}
}

// WithFrameHook 设置逐帧预览回调
func (p *Processor) WithFrameHook(hook FrameHook) *Processor {
	p.frameHook = hook
	return p
}

// WithProgressInterval 设置视频进度回调的最小间隔
func (p *Processor) WithProgressInterval(interval time.Duration) *Processor {
	p.progressInterval = interval
	return p
}

// annotate 检测一帧并绘制筛选后的结果
func (p *Processor) annotate(img image.Image) (*image.RGBA, []Detection, error) {
	detections, err := p.detector.DetectImage(img)
	if err != nil {
		return nil, nil, err
	}
	kept := Reduce(detections, p.options)
	return DrawDetections(img, kept, p.style), kept, nil
}

// ProcessImage 处理单张图片并保存到 outDir
func (p *Processor) ProcessImage(ctx context.Context, path, outDir string) (*ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := p.now()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("无法读取图像 %s: %w", path, err)
	}

	result, kept, err := p.annotate(img)
	if err != nil {
		return nil, fmt.Errorf("检测失败 %s: %w", path, err)
	}

	if p.frameHook != nil {
		p.frameHook(img, result)
	}

	outputPath := filepath.Join(outDir, OutputName(path, p.naming))
	if err := imaging.Save(result, outputPath, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("保存结果失败: %w", err)
	}

	elapsed := p.now().Sub(start)
	log.WithFields(log.Fields{
		"elapsed": fmt.Sprintf("%.2fs", elapsed.Seconds()),
		"objects": len(kept),
		"output":  outputPath,
	}).Infof("✅ Processed %s", filepath.Base(path))

	return &ImageResult{
		InputPath:  path,
		OutputPath: outputPath,
		Detections: kept,
		Result:     result,
		Elapsed:    elapsed,
	}, nil
}

// ProcessFolder 依次处理文件夹中的图片，单张失败只记录日志；ctx取消时在两张图片之间停止
func (p *Processor) ProcessFolder(ctx context.Context, folder, outDir string, onProgress func(FolderProgress)) (*FolderResult, error) {
	files, err := GetImageFiles(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, folder)
	}

	log.Infof("📁 找到 %d 张图片: %s", len(files), folder)
	start := p.now()
	result := &FolderResult{}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			result.Elapsed = p.now().Sub(start)
			log.Warnf("⏹️  已取消，处理了 %d/%d 张图片", i, len(files))
			return result, err
		}

		imageResult, err := p.ProcessImage(ctx, file, outDir)
		if err != nil {
			log.Errorf("❌ 处理图片失败 %s: %v", file, err)
			result.Failed = append(result.Failed, file)
		} else {
			// 结果已写入磁盘，释放整幅图像
			imageResult.Result = nil
			result.Images = append(result.Images, imageResult)
		}

		if onProgress != nil {
			elapsed := p.now().Sub(start)
			progress := FolderProgress{
				Index:   i + 1,
				Total:   len(files),
				Current: file,
				Percent: float64(i+1) / float64(len(files)) * 100,
				Elapsed: elapsed,
			}
			if elapsed > 0 {
				progress.ImagesPerSecond = float64(i+1) / elapsed.Seconds()
			}
			onProgress(progress)
		}
	}

	result.Elapsed = p.now().Sub(start)
	return result, nil
}

// ProcessVideo 处理视频并写出同帧率同尺寸的结果视频
// 单帧检测失败时写入原始帧；ctx取消后停止读取但仍会完成输出文件。
func (p *Processor) ProcessVideo(ctx context.Context, path, outDir string, onProgress func(VideoProgress)) (*VideoResult, error) {
	reader, err := p.openVideo(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info := reader.Info()
	if info.FPS <= 0 {
		log.Warnf("⚠️  无法获取视频帧率，按 30 FPS 处理")
		info.FPS = 30
	}
	totalSeconds := float64(info.Frames) / info.FPS
	if info.Frames <= 0 {
		totalSeconds = info.Duration
	}

	outputPath := filepath.Join(outDir, OutputName(path, p.naming))
	log.WithFields(log.Fields{
		"resolution": fmt.Sprintf("%dx%d", info.Width, info.Height),
		"fps":        fmt.Sprintf("%.2f", info.FPS),
		"frames":     info.Frames,
		"duration":   fmt.Sprintf("%.1fs", totalSeconds),
	}).Infof("📹 Processing video: %s", filepath.Base(path))

	var audioSource string
	if p.keepAudio {
		if info.HasAudio {
			audioSource = path
			log.Infof("🎵 保留原视频音频")
		} else {
			log.Debugf("源视频没有音轨，输出无音频")
		}
	}

	writer, err := p.createVideo(outputPath, info, audioSource)
	if err != nil {
		return nil, err
	}

	result := &VideoResult{InputPath: path, OutputPath: outputPath, Info: info}
	start := p.now()
	lastProgress := start

	for {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if !reader.Read() {
			break
		}

		frame := reader.Frame()
		var output image.Image = frame
		if annotated, _, err := p.annotate(frame); err != nil {
			result.FailedFrames++
			log.Warnf("⚠️  第 %d 帧检测失败，写入原始帧: %v", result.Frames+1, err)
		} else {
			output = annotated
		}

		if err := writer.Write(output); err != nil {
			writer.Close()
			return result, err
		}
		result.Frames++

		if p.frameHook != nil {
			p.frameHook(frame, output)
		}

		now := p.now()
		if now.Sub(lastProgress) >= p.progressInterval {
			lastProgress = now
			progress := computeVideoProgress(result.Frames, info, totalSeconds, now.Sub(start))
			log.Debugf("📊 已处理 %d/%d 帧 (%.1f%%)", progress.Frame, progress.TotalFrames, progress.Percent)
			if onProgress != nil {
				onProgress(progress)
			}
		}
	}

	writer.Close()

	result.Elapsed = p.now().Sub(start)
	if result.Elapsed > 0 {
		result.AverageFPS = float64(result.Frames) / result.Elapsed.Seconds()
	}

	log.WithFields(log.Fields{
		"elapsed":     fmt.Sprintf("%.2fs", result.Elapsed.Seconds()),
		"average_fps": fmt.Sprintf("%.2f", result.AverageFPS),
		"output":      outputPath,
	}).Infof("✅ 视频处理完成，共 %d 帧", result.Frames)

	if result.Cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// computeVideoProgress 根据已处理帧数计算进度
func computeVideoProgress(frames int, info VideoInfo, totalSeconds float64, elapsed time.Duration) VideoProgress {
	progress := VideoProgress{
		Frame:        frames,
		TotalFrames:  info.Frames,
		TotalSeconds: totalSeconds,
		Elapsed:      elapsed,
	}
	if info.FPS > 0 {
		progress.ProcessedSeconds = float64(frames) / info.FPS
	}
	if totalSeconds > 0 {
		progress.Percent = min(progress.ProcessedSeconds/totalSeconds*100, 100)
	}
	if elapsed > 0 {
		progress.FPS = float64(frames) / elapsed.Seconds()
	}
	if progress.FPS > 0 && info.Frames > frames {
		remaining := float64(info.Frames-frames) / progress.FPS
		progress.Remaining = time.Duration(remaining * float64(time.Second))
	}
	return progress
}
