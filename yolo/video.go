package yolo

import (
	"fmt"
	"image"
	"image/draw"
	"path/filepath"
	"strings"

	vidio "github.com/AlexEidt/Vidio"
	log "github.com/sirupsen/logrus"
)

// outputQuality 源视频没有码率信息时的编码质量（Vidio: 0最好，1最差；libx264 下 crf = quality*51）
const outputQuality = 0.35

// outputBitsPerPixel 非x264编码器在没有源码率时按像素估算码率
const outputBitsPerPixel = 0.15

// codecByExtension 输出容器需要的编码器，未列出的扩展名使用 libx264
var codecByExtension = map[string]string{
	".webm": "libvpx-vp9",
	".mpg":  "mpeg2video",
	".mpeg": "mpeg2video",
	".wmv":  "msmpeg4",
	".flv":  "flv",
}

// VideoInfo 视频基本信息
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Frames   int
	Duration float64 // 秒
	Bitrate  int     // bit/s，未知时为0
	HasAudio bool    // 除视频外还有音轨等其他流
}

// FrameReader 逐帧读取视频
type FrameReader interface {
	Read() bool
	Frame() *image.RGBA
	Info() VideoInfo
	Close()
}

// FrameWriter 逐帧写入视频
type FrameWriter interface {
	Write(img image.Image) error
	Close()
}

// vidioReader 基于Vidio(ffmpeg)的帧读取器
type vidioReader struct {
	video *vidio.Video
}

// OpenVideo 打开视频文件
func OpenVideo(path string) (FrameReader, error) {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开视频文件: %w", err)
	}
	return &vidioReader{video: video}, nil
}

func (r *vidioReader) Read() bool {
	return r.video.Read()
}

// Frame 返回当前帧的副本，Vidio会复用帧缓冲区
func (r *vidioReader) Frame() *image.RGBA {
	return convertFrameBufferToImage(r.video.FrameBuffer(), r.video.Width(), r.video.Height())
}

func (r *vidioReader) Info() VideoInfo {
	return VideoInfo{
		Width:    r.video.Width(),
		Height:   r.video.Height(),
		FPS:      r.video.FPS(),
		Frames:   r.video.Frames(),
		Duration: r.video.Duration(),
		Bitrate:  r.video.Bitrate(),
		HasAudio: r.video.HasStreams(),
	}
}

func (r *vidioReader) Close() {
	r.video.Close()
}

// vidioWriter 基于Vidio(ffmpeg)的帧写入器
type vidioWriter struct {
	writer *vidio.VideoWriter
	bounds image.Rectangle
}

// CreateVideo 创建与源视频同尺寸、同帧率的输出视频
// audioSource 非空时由ffmpeg把该文件的音轨等附加流复制到输出中。
func CreateVideo(path string, info VideoInfo, audioSource string) (FrameWriter, error) {
	width, height := evenSize(info.Width, info.Height)
	if width != info.Width || height != info.Height {
		log.Warnf("⚠️  yuv420p 需要偶数尺寸，输出裁剪为 %dx%d", width, height)
	}

	writer, err := vidio.NewVideoWriter(path, width, height, writerOptions(path, info, audioSource))
	if err != nil {
		return nil, fmt.Errorf("无法创建输出视频: %w", err)
	}
	return &vidioWriter{writer: writer, bounds: image.Rect(0, 0, width, height)}, nil
}

// writerOptions 输出视频的编码参数
func writerOptions(path string, info VideoInfo, audioSource string) *vidio.Options {
	width, height := evenSize(info.Width, info.Height)
	codec, ok := codecByExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		codec = "libx264"
	}

	options := &vidio.Options{
		FPS:        info.FPS,
		Macro:      1, // 不让Vidio把尺寸缩放到16的倍数
		Codec:      codec,
		StreamFile: audioSource,
	}
	switch {
	case info.Bitrate > 0:
		options.Bitrate = info.Bitrate
	case codec == "libx264":
		options.Quality = outputQuality
	default:
		options.Bitrate = int(float64(width*height) * info.FPS * outputBitsPerPixel)
	}
	return options
}

// evenSize 向下取偶数
func evenSize(width, height int) (int, int) {
	return max(width&^1, 2), max(height&^1, 2)
}

func (w *vidioWriter) Write(img image.Image) error {
	if err := w.writer.Write(convertImageToFrameBuffer(img, w.bounds)); err != nil {
		return fmt.Errorf("写入帧失败: %w", err)
	}
	return nil
}

func (w *vidioWriter) Close() {
	w.writer.Close()
}

// convertFrameBufferToImage 将Vidio的RGBA帧缓冲区复制为Go图像
func convertFrameBufferToImage(frameBuffer []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, frameBuffer)
	return img
}

// convertImageToFrameBuffer 将Go图像转换为指定尺寸的RGBA帧缓冲区
func convertImageToFrameBuffer(img image.Image, bounds image.Rectangle) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect == bounds && rgba.Stride == 4*bounds.Dx() {
		return rgba.Pix
	}
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, img.Bounds().Min, draw.Src)
	return rgba.Pix
}
