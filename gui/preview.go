package gui

import (
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/Cubiaa/yolo-detect/yolo"
	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

const (
	// 预览图缩放上限
	previewMaxWidth  = 800
	previewMaxHeight = 600
	// 源视频预览的刷新间隔
	videoPreviewInterval = 30 * time.Millisecond
)

// PreviewManager 管理原图和结果两个预览区域
type PreviewManager struct {
	original   *canvas.Image
	result     *canvas.Image
	originalBg *canvas.Rectangle
	resultBg   *canvas.Rectangle
	content    fyne.CanvasObject

	mu        sync.Mutex
	stopVideo chan struct{}
	openVideo func(path string) (yolo.FrameReader, error)

	// 结果预览限流
	lastResult time.Time
}

// NewPreviewManager 创建预览区域，背景使用主题的画布颜色
func NewPreviewManager(palette Palette) *PreviewManager {
	pm := &PreviewManager{openVideo: yolo.OpenVideo}

	pm.original = canvas.NewImageFromImage(nil)
	pm.original.FillMode = canvas.ImageFillContain
	pm.original.SetMinSize(fyne.NewSize(320, 240))

	pm.result = canvas.NewImageFromImage(nil)
	pm.result.FillMode = canvas.ImageFillContain
	pm.result.SetMinSize(fyne.NewSize(320, 240))

	pm.originalBg = canvas.NewRectangle(palette.Canvas)
	pm.resultBg = canvas.NewRectangle(palette.Canvas)

	pm.content = container.NewGridWithColumns(2,
		container.NewBorder(widget.NewLabelWithStyle("Original", fyne.TextAlignCenter, fyne.TextStyle{}), nil, nil, nil,
			container.NewStack(pm.originalBg, pm.original)),
		container.NewBorder(widget.NewLabelWithStyle("Result", fyne.TextAlignCenter, fyne.TextStyle{}), nil, nil, nil,
			container.NewStack(pm.resultBg, pm.result)),
	)
	return pm
}

// Content 返回预览区域的布局
func (pm *PreviewManager) Content() fyne.CanvasObject {
	return pm.content
}

// ApplyPalette 切换背景颜色
func (pm *PreviewManager) ApplyPalette(palette Palette) {
	pm.originalBg.FillColor = palette.Canvas
	pm.resultBg.FillColor = palette.Canvas
	pm.originalBg.Refresh()
	pm.resultBg.Refresh()
}

// thumbnail 按比例缩小到预览尺寸内
func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= previewMaxWidth && b.Dy() <= previewMaxHeight {
		return img
	}
	return imaging.Fit(img, previewMaxWidth, previewMaxHeight, imaging.Lanczos)
}

func setImage(target *canvas.Image, img image.Image) {
	if img != nil {
		img = thumbnail(img)
	}
	target.Image = img
	target.Refresh()
}

// ShowOriginalFile 在原图区域显示图片文件（需在UI线程调用）
func (pm *PreviewManager) ShowOriginalFile(path string) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}
	pm.StopVideoPreview()
	setImage(pm.original, img)
	return nil
}

// ShowResult 在结果区域显示图像（需在UI线程调用）
func (pm *PreviewManager) ShowResult(img image.Image) {
	setImage(pm.result, img)
}

// OfferResult 从处理线程提交结果预览，按 interval 限流
func (pm *PreviewManager) OfferResult(img image.Image, interval time.Duration) {
	pm.mu.Lock()
	now := time.Now()
	if now.Sub(pm.lastResult) < interval {
		pm.mu.Unlock()
		return
	}
	pm.lastResult = now
	pm.mu.Unlock()

	preview := thumbnail(img)
	fyne.Do(func() {
		pm.result.Image = preview
		pm.result.Refresh()
	})
}

// ShowVideoPreview 在原图区域循环播放源视频，直到 StopVideoPreview 或 Clear
func (pm *PreviewManager) ShowVideoPreview(path string) error {
	reader, err := pm.openVideo(path)
	if err != nil {
		return err
	}

	pm.StopVideoPreview()
	stop := make(chan struct{})
	pm.mu.Lock()
	pm.stopVideo = stop
	pm.mu.Unlock()

	go pm.playVideo(path, reader, stop)
	return nil
}

func (pm *PreviewManager) playVideo(path string, reader yolo.FrameReader, stop chan struct{}) {
	ticker := time.NewTicker(videoPreviewInterval)
	defer ticker.Stop()
	defer func() {
		if reader != nil {
			reader.Close()
		}
	}()

	// 自上次打开以来读到的帧数，重新打开后仍为0说明文件里没有可解码的帧
	frames := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !reader.Read() {
			reader.Close()
			reader = nil
			if frames == 0 {
				log.Warnf("⚠️  预览视频没有可显示的帧: %s", path)
				return
			}
			// 播放结束后从头开始
			var err error
			if reader, err = pm.openVideo(path); err != nil {
				log.Warnf("⚠️  重新打开预览视频失败: %v", err)
				reader = nil
				return
			}
			frames = 0
			continue
		}
		frames++

		frame := thumbnail(reader.Frame())
		fyne.Do(func() {
			pm.original.Image = frame
			pm.original.Refresh()
		})
	}
}

// StopVideoPreview 停止源视频预览
func (pm *PreviewManager) StopVideoPreview() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.stopVideo != nil {
		close(pm.stopVideo)
		pm.stopVideo = nil
	}
}

// Clear 清空两个预览区域
func (pm *PreviewManager) Clear() {
	pm.StopVideoPreview()
	setImage(pm.original, nil)
	setImage(pm.result, nil)
}
