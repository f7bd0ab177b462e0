package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"github.com/Cubiaa/yolo-detect/yolo"
	log "github.com/sirupsen/logrus"
)

const (
	windowTitle = "YOLOv8 Object Detection"
	// GUI 的进度和结果预览刷新间隔
	progressInterval = 500 * time.Millisecond
	resultInterval   = 100 * time.Millisecond
)

var (
	errNoInput           = errors.New("Please select a file or folder first")
	errAlreadyProcessing = errors.New("Processing is already in progress")
	errInvalidInput      = errors.New("Invalid input type")
)

// detectorHandle GUI 需要的检测器能力
type detectorHandle interface {
	yolo.Detector
	Close()
	DeviceDetails() string
}

type detectorFactory func(modelPath string, cm *yolo.ConfigManager) (detectorHandle, error)

func loadYOLO(modelPath string, cm *yolo.ConfigManager) (detectorHandle, error) {
	return yolo.NewYOLOFromConfig(modelPath, cm)
}

// App 桌面应用：控制面板 + 预览
type App struct {
	fyneApp       fyne.App
	window        fyne.Window
	configManager *yolo.ConfigManager
	panel         *ControlPanel
	preview       *PreviewManager
	newDetector   detectorFactory

	mu         sync.Mutex
	processing bool
	cancel     context.CancelFunc
	outputDir  string
}

// NewApp 创建主窗口，configManager 提供检测参数和输出目录
func NewApp(a fyne.App, configManager *yolo.ConfigManager) *App {
	a.Settings().SetTheme(newAppTheme())

	g := &App{
		fyneApp:       a,
		configManager: configManager,
		newDetector:   loadYOLO,
	}
	g.panel = newControlPanel(panelActions{
		onBrowse:     g.browseFile,
		onFolder:     g.browseFolder,
		onProcess:    g.onProcess,
		onCancel:     g.onCancel,
		onShowOutput: g.showOutput,
	})
	g.preview = NewPreviewManager(PaletteFor(currentVariant(a)))
	a.Settings().AddListener(func(s fyne.Settings) {
		g.preview.ApplyPalette(PaletteFor(s.ThemeVariant()))
	})

	// 窗口最小尺寸由内容的最小尺寸决定
	minSize := canvas.NewRectangle(color.Transparent)
	minSize.SetMinSize(fyne.NewSize(800, 600))

	g.window = a.NewWindow(windowTitle)
	g.window.SetContent(container.NewStack(minSize,
		container.NewBorder(container.NewPadded(g.panel.Content()), nil, nil, nil, g.preview.Content())))
	g.window.Resize(fyne.NewSize(1200, 800))
	g.window.SetOnClosed(func() {
		g.onCancel()
		g.preview.StopVideoPreview()
	})
	return g
}

// Window 主窗口
func (g *App) Window() fyne.Window {
	return g.window
}

// Run 显示窗口并进入事件循环
func (g *App) Run() {
	g.window.ShowAndRun()
}

func (g *App) isProcessing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processing
}

func (g *App) browseFile() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		g.SelectInput(path)
	}, g.window)
	fd.SetFilter(storage.NewExtensionFileFilter(yolo.SupportedExtensions()))
	fd.Show()
}

func (g *App) browseFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}
		if uri == nil {
			return
		}
		g.SelectInput(uri.Path())
	}, g.window)
}

// SelectInput 设置输入路径并刷新原图预览
func (g *App) SelectInput(path string) {
	g.panel.SetSelectedPath(path)
	g.preview.Clear()

	var err error
	switch yolo.DetectInputType(path) {
	case yolo.InputImage:
		err = g.preview.ShowOriginalFile(path)
	case yolo.InputVideo:
		err = g.preview.ShowVideoPreview(path)
	case yolo.InputFolder:
		files, listErr := yolo.GetImageFiles(path)
		if listErr == nil && len(files) > 0 {
			err = g.preview.ShowOriginalFile(files[0])
		}
		g.panel.UpdateStatus(fmt.Sprintf("Found %d images", len(files)))
		return
	}
	if err != nil {
		log.Warnf("⚠️  预览失败 %s: %v", path, err)
	}
	g.panel.UpdateStatus("Selected: " + filepath.Base(path))
}

// validate 检查是否可以开始处理
func (g *App) validate() (string, yolo.InputType, error) {
	path := g.panel.SelectedPath()
	if path == "" {
		return "", yolo.InputUnknown, errNoInput
	}
	if g.isProcessing() {
		return "", yolo.InputUnknown, errAlreadyProcessing
	}
	kind := yolo.DetectInputType(path)
	if kind == yolo.InputUnknown {
		return "", yolo.InputUnknown, errInvalidInput
	}
	return path, kind, nil
}

func (g *App) onProcess() {
	path, kind, err := g.validate()
	if errors.Is(err, errAlreadyProcessing) {
		dialog.ShowInformation("Warning", err.Error(), g.window)
		return
	}
	if err != nil {
		dialog.ShowError(err, g.window)
		return
	}
	g.startProcessing(path, kind)
}

func (g *App) startProcessing(path string, kind yolo.InputType) {
	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.processing = true
	g.cancel = cancel
	g.mu.Unlock()

	g.panel.SetProcessing(true)
	g.panel.UpdateProgress(0, 0)
	g.panel.UpdateStatus("Loading model: " + g.panel.ModelPath())
	g.preview.ShowResult(nil)

	go g.process(ctx, path, kind, g.panel.ModelPath())
}

func (g *App) onCancel() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	g.panel.UpdateStatus("Cancelling...")
}

// process 在后台goroutine中运行，界面更新通过 fyne.Do
func (g *App) process(ctx context.Context, path string, kind yolo.InputType, modelPath string) {
	start := time.Now()
	summary := yolo.RunSummary{Model: modelPath}

	err := func() error {
		outputDir, err := yolo.CreateOutputDir(g.configManager.GetOutputOptions().BaseDir)
		if err != nil {
			return err
		}
		summary.OutputDir = outputDir

		detector, err := g.newDetector(modelPath, g.configManager)
		if err != nil {
			return err
		}
		defer detector.Close()

		summary.Device = detector.DeviceDetails()
		fyne.Do(func() {
			g.panel.UpdateDeviceInfo(summary.Device)
			g.panel.UpdateStatus("Processing " + filepath.Base(path))
		})

		output := &yolo.OutputOptions{
			BaseDir:          g.configManager.GetOutputOptions().BaseDir,
			Naming:           yolo.NameSuffixed,
			ProgressInterval: progressInterval,
			KeepAudio:        g.configManager.GetOutputOptions().KeepAudio,
		}
		processor := yolo.NewProcessor(detector, g.configManager.GetDetectionOptions(), output).
			WithFrameHook(func(_, result image.Image) {
				g.preview.OfferResult(result, resultInterval)
			})

		switch kind {
		case yolo.InputImage:
			result, err := processor.ProcessImage(ctx, path, outputDir)
			if err != nil {
				return err
			}
			summary.Processed = 1
			fyne.Do(func() {
				g.preview.ShowResult(result.Result)
				g.panel.UpdateProgress(100, 0)
			})
		case yolo.InputFolder:
			result, err := processor.ProcessFolder(ctx, path, outputDir, func(p yolo.FolderProgress) {
				fyne.Do(func() {
					g.panel.UpdateProgress(p.Percent, p.ImagesPerSecond)
					g.panel.UpdateStatus(fmt.Sprintf("Processing %d/%d: %s", p.Index, p.Total, filepath.Base(p.Current)))
				})
			})
			if result != nil {
				summary.Processed, summary.Failed = len(result.Images), len(result.Failed)
			}
			return err
		case yolo.InputVideo:
			result, err := processor.ProcessVideo(ctx, path, outputDir, func(p yolo.VideoProgress) {
				fyne.Do(func() {
					g.panel.UpdateProgress(p.Percent, p.FPS)
					g.panel.UpdateStatus(fmt.Sprintf("Progress: %.1f%% (%.1fs / %.1fs)\nRemaining: %.1fs",
						p.Percent, p.ProcessedSeconds, p.TotalSeconds, p.Remaining.Seconds()))
				})
			})
			if result != nil {
				summary.Processed, summary.Failed = result.Frames, result.FailedFrames
			}
			return err
		}
		return nil
	}()

	summary.TotalTime = time.Since(start)
	fyne.Do(func() { g.finish(summary, err) })
}

// finish 恢复界面状态并显示结果（UI线程）
func (g *App) finish(summary yolo.RunSummary, err error) {
	defer func() {
		g.mu.Lock()
		g.processing = false
		g.cancel = nil
		if summary.OutputDir != "" {
			g.outputDir = summary.OutputDir
		}
		g.mu.Unlock()
	}()

	g.panel.SetProcessing(false)
	if summary.OutputDir != "" {
		g.panel.EnableOutputButton()
	}

	switch {
	case errors.Is(err, context.Canceled):
		log.Warnf("⏹️  处理已取消")
		g.panel.UpdateStatus("Processing cancelled")
	case err != nil:
		log.Errorf("❌ 处理失败: %v", err)
		dialog.ShowError(err, g.window)
		g.panel.UpdateStatus("Processing failed!")
	default:
		log.Infof("🎉 处理完成\n%s", summary)
		g.panel.UpdateProgress(100, 0)
		g.panel.UpdateStatus(fmt.Sprintf("Processing complete!\nTotal time: %.2f seconds\nDevice: %s\nOutput saved to: %s",
			summary.TotalTime.Seconds(), summary.Device, summary.OutputDir))
	}
}

// outputURL 输出目录的 file:// 地址
func outputURL(dir string) (*url.URL, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return url.Parse(storage.NewFileURI(abs).String())
}

func (g *App) showOutput() {
	g.mu.Lock()
	dir := g.outputDir
	g.mu.Unlock()
	if dir == "" {
		return
	}

	u, err := outputURL(dir)
	if err == nil {
		err = g.fyneApp.OpenURL(u)
	}
	if err != nil {
		dialog.ShowError(fmt.Errorf("无法打开输出目录: %w", err), g.window)
	}
}
