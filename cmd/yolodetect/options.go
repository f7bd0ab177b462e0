package main

import (
	"fmt"
	"os"

	"github.com/Cubiaa/yolo-detect/yolo"
)

type cliOptions struct {
	image, folder, video string

	model   string
	config  string
	output  string
	conf    float32
	iou     float32
	device  string
	gpuID   int
	ortLib  string
	logFile string

	logLevel      string
	allDetections bool
	keepAudio     bool

	// changed 报告命令行是否显式设置了某个参数
	changed func(name string) bool
}

func (o *cliOptions) isSet(name string) bool {
	return o.changed != nil && o.changed(name)
}

// apply 用命令行参数覆盖配置文件中的值
func (o *cliOptions) apply(cm *yolo.ConfigManager) error {
	cfg := cm.Config()

	if o.isSet("conf") {
		cfg.Detection.ConfThreshold = o.conf
	}
	if o.isSet("iou") {
		cfg.Detection.IOUThreshold = o.iou
	}
	if o.allDetections {
		cfg.Detection.BestPerClass = false
	}
	if o.isSet("device") {
		device, err := yolo.ParseDevice(o.device)
		if err != nil {
			return err
		}
		cfg.YOLO.Device = device
	}
	if o.isSet("gpu-id") {
		cfg.YOLO.WithGPUDeviceID(o.gpuID)
	}
	if o.keepAudio {
		cfg.Output.KeepAudio = true
	}
	if o.ortLib != "" {
		cfg.YOLO.LibraryPath = o.ortLib
	}
	if o.isSet("output") || cfg.Output.BaseDir == "" {
		cfg.Output.BaseDir = o.output
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if cfg.Detection.ConfThreshold < 0 || cfg.Detection.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1], got %.2f", cfg.Detection.ConfThreshold)
	}
	if cfg.Detection.IOUThreshold < 0 || cfg.Detection.IOUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in [0, 1], got %.2f", cfg.Detection.IOUThreshold)
	}
	return nil
}

// input 返回要处理的路径和类型，路径不存在时返回与旧版命令行一致的错误信息
func (o *cliOptions) input() (string, yolo.InputType, error) {
	var (
		path  string
		kind  yolo.InputType
		label string
	)
	switch {
	case o.image != "":
		path, kind, label = o.image, yolo.InputImage, "Image"
	case o.folder != "":
		path, kind, label = o.folder, yolo.InputFolder, "Folder"
	case o.video != "":
		path, kind, label = o.video, yolo.InputVideo, "Video"
	default:
		return "", yolo.InputUnknown, fmt.Errorf("please provide either --image, --folder, or --video")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", kind, fmt.Errorf("%s not found at %s", label, path)
	}
	if (kind == yolo.InputFolder) != info.IsDir() {
		return "", kind, fmt.Errorf("%w: %s", yolo.ErrUnsupportedInput, path)
	}
	return path, kind, nil
}
