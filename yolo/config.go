package yolo

import (
	"time"
)

// ModelChoices 可选模型（与命令行和GUI的下拉框一致）
var ModelChoices = []string{
	"yolov8n.onnx",
	"yolov8s.onnx",
	"yolov8m.onnx",
	"yolov8l.onnx",
	"yolov8x.onnx",
}

// DefaultModel 默认模型
const DefaultModel = "yolov8m.onnx"

// YOLOConfig YOLO检测器配置（检测器级别 - 创建时设置）
type YOLOConfig struct {
	InputSize   int    `yaml:"input_size"`   // 输入尺寸（正方形时使用）
	InputWidth  int    `yaml:"input_width"`  // 输入宽度（非正方形时使用）
	InputHeight int    `yaml:"input_height"` // 输入高度（非正方形时使用）
	Device      Device `yaml:"device"`       // 设备偏好: auto, cuda, coreml, directml, cpu
	GPUDeviceID int    `yaml:"gpu_device_id"`
	LibraryPath string `yaml:"library_path"` // ONNX Runtime库路径
	NumThreads  int    `yaml:"num_threads"`  // 0 表示按CPU核心数自动选择
}

// DetectionOptions 检测选项（运行时级别）
type DetectionOptions struct {
	ConfThreshold float32 `yaml:"conf_threshold"` // 置信度阈值
	IOUThreshold  float32 `yaml:"iou_threshold"`  // IOU阈值
	BestPerClass  bool    `yaml:"best_per_class"` // 每个类别只保留置信度最高的检测框
	DrawBoxes     bool    `yaml:"draw_boxes"`
	DrawLabels    bool    `yaml:"draw_labels"`
	BoxColor      string  `yaml:"box_color"`   // 检测框颜色（同时作为标签背景色）
	LabelColor    string  `yaml:"label_color"` // 标签文字颜色
	LineWidth     int     `yaml:"line_width"`
	FontScale     float64 `yaml:"font_scale"`
}

// OutputOptions 输出配置
type OutputOptions struct {
	BaseDir          string        `yaml:"base_dir"`          // 输出根目录
	Naming           NamingStyle   `yaml:"naming"`            // prefixed: processed_<name>, suffixed: <stem>_result<ext>
	ProgressInterval time.Duration `yaml:"progress_interval"` // 视频进度输出间隔
	KeepAudio        bool          `yaml:"keep_audio"`        // 输出视频保留源视频的音轨
}

// DefaultConfig 返回默认检测器配置，设备自动选择
func DefaultConfig() *YOLOConfig {
	return &YOLOConfig{
		InputSize: 640,
		Device:    DeviceAuto,
	}
}

// inputDims 返回模型输入的宽和高
func (c *YOLOConfig) inputDims() (int, int) {
	if c.InputWidth > 0 && c.InputHeight > 0 {
		return c.InputWidth, c.InputHeight
	}
	if c.InputSize > 0 {
		return c.InputSize, c.InputSize
	}
	return 640, 640
}

// WithInputSize 设置输入尺寸（正方形）
func (c *YOLOConfig) WithInputSize(size int) *YOLOConfig {
	c.InputSize = size
	c.InputWidth = 0
	c.InputHeight = 0
	return c
}

// WithInputDimensions 设置输入尺寸（宽度和高度）
func (c *YOLOConfig) WithInputDimensions(width, height int) *YOLOConfig {
	c.InputWidth = width
	c.InputHeight = height
	c.InputSize = 0
	return c
}

// WithDevice 设置设备偏好
func (c *YOLOConfig) WithDevice(device Device) *YOLOConfig {
	c.Device = device
	return c
}

// WithGPUDeviceID 设置GPU设备ID
func (c *YOLOConfig) WithGPUDeviceID(deviceID int) *YOLOConfig {
	c.GPUDeviceID = deviceID
	return c
}

// WithLibraryPath 设置ONNX Runtime库路径
func (c *YOLOConfig) WithLibraryPath(path string) *YOLOConfig {
	c.LibraryPath = path
	return c
}

// DefaultDetectionOptions 默认检测选项
func DefaultDetectionOptions() *DetectionOptions {
	return &DetectionOptions{
		ConfThreshold: 0.25,
		IOUThreshold:  0.7,
		BestPerClass:  true,
		DrawBoxes:     true,
		DrawLabels:    true,
		BoxColor:      "green",
		LabelColor:    "black",
		LineWidth:     2,
		FontScale:     0.8,
	}
}

// WithConfThreshold 设置置信度阈值
func (o *DetectionOptions) WithConfThreshold(threshold float32) *DetectionOptions {
	o.ConfThreshold = threshold
	return o
}

// WithIOUThreshold 设置IOU阈值
func (o *DetectionOptions) WithIOUThreshold(threshold float32) *DetectionOptions {
	o.IOUThreshold = threshold
	return o
}

// WithBestPerClass 设置是否每个类别只保留一个检测框
func (o *DetectionOptions) WithBestPerClass(best bool) *DetectionOptions {
	o.BestPerClass = best
	return o
}

// WithDrawBoxes 设置是否画框
func (o *DetectionOptions) WithDrawBoxes(draw bool) *DetectionOptions {
	o.DrawBoxes = draw
	return o
}

// WithDrawLabels 设置是否画标签
func (o *DetectionOptions) WithDrawLabels(draw bool) *DetectionOptions {
	o.DrawLabels = draw
	return o
}

// WithBoxColor 设置框的颜色
func (o *DetectionOptions) WithBoxColor(color string) *DetectionOptions {
	o.BoxColor = color
	return o
}

// WithLabelColor 设置标签文字颜色
func (o *DetectionOptions) WithLabelColor(color string) *DetectionOptions {
	o.LabelColor = color
	return o
}

// WithLineWidth 设置线条宽度
func (o *DetectionOptions) WithLineWidth(width int) *DetectionOptions {
	o.LineWidth = width
	return o
}

// DefaultOutputOptions 默认输出配置（命令行风格）
func DefaultOutputOptions() *OutputOptions {
	return &OutputOptions{
		BaseDir:          DefaultOutputBase,
		Naming:           NamePrefixed,
		ProgressInterval: 5 * time.Second,
	}
}
