package yolo

import (
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrModelNotFound 模型文件不存在
var ErrModelNotFound = errors.New("模型文件不存在")

// Detection 检测结果结构体
type Detection struct {
	Box     [4]float32 // x1, y1, x2, y2（原图坐标）
	Score   float32
	ClassID int
	Class   string
}

// YOLO 检测器
type YOLO struct {
	config    *YOLOConfig
	device    Device
	modelPath string
	session   *ort.DynamicAdvancedSession
	classes   []string

	// 运行时配置
	mu            sync.Mutex
	runtimeConfig *DetectionOptions
}

// NewYOLO 创建新的YOLO检测器（配置文件可选，YOLOConfig可选）
func NewYOLO(modelPath, configPath string, config ...*YOLOConfig) (*YOLO, error) {
	configManager := NewConfigManager(configPath)
	if err := configManager.LoadOrDefault(false); err != nil {
		return nil, err
	}
	if len(config) > 0 && config[0] != nil {
		configManager.Config().YOLO = *config[0]
	}
	return NewYOLOFromConfig(modelPath, configManager)
}

// NewYOLOFromConfig 从配置管理器创建YOLO检测器
func NewYOLOFromConfig(modelPath string, configManager *ConfigManager) (*YOLO, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}

	yoloConfig := *configManager.GetYOLOConfig()
	if err := InitRuntime(yoloConfig.LibraryPath); err != nil {
		return nil, err
	}

	device, err := SelectDevice(yoloConfig.Device, yoloConfig.GPUDeviceID)
	if err != nil {
		return nil, err
	}
	PrintDeviceInfo(device, yoloConfig.GPUDeviceID)

	sessionOptions, err := newSessionOptions(&yoloConfig, device)
	if err != nil {
		return nil, err
	}
	defer sessionOptions.Destroy()

	inputName, outputName := "images", "output0"
	inputInfos, outputInfos, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		log.Warnf("⚠️  无法读取模型输入输出信息，使用默认名称: %v", err)
	} else if len(inputInfos) > 0 && len(outputInfos) > 0 {
		inputName, outputName = inputInfos[0].Name, outputInfos[0].Name
		// 固定输入尺寸的模型以模型为准
		if w, h, ok := modelInputDims(inputInfos[0]); ok {
			if cw, ch := yoloConfig.inputDims(); cw != w || ch != h {
				log.Infof("📐 使用模型的输入尺寸 %dx%d（配置为 %dx%d）", w, h, cw, ch)
			}
			yoloConfig.WithInputDimensions(w, h)
		}
	}

	log.Infof("📦 加载模型: %s", modelPath)
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName}, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("无法加载模型文件 '%s': %w", modelPath, err)
	}

	w, h := yoloConfig.inputDims()
	log.Infof("📊 输入形状: [1, 3, %d, %d]", h, w)

	return &YOLO{
		config:        &yoloConfig,
		device:        device,
		modelPath:     modelPath,
		session:       session,
		classes:       configManager.GetClasses(),
		runtimeConfig: configManager.GetDetectionOptions(),
	}, nil
}

// modelInputDims 读取 [N, 3, H, W] 输入的宽高，动态维度时返回 false
func modelInputDims(info ort.InputOutputInfo) (int, int, bool) {
	dims := info.Dimensions
	if len(dims) != 4 || dims[2] <= 0 || dims[3] <= 0 {
		return 0, 0, false
	}
	return int(dims[3]), int(dims[2]), true
}

// newSessionOptions 创建会话选项：线程数、图优化以及设备对应的执行提供者
func newSessionOptions(config *YOLOConfig, device Device) (*ort.SessionOptions, error) {
	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("无法创建会话选项: %w", err)
	}

	threads := config.NumThreads
	if threads <= 0 {
		numCPU := runtime.NumCPU()
		threads = numCPU
		if numCPU > 8 {
			// 高核心数CPU只使用75%的核心
			threads = int(float64(numCPU) * 0.75)
		}
	}
	log.Debugf("💻 使用 %d 个推理线程", threads)

	if err := sessionOptions.SetIntraOpNumThreads(threads); err != nil {
		log.Warnf("⚠️  设置线程数失败: %v", err)
	}
	if err := sessionOptions.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		log.Warnf("⚠️  设置图优化级别失败: %v", err)
	}

	if err := appendProvider(sessionOptions, device, config.GPUDeviceID); err != nil {
		sessionOptions.Destroy()
		return nil, fmt.Errorf("启用 %s 失败: %w", device, err)
	}
	return sessionOptions, nil
}

// Close 关闭YOLO检测器
func (y *YOLO) Close() {
	if y.session != nil {
		y.session.Destroy()
		y.session = nil
	}
	// 不在这里调用 DestroyEnvironment，可能还有其他检测器在使用
}

// Device 返回实际使用的设备
func (y *YOLO) Device() Device {
	return y.device
}

// DeviceDetails 返回设备的可读描述
func (y *YOLO) DeviceDetails() string {
	return DeviceInfo(y.device, y.config.GPUDeviceID)
}

// ModelPath 返回模型路径
func (y *YOLO) ModelPath() string {
	return y.modelPath
}

// SetRuntimeConfig 设置运行时检测配置
func (y *YOLO) SetRuntimeConfig(options *DetectionOptions) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.runtimeConfig = options
}

func (y *YOLO) options() *DetectionOptions {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.runtimeConfig == nil {
		y.runtimeConfig = DefaultDetectionOptions()
	}
	return y.runtimeConfig
}

// DetectFile 检测单张图片文件
func (y *YOLO) DetectFile(imagePath string) ([]Detection, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开图像: %w", err)
	}
	return y.DetectImage(img)
}

// DetectImage 检测内存中的图像，返回原图坐标下经过IOU抑制的全部检测结果
func (y *YOLO) DetectImage(img image.Image) ([]Detection, error) {
	if y.session == nil {
		return nil, fmt.Errorf("检测器已关闭")
	}
	opts := y.options()

	bounds := img.Bounds()
	inputWidth, inputHeight := y.config.inputDims()

	inputData := preprocessImage(img, inputWidth, inputHeight)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(inputHeight), int64(inputWidth)), inputData)
	if err != nil {
		return nil, fmt.Errorf("无法创建输入张量: %w", err)
	}
	defer inputTensor.Destroy()

	// 输出交给onnxruntime分配，适配不同类别数的模型
	outputs := []ort.Value{nil}
	if err := y.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("推理失败: %w", err)
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("不支持的输出类型: %T", outputs[0])
	}

	detections, err := decodeOutput(outputTensor.GetData(), outputTensor.GetShape(), y.classes, opts.ConfThreshold)
	if err != nil {
		return nil, err
	}

	// 将坐标从模型输入尺寸转换回原始图像尺寸
	scaleX := float32(bounds.Dx()) / float32(inputWidth)
	scaleY := float32(bounds.Dy()) / float32(inputHeight)
	for i := range detections {
		detections[i].Box[0] = detections[i].Box[0]*scaleX + float32(bounds.Min.X)
		detections[i].Box[1] = detections[i].Box[1]*scaleY + float32(bounds.Min.Y)
		detections[i].Box[2] = detections[i].Box[2]*scaleX + float32(bounds.Min.X)
		detections[i].Box[3] = detections[i].Box[3]*scaleY + float32(bounds.Min.Y)
	}

	return nonMaxSuppression(detections, opts.IOUThreshold), nil
}

// preprocessImage 缩放到模型输入尺寸并转换为归一化的CHW数据
func preprocessImage(img image.Image, width, height int) []float32 {
	resized := imaging.Resize(img, width, height, imaging.Linear)

	plane := width * height
	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < width; x++ {
			i := y*width + x
			data[i] = float32(row[x*4]) / 255.0
			data[plane+i] = float32(row[x*4+1]) / 255.0
			data[2*plane+i] = float32(row[x*4+2]) / 255.0
		}
	}
	return data
}

// decodeOutput 解析YOLOv8输出 [1, 4+类别数, 检测框数]（也接受转置后的 [1, 检测框数, 4+类别数]）
func decodeOutput(data []float32, shape ort.Shape, classes []string, confThreshold float32) ([]Detection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("不支持的输出形状: %v", shape)
	}

	numFeatures, numBoxes := int(shape[1]), int(shape[2])
	transposed := false
	if numFeatures > numBoxes {
		numFeatures, numBoxes = numBoxes, numFeatures
		transposed = true
	}
	numClasses := numFeatures - 4
	if numClasses <= 0 {
		return nil, fmt.Errorf("无效的类别数量: %d (特征数: %d)", numClasses, numFeatures)
	}
	if len(data) < numFeatures*numBoxes {
		return nil, fmt.Errorf("输出数据长度 %d 与形状 %v 不匹配", len(data), shape)
	}

	at := func(feature, box int) float32 {
		if transposed {
			return data[box*numFeatures+feature]
		}
		return data[feature*numBoxes+box]
	}

	var detections []Detection
	for i := 0; i < numBoxes; i++ {
		var bestScore float32
		bestID := -1
		for c := 0; c < numClasses; c++ {
			if score := at(4+c, i); score > bestScore {
				bestScore = score
				bestID = c
			}
		}
		if bestID < 0 || bestScore < confThreshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		detections = append(detections, Detection{
			Box:     [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
			Score:   bestScore,
			ClassID: bestID,
			Class:   className(classes, bestID),
		})
	}
	return detections, nil
}

// iou 计算两个框的交并比
func iou(box1, box2 [4]float32) float32 {
	interW := min(box1[2], box2[2]) - max(box1[0], box2[0])
	interH := min(box1[3], box2[3]) - max(box1[1], box2[1])
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH
	area1 := (box1[2] - box1[0]) * (box1[3] - box1[1])
	area2 := (box2[2] - box2[0]) * (box2[3] - box2[1])
	return interArea / (area1 + area2 - interArea + 1e-6)
}

// nonMaxSuppression 同类别内的非极大抑制，结果按分数从高到低排列
func nonMaxSuppression(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	var keep []Detection
	for _, current := range detections {
		suppressed := false
		for _, kept := range keep {
			if kept.ClassID == current.ClassID && iou(current.Box, kept.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			keep = append(keep, current)
		}
	}
	return keep
}
