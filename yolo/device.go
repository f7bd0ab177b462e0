package yolo

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// Device 推理设备
type Device string

const (
	DeviceAuto     Device = "auto"
	DeviceCUDA     Device = "cuda"
	DeviceCoreML   Device = "coreml" // Apple芯片上的Metal加速
	DeviceDirectML Device = "directml"
	DeviceCPU      Device = "cpu"
)

// autoDeviceOrder 自动选择时的探测顺序
var autoDeviceOrder = []Device{DeviceCUDA, DeviceCoreML, DeviceDirectML}

// ParseDevice 解析设备名称（mps 视为 coreml）
func ParseDevice(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return DeviceAuto, nil
	case "cuda", "gpu":
		return DeviceCUDA, nil
	case "coreml", "mps", "metal":
		return DeviceCoreML, nil
	case "directml", "dml":
		return DeviceDirectML, nil
	case "cpu":
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("不支持的设备: %s", name)
	}
}

// 全局变量用于管理ONNX Runtime环境
var (
	ortInitialized bool
	ortMutex       sync.Mutex
)

// InitRuntime 线程安全地初始化ONNX Runtime（进程内只初始化一次）
func InitRuntime(libraryPath string) error {
	ortMutex.Lock()
	defer ortMutex.Unlock()

	if ortInitialized {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("无法初始化ONNX Runtime: %w", err)
	}
	ortInitialized = true
	return nil
}

// DestroyEnvironment 销毁ONNX Runtime环境（在所有检测器都关闭后调用）
func DestroyEnvironment() {
	ortMutex.Lock()
	defer ortMutex.Unlock()
	if ortInitialized {
		ort.DestroyEnvironment()
		ortInitialized = false
	}
}

// appendProvider 为会话选项添加设备对应的执行提供者，CPU不需要添加
func appendProvider(options *ort.SessionOptions, device Device, gpuID int) (err error) {
	// 某些ONNX Runtime构建在不支持的提供者上会panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s 初始化发生panic: %v", device, r)
		}
	}()

	switch device {
	case DeviceCUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fmt.Errorf("创建CUDA选项失败: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := cudaOptions.Update(map[string]string{"device_id": fmt.Sprintf("%d", gpuID)}); err != nil {
			return fmt.Errorf("更新CUDA选项失败: %w", err)
		}
		return options.AppendExecutionProviderCUDA(cudaOptions)
	case DeviceCoreML:
		return options.AppendExecutionProviderCoreML(0)
	case DeviceDirectML:
		return options.AppendExecutionProviderDirectML(gpuID)
	case DeviceCPU:
		return nil
	default:
		return fmt.Errorf("不支持的设备: %s", device)
	}
}

// providerCheck 检查设备是否可用，测试中可替换
var providerCheck = func(device Device, gpuID int) error {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("无法创建会话选项: %w", err)
	}
	defer options.Destroy()
	return appendProvider(options, device, gpuID)
}

// SelectDevice 选择最合适的推理设备；需要先调用 InitRuntime
// auto 时按 CUDA → CoreML → DirectML 顺序探测，全部不可用则回退到CPU；
// 明确指定的设备不可用时返回错误。
func SelectDevice(preference Device, gpuID int) (Device, error) {
	if preference == "" {
		preference = DeviceAuto
	}

	switch preference {
	case DeviceCPU:
		return DeviceCPU, nil
	case DeviceAuto:
		for _, device := range autoDeviceOrder {
			err := providerCheck(device, gpuID)
			if err == nil {
				return device, nil
			}
			log.Debugf("%s 不可用: %v", device, err)
		}
		return DeviceCPU, nil
	default:
		if err := providerCheck(preference, gpuID); err != nil {
			return "", fmt.Errorf("设备 %s 不可用: %w", preference, err)
		}
		return preference, nil
	}
}

// cpuModelName 通过gopsutil获取CPU型号，测试中可替换
var cpuModelName = func() string {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return ""
	}
	return strings.TrimSpace(infos[0].ModelName)
}

// DeviceInfo 返回设备的可读描述，用于日志和处理摘要
func DeviceInfo(device Device, gpuID int) string {
	switch device {
	case DeviceCUDA:
		return fmt.Sprintf("CUDA (GPU %d)", gpuID)
	case DeviceCoreML:
		return "CoreML (Metal Performance Shaders)"
	case DeviceDirectML:
		return fmt.Sprintf("DirectML (GPU %d)", gpuID)
	default:
		if name := cpuModelName(); name != "" {
			return fmt.Sprintf("CPU (%s)", name)
		}
		return "CPU"
	}
}

// PrintDeviceInfo 输出正在使用的设备
func PrintDeviceInfo(device Device, gpuID int) {
	log.Infof("🖥️  使用设备: %s", device)
	switch device {
	case DeviceCUDA:
		log.Infof("🚀 CUDA设备: GPU %d", gpuID)
	case DeviceCoreML:
		log.Info("🍎 使用 CoreML (Metal Performance Shaders)")
	case DeviceDirectML:
		log.Infof("🚀 DirectML设备: GPU %d", gpuID)
	default:
		log.Infof("💻 %s", DeviceInfo(device, gpuID))
	}
}
