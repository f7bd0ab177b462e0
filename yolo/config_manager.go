package yolo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用程序配置
type AppConfig struct {
	YOLO      YOLOConfig       `yaml:"yolo"`
	Detection DetectionOptions `yaml:"detection"`
	Output    OutputOptions    `yaml:"output"`
	Log       LogConfig        `yaml:"log"`
	Classes   []string         `yaml:"classes"`
}

// ConfigManager 配置管理器
type ConfigManager struct {
	config *AppConfig
	path   string
}

// NewConfigManager 创建配置管理器
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		path: configPath,
	}
}

// DefaultAppConfig 返回完整的默认配置
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		YOLO:      *DefaultConfig(),
		Detection: *DefaultDetectionOptions(),
		Output:    *DefaultOutputOptions(),
		Log:       DefaultLogConfig(),
	}
}

// LoadConfig 加载配置文件，未出现在文件中的字段保持默认值
func (cm *ConfigManager) LoadConfig() error {
	data, err := os.ReadFile(cm.path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := DefaultAppConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	cm.config = cfg
	return nil
}

// LoadOrDefault 加载配置文件；文件不存在时使用默认配置，autoCreate 为 true 时顺便写出默认文件
func (cm *ConfigManager) LoadOrDefault(autoCreate bool) error {
	err := cm.LoadConfig()
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	log.Warnf("⚠️  配置文件 %s 不存在，使用默认配置", cm.path)
	if autoCreate {
		return cm.CreateDefaultConfig()
	}
	cm.config = DefaultAppConfig()
	return nil
}

// SaveConfig 保存配置文件
func (cm *ConfigManager) SaveConfig() error {
	if cm.config == nil {
		return fmt.Errorf("没有可保存的配置")
	}

	data, err := yaml.Marshal(cm.config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(cm.path, data, 0644); err != nil {
		return fmt.Errorf("保存配置文件失败: %w", err)
	}

	return nil
}

// CreateDefaultConfig 创建默认配置文件
func (cm *ConfigManager) CreateDefaultConfig() error {
	cm.config = DefaultAppConfig()
	cm.config.Classes = COCOClasses()
	return cm.SaveConfig()
}

// Config 返回当前配置（未加载时为默认配置）
func (cm *ConfigManager) Config() *AppConfig {
	if cm.config == nil {
		cm.config = DefaultAppConfig()
	}
	return cm.config
}

// GetYOLOConfig 获取YOLO配置
func (cm *ConfigManager) GetYOLOConfig() *YOLOConfig {
	return &cm.Config().YOLO
}

// GetDetectionOptions 获取检测选项
func (cm *ConfigManager) GetDetectionOptions() *DetectionOptions {
	return &cm.Config().Detection
}

// GetOutputOptions 获取输出配置
func (cm *ConfigManager) GetOutputOptions() *OutputOptions {
	return &cm.Config().Output
}

// GetLogConfig 获取日志配置
func (cm *ConfigManager) GetLogConfig() LogConfig {
	return cm.Config().Log
}

// GetClasses 获取类别列表，配置中没有时返回COCO类别
func (cm *ConfigManager) GetClasses() []string {
	if classes := cm.Config().Classes; len(classes) > 0 {
		return classes
	}
	return COCOClasses()
}
