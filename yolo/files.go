package yolo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultOutputBase 默认输出根目录
const DefaultOutputBase = "output_results"

var (
	// ErrNoImages 文件夹中没有可处理的图片
	ErrNoImages = errors.New("文件夹中没有找到图片")
	// ErrUnsupportedInput 无法识别的输入类型
	ErrUnsupportedInput = errors.New("不支持的输入类型")
)

// InputType 输入类型
type InputType string

const (
	InputImage   InputType = "image"
	InputVideo   InputType = "video"
	InputFolder  InputType = "folder"
	InputUnknown InputType = "unknown"
)

// NamingStyle 输出文件命名方式
type NamingStyle string

const (
	NamePrefixed NamingStyle = "prefixed" // processed_<name>
	NameSuffixed NamingStyle = "suffixed" // <stem>_result<ext>
)

var (
	// folderImageExtensions 文件夹批处理时收集的图片扩展名
	folderImageExtensions = []string{".jpg", ".jpeg", ".png"}
	imageExtensions       = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}
	videoExtensions       = []string{".mp4", ".avi", ".mov", ".mkv", ".m4v", ".webm", ".flv", ".wmv", ".mpg", ".mpeg"}
)

// SupportedExtensions 可选择的图片和视频扩展名
func SupportedExtensions() []string {
	return lo.Flatten([][]string{imageExtensions, videoExtensions})
}

// nowFunc 当前时间，测试中可替换
var nowFunc = time.Now

// CreateOutputDir 在 base 下创建 run_YYYYMMDD_HHMMSS 目录
func CreateOutputDir(base string) (string, error) {
	if base == "" {
		base = DefaultOutputBase
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputDir := filepath.Join(base, "run_"+nowFunc().Format("20060102_150405"))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	return outputDir, nil
}

func hasExtension(path string, extensions []string) bool {
	return lo.Contains(extensions, strings.ToLower(filepath.Ext(path)))
}

// IsImageFile 判断是否为图片文件
func IsImageFile(path string) bool {
	return hasExtension(path, imageExtensions)
}

// IsVideoFile 判断是否为视频文件
func IsVideoFile(path string) bool {
	return hasExtension(path, videoExtensions)
}

// GetImageFiles 获取文件夹中的图片（不递归），按文件名排序
func GetImageFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("读取文件夹失败: %w", err)
	}

	images := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		if entry.IsDir() || !hasExtension(entry.Name(), folderImageExtensions) {
			return "", false
		}
		return filepath.Join(folder, entry.Name()), true
	})
	sort.Strings(images)
	return images, nil
}

// DetectInputType 判断输入路径的类型
func DetectInputType(path string) InputType {
	info, err := os.Stat(path)
	if err != nil {
		return InputUnknown
	}

	if info.IsDir() {
		if images, err := GetImageFiles(path); err == nil && len(images) > 0 {
			return InputFolder
		}
		return InputUnknown
	}

	switch {
	case IsImageFile(path):
		return InputImage
	case IsVideoFile(path):
		return InputVideo
	default:
		return InputUnknown
	}
}

// OutputName 根据命名方式生成输出文件名
func OutputName(inputPath string, style NamingStyle) string {
	name := filepath.Base(inputPath)
	if style == NameSuffixed {
		ext := filepath.Ext(name)
		return strings.TrimSuffix(name, ext) + "_result" + ext
	}
	return "processed_" + name
}
