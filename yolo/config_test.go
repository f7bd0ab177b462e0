package yolo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDetectionOptions(t *testing.T) {
	options := DefaultDetectionOptions()

	assert.InDelta(t, 0.25, options.ConfThreshold, 1e-6)
	assert.InDelta(t, 0.7, options.IOUThreshold, 1e-6)
	assert.True(t, options.BestPerClass)
	assert.Equal(t, "green", options.BoxColor)
	assert.Equal(t, "black", options.LabelColor)
	assert.Equal(t, 2, options.LineWidth)
}

func TestInputDims(t *testing.T) {
	assert.Equal(t, [2]int{640, 640}, dims(DefaultConfig()))
	assert.Equal(t, [2]int{320, 320}, dims(DefaultConfig().WithInputSize(320)))
	assert.Equal(t, [2]int{1280, 736}, dims(DefaultConfig().WithInputDimensions(1280, 736)))
	assert.Equal(t, [2]int{640, 640}, dims(&YOLOConfig{}))
}

func dims(c *YOLOConfig) [2]int {
	w, h := c.inputDims()
	return [2]int{w, h}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cm := NewConfigManager(path)

	require.NoError(t, cm.LoadOrDefault(false))

	assert.Equal(t, DefaultAppConfig(), cm.Config())
	assert.Equal(t, COCOClasses(), cm.GetClasses())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is not created without autoCreate")
}

func TestLoadOrDefaultCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, NewConfigManager(path).LoadOrDefault(true))

	reloaded := NewConfigManager(path)
	require.NoError(t, reloaded.LoadConfig())
	assert.Len(t, reloaded.GetClasses(), 80)
	assert.Equal(t, 5*time.Second, reloaded.GetOutputOptions().ProgressInterval)
	assert.Equal(t, DeviceAuto, reloaded.GetYOLOConfig().Device)
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
yolo:
  device: cpu
detection:
  conf_threshold: 0.5
output:
  naming: suffixed
  progress_interval: 500ms
classes: [helmet, vest]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cm := NewConfigManager(path)
	require.NoError(t, cm.LoadConfig())

	assert.Equal(t, DeviceCPU, cm.GetYOLOConfig().Device)
	assert.Equal(t, 640, cm.GetYOLOConfig().InputSize)
	assert.InDelta(t, 0.5, cm.GetDetectionOptions().ConfThreshold, 1e-6)
	assert.InDelta(t, 0.7, cm.GetDetectionOptions().IOUThreshold, 1e-6)
	assert.True(t, cm.GetDetectionOptions().BestPerClass)
	assert.Equal(t, NameSuffixed, cm.GetOutputOptions().Naming)
	assert.Equal(t, 500*time.Millisecond, cm.GetOutputOptions().ProgressInterval)
	assert.Equal(t, DefaultOutputBase, cm.GetOutputOptions().BaseDir)
	assert.Equal(t, []string{"helmet", "vest"}, cm.GetClasses())
	assert.Equal(t, "info", cm.GetLogConfig().Level)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection: [unclosed"), 0644))

	cm := NewConfigManager(path)
	assert.Error(t, cm.LoadConfig())
	assert.Error(t, cm.LoadOrDefault(false), "parse errors are not treated as a missing file")
}

func TestSaveConfigWithoutConfig(t *testing.T) {
	assert.Error(t, NewConfigManager(filepath.Join(t.TempDir(), "c.yaml")).SaveConfig())
}
