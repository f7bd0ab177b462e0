package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cubiaa/yolo-detect/yolo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestRootCmdRequiresOneInput(t *testing.T) {
	err := execute(t)
	assert.ErrorContains(t, err, "image folder video")
}

func TestRootCmdRejectsMultipleInputs(t *testing.T) {
	err := execute(t, "--image", "a.jpg", "--video", "b.mp4")
	assert.ErrorContains(t, err, "were all set")
}

func TestRootCmdMissingInput(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope.jpg")

	err := execute(t,
		"--image", missing,
		"--config", filepath.Join(dir, "config.yaml"),
		"--output", filepath.Join(dir, "out"),
	)

	assert.EqualError(t, err, "Image not found at "+missing)
}

func TestRootCmdInvalidDevice(t *testing.T) {
	dir := t.TempDir()
	err := execute(t, "--image", "a.jpg", "--device", "tpu", "--config", filepath.Join(dir, "config.yaml"))
	assert.ErrorContains(t, err, "tpu")
}

func changedFlags(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestApplyOverridesConfig(t *testing.T) {
	cm := yolo.NewConfigManager("")
	opts := &cliOptions{
		conf:          0.4,
		iou:           0.5,
		device:        "mps",
		gpuID:         1,
		output:        "runs",
		allDetections: true,
		keepAudio:     true,
		ortLib:        "/opt/onnxruntime.so",
		logLevel:      "debug",
		changed:       changedFlags("conf", "iou", "device", "gpu-id", "output"),
	}

	require.NoError(t, opts.apply(cm))

	cfg := cm.Config()
	assert.InDelta(t, 0.4, cfg.Detection.ConfThreshold, 1e-6)
	assert.InDelta(t, 0.5, cfg.Detection.IOUThreshold, 1e-6)
	assert.False(t, cfg.Detection.BestPerClass)
	assert.True(t, cfg.Output.KeepAudio)
	assert.Equal(t, yolo.DeviceCoreML, cfg.YOLO.Device)
	assert.Equal(t, 1, cfg.YOLO.GPUDeviceID)
	assert.Equal(t, "/opt/onnxruntime.so", cfg.YOLO.LibraryPath)
	assert.Equal(t, "runs", cfg.Output.BaseDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyKeepsConfigWhenFlagsUnset(t *testing.T) {
	cm := yolo.NewConfigManager("")
	cm.Config().Detection.ConfThreshold = 0.6
	cm.Config().Output.BaseDir = "from_file"
	cm.Config().YOLO.GPUDeviceID = 2
	opts := &cliOptions{conf: 0.25, output: yolo.DefaultOutputBase, device: "auto"}

	require.NoError(t, opts.apply(cm))

	assert.InDelta(t, 0.6, cm.Config().Detection.ConfThreshold, 1e-6)
	assert.Equal(t, "from_file", cm.Config().Output.BaseDir)
	assert.True(t, cm.Config().Detection.BestPerClass)
	assert.Equal(t, 2, cm.Config().YOLO.GPUDeviceID)
}

func TestApplyRejectsThresholdOutOfRange(t *testing.T) {
	opts := &cliOptions{conf: 1.5, changed: changedFlags("conf")}
	assert.Error(t, opts.apply(yolo.NewConfigManager("")))
}

func TestInput(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(image, []byte("x"), 0644))

	path, kind, err := (&cliOptions{image: image}).input()
	require.NoError(t, err)
	assert.Equal(t, image, path)
	assert.Equal(t, yolo.InputImage, kind)

	_, kind, err = (&cliOptions{folder: dir}).input()
	require.NoError(t, err)
	assert.Equal(t, yolo.InputFolder, kind)

	_, _, err = (&cliOptions{folder: image}).input()
	assert.ErrorIs(t, err, yolo.ErrUnsupportedInput)

	_, _, err = (&cliOptions{video: filepath.Join(dir, "v.mp4")}).input()
	assert.EqualError(t, err, "Video not found at "+filepath.Join(dir, "v.mp4"))
}
