package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/Cubiaa/yolo-detect/yolo"
)

// ControlPanel 模型选择、输入选择、操作按钮和状态显示
type ControlPanel struct {
	modelSelect *widget.Select
	inputEntry  *widget.Entry
	browseBtn   *widget.Button
	folderBtn   *widget.Button
	processBtn  *widget.Button
	cancelBtn   *widget.Button
	outputBtn   *widget.Button
	statusLabel *widget.Label
	progressBar *widget.ProgressBar
	fpsLabel    *widget.Label
	deviceLabel *widget.Label

	content fyne.CanvasObject
}

// panelActions 控制面板按钮的回调
type panelActions struct {
	onBrowse     func()
	onFolder     func()
	onProcess    func()
	onCancel     func()
	onShowOutput func()
}

func newControlPanel(actions panelActions) *ControlPanel {
	cp := &ControlPanel{}

	cp.modelSelect = widget.NewSelect(yolo.ModelChoices, nil)
	cp.modelSelect.SetSelected(yolo.DefaultModel)

	cp.inputEntry = widget.NewEntry()
	cp.inputEntry.SetPlaceHolder("Select an image, video or folder")

	cp.browseBtn = widget.NewButton("Browse", actions.onBrowse)
	cp.folderBtn = widget.NewButton("Folder", actions.onFolder)

	cp.processBtn = widget.NewButton("Process", actions.onProcess)
	cp.processBtn.Importance = widget.HighImportance
	cp.cancelBtn = widget.NewButton("Cancel", actions.onCancel)
	cp.cancelBtn.Importance = widget.DangerImportance
	cp.cancelBtn.Disable()
	cp.outputBtn = widget.NewButton("Show Output", actions.onShowOutput)
	cp.outputBtn.Disable()

	cp.statusLabel = widget.NewLabel("")
	cp.statusLabel.Wrapping = fyne.TextWrapWord
	cp.progressBar = widget.NewProgressBar()
	cp.progressBar.Max = 100
	cp.fpsLabel = widget.NewLabel("FPS: -")
	cp.deviceLabel = widget.NewLabel("Device: -")

	form := widget.NewForm(
		widget.NewFormItem("Model", cp.modelSelect),
		widget.NewFormItem("Input", container.NewBorder(nil, nil, nil,
			container.NewHBox(cp.browseBtn, cp.folderBtn), cp.inputEntry)),
	)

	cp.content = container.NewVBox(
		form,
		container.NewHBox(cp.processBtn, cp.cancelBtn, cp.outputBtn),
		container.NewBorder(nil, nil, nil, cp.fpsLabel, cp.progressBar),
		cp.deviceLabel,
		cp.statusLabel,
	)
	return cp
}

// Content 返回控制面板布局
func (cp *ControlPanel) Content() fyne.CanvasObject {
	return cp.content
}

// ModelPath 当前选择的模型
func (cp *ControlPanel) ModelPath() string {
	if cp.modelSelect.Selected == "" {
		return yolo.DefaultModel
	}
	return cp.modelSelect.Selected
}

// SelectedPath 当前输入路径
func (cp *ControlPanel) SelectedPath() string {
	return cp.inputEntry.Text
}

// SetSelectedPath 设置输入路径
func (cp *ControlPanel) SetSelectedPath(path string) {
	cp.inputEntry.SetText(path)
}

// UpdateStatus 更新状态文本
func (cp *ControlPanel) UpdateStatus(text string) {
	cp.statusLabel.SetText(text)
}

// UpdateProgress 更新进度条，fps 小于等于0时不更新FPS显示
func (cp *ControlPanel) UpdateProgress(percent, fps float64) {
	cp.progressBar.SetValue(percent)
	if fps > 0 {
		cp.fpsLabel.SetText(fmt.Sprintf("FPS: %.1f", fps))
	}
}

// UpdateDeviceInfo 显示使用的设备
func (cp *ControlPanel) UpdateDeviceInfo(device string) {
	cp.deviceLabel.SetText("Device: " + device)
}

// SetProcessing 根据处理状态切换按钮
func (cp *ControlPanel) SetProcessing(processing bool) {
	if processing {
		cp.processBtn.Disable()
		cp.cancelBtn.Enable()
		cp.outputBtn.Disable()
		cp.browseBtn.Disable()
		cp.folderBtn.Disable()
		cp.modelSelect.Disable()
		return
	}
	cp.processBtn.Enable()
	cp.cancelBtn.Disable()
	cp.browseBtn.Enable()
	cp.folderBtn.Enable()
	cp.modelSelect.Enable()
}

// EnableOutputButton 有输出目录后启用"Show Output"
func (cp *ControlPanel) EnableOutputButton() {
	cp.outputBtn.Enable()
}
