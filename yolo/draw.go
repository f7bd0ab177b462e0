package yolo

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// baseFontScale basicfont.Face7x13 原始大小对应的字体比例
const baseFontScale = 0.8

// LabelStyle 检测框和标签的绘制样式
type LabelStyle struct {
	BoxColor  color.RGBA // 同时作为标签背景色
	TextColor color.RGBA
	Thickness int
	FontScale float64
	DrawBoxes bool
	DrawLabel bool
}

// DefaultLabelStyle 默认样式：绿色框、黑色文字、线宽2
func DefaultLabelStyle() LabelStyle {
	return LabelStyle{
		BoxColor:  color.RGBA{0, 255, 0, 255},
		TextColor: color.RGBA{0, 0, 0, 255},
		Thickness: 2,
		FontScale: baseFontScale,
		DrawBoxes: true,
		DrawLabel: true,
	}
}

// StyleFromOptions 根据检测选项生成绘制样式，无法解析的颜色保持默认值
func StyleFromOptions(options *DetectionOptions) LabelStyle {
	style := DefaultLabelStyle()
	if options == nil {
		return style
	}
	if c, ok := parseColor(options.BoxColor); ok {
		style.BoxColor = c
	}
	if c, ok := parseColor(options.LabelColor); ok {
		style.TextColor = c
	}
	if options.LineWidth > 0 {
		style.Thickness = options.LineWidth
	}
	if options.FontScale > 0 {
		style.FontScale = options.FontScale
	}
	style.DrawBoxes = options.DrawBoxes
	style.DrawLabel = options.DrawLabels
	return style
}

// parseColor 解析颜色名称或 #rrggbb
func parseColor(colorStr string) (color.RGBA, bool) {
	s := strings.ToLower(strings.TrimSpace(colorStr))
	switch s {
	case "red":
		return color.RGBA{255, 0, 0, 255}, true
	case "green":
		return color.RGBA{0, 255, 0, 255}, true
	case "blue":
		return color.RGBA{0, 0, 255, 255}, true
	case "yellow":
		return color.RGBA{255, 255, 0, 255}, true
	case "cyan":
		return color.RGBA{0, 255, 255, 255}, true
	case "magenta":
		return color.RGBA{255, 0, 255, 255}, true
	case "white":
		return color.RGBA{255, 255, 255, 255}, true
	case "black":
		return color.RGBA{0, 0, 0, 255}, true
	case "orange":
		return color.RGBA{255, 165, 0, 255}, true
	case "purple":
		return color.RGBA{128, 0, 128, 255}, true
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, true
}

// DetectionLabel 标签文本，例如 "person 0.87"
func DetectionLabel(det Detection) string {
	return fmt.Sprintf("%s %.2f", det.Class, det.Score)
}

// DrawDetection 在图像上绘制一个检测框和标签，超出图像的部分被裁剪
func DrawDetection(img draw.Image, det Detection, style LabelStyle) {
	x1, y1 := int(det.Box[0]), int(det.Box[1])
	x2, y2 := int(det.Box[2]), int(det.Box[3])

	if style.DrawBoxes {
		drawRect(img, x1, y1, x2, y2, max(style.Thickness, 1), style.BoxColor)
	}
	if !style.DrawLabel {
		return
	}

	label := DetectionLabel(det)
	mask := renderText(label, style.FontScale)
	textWidth, textHeight := mask.width, mask.ascent

	textX := x1
	textY := y1 + textHeight + 10
	if y1-10 > textHeight {
		textY = y1 - 10
	}

	// 背景的两个角点都包含在内
	background := image.Rect(textX, textY-textHeight-5, textX+textWidth+6, textY+6)
	draw.Draw(img, background, image.NewUniform(style.BoxColor), image.Point{}, draw.Src)

	target := image.Rect(textX, textY-textHeight, textX+mask.width, textY-textHeight+mask.height)
	draw.DrawMask(img, target, image.NewUniform(style.TextColor), image.Point{}, mask.img, image.Point{}, draw.Over)
}

// DrawDetections 在图像副本上绘制全部检测结果
func DrawDetections(img image.Image, detections []Detection, style LabelStyle) *image.RGBA {
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	for _, det := range detections {
		DrawDetection(canvas, det, style)
	}
	return canvas
}

// drawRect 画矩形边框，线条以边为中心加粗
func drawRect(img draw.Image, x1, y1, x2, y2, thickness int, c color.Color) {
	src := image.NewUniform(c)
	lo := thickness / 2
	hi := thickness - lo
	edges := []image.Rectangle{
		image.Rect(x1-lo, y1-lo, x2+hi, y1+hi), // 上边
		image.Rect(x1-lo, y2-lo, x2+hi, y2+hi), // 下边
		image.Rect(x1-lo, y1-lo, x1+hi, y2+hi), // 左边
		image.Rect(x2-lo, y1-lo, x2+hi, y2+hi), // 右边
	}
	for _, edge := range edges {
		draw.Draw(img, edge, src, image.Point{}, draw.Src)
	}
}

type textMask struct {
	img    image.Image
	width  int
	height int
	ascent int
}

// renderText 将文本渲染为alpha遮罩，按字体比例缩放
func renderText(label string, fontScale float64) textMask {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()
	width := font.MeasureString(face, label).Ceil()

	mask := image.NewAlpha(image.Rect(0, 0, max(width, 1), ascent+descent))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(label)

	scale := fontScale / baseFontScale
	if scale <= 0 || scale == 1 {
		return textMask{img: mask, width: mask.Rect.Dx(), height: mask.Rect.Dy(), ascent: ascent}
	}

	w := max(int(float64(mask.Rect.Dx())*scale), 1)
	h := max(int(float64(mask.Rect.Dy())*scale), 1)
	scaled := imaging.Resize(mask, w, h, imaging.NearestNeighbor)
	return textMask{img: scaled, width: w, height: h, ascent: max(int(float64(ascent)*scale), 1)}
}
