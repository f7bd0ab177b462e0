package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Palette 界面配色
type Palette struct {
	Background color.NRGBA
	Text       color.NRGBA
	Button     color.NRGBA
	Entry      color.NRGBA
	Canvas     color.NRGBA
	Danger     color.NRGBA
}

var (
	// LightPalette 浅色模式
	LightPalette = Palette{
		Background: hex(0xffffff),
		Text:       hex(0x000000),
		Button:     hex(0x007aff),
		Entry:      hex(0xf2f2f7),
		Canvas:     hex(0xf2f2f7),
		Danger:     hex(0xff3b30),
	}
	// DarkPalette 深色模式
	DarkPalette = Palette{
		Background: hex(0x1e1e1e),
		Text:       hex(0xffffff),
		Button:     hex(0x007aff),
		Entry:      hex(0x2c2c2e),
		Canvas:     hex(0x2c2c2e),
		Danger:     hex(0xff3b30),
	}
)

func hex(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// PaletteFor 根据主题变体返回配色
func PaletteFor(variant fyne.ThemeVariant) Palette {
	if variant == theme.VariantDark {
		return DarkPalette
	}
	return LightPalette
}

// appTheme 在默认主题上覆盖背景、文字、按钮、输入框和危险色
type appTheme struct {
	fyne.Theme
}

func newAppTheme() fyne.Theme {
	return &appTheme{Theme: theme.DefaultTheme()}
}

func (t *appTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	palette := PaletteFor(variant)
	switch name {
	case theme.ColorNameBackground:
		return palette.Background
	case theme.ColorNameForeground:
		return palette.Text
	case theme.ColorNamePrimary:
		return palette.Button
	case theme.ColorNameInputBackground:
		return palette.Entry
	case theme.ColorNameError:
		return palette.Danger
	}
	return t.Theme.Color(name, variant)
}

// currentVariant 当前应用使用的主题变体
func currentVariant(a fyne.App) fyne.ThemeVariant {
	return a.Settings().ThemeVariant()
}
