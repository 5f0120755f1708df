//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	recordingColor  = color.RGBA{220, 40, 40, 255}
	processingColor = color.RGBA{255, 170, 0, 255}
	messageColor    = color.RGBA{255, 135, 0, 255}
)

type overlayTheme struct{}

func (overlayTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{18, 18, 18, 235}
	case theme.ColorNameForeground:
		return color.RGBA{210, 210, 210, 255}
	case theme.ColorNamePrimary:
		return recordingColor
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (overlayTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (overlayTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (overlayTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText {
		return 15
	}
	return theme.DefaultTheme().Size(name)
}
