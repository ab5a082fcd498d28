package ui

import "github.com/gdamore/tcell/v2"

// Colors - Midnight Commander style
var (
	ColorBg        = tcell.NewRGBColor(0, 0, 128)     // Dark blue background
	ColorFg        = tcell.NewRGBColor(192, 192, 192) // Light gray text
	ColorField     = tcell.NewRGBColor(0, 0, 64)
	ColorBar       = tcell.NewRGBColor(0, 128, 128)
	ColorBorder    = tcell.NewRGBColor(0, 255, 255)
	ColorTitle     = tcell.NewRGBColor(255, 255, 255)
	ColorHighlight = tcell.NewRGBColor(0, 255, 255)
	ColorDisabled  = tcell.NewRGBColor(64, 64, 96)
)

// Color tags used inside dynamic-colour text views.
const (
	tagMine    = "[yellow]"
	tagOther   = "[aqua]"
	tagStamp   = "[gray]"
	tagOnline  = "[green]"
	tagOffline = "[gray]"
	tagUnread  = "[red]"
	tagReset   = "[-]"
)
