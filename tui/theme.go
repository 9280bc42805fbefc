package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"signaltap/config"
)

// Theme holds every color and glyph the UI draws with. It is built from the
// UI config and handed to each component; nothing reads a global theme.
type Theme struct {
	Name string

	Background      tcell.Color
	FieldBackground tcell.Color
	Text            tcell.Color
	TextDim         tcell.Color
	Accent          tcell.Color
	Border          tcell.Color
	Error           tcell.Color
	Success         tcell.Color
	SelectedText    tcell.Color

	// tview color tags
	TagText       string
	TagTextDim    string
	TagAccent     string
	TagHotkey     string
	TagActionText string
	TagError      string
	TagSuccess    string
	TagReset      string

	ASCII       bool
	BoldHeaders bool
	Separator   string
	CheckOn     string
	CheckOff    string
}

var palettes = map[string]Theme{
	config.ColorDark: {
		Background:      tcell.ColorBlack,
		FieldBackground: tcell.NewRGBColor(0x26, 0x26, 0x26),
		Text:            tcell.NewRGBColor(0xe0, 0xe0, 0xe0),
		TextDim:         tcell.NewRGBColor(0x80, 0x80, 0x80),
		Accent:          tcell.NewRGBColor(0x4f, 0xc3, 0xf7),
		Border:          tcell.NewRGBColor(0x5a, 0x5a, 0x5a),
		Error:           tcell.NewRGBColor(0xef, 0x53, 0x50),
		Success:         tcell.NewRGBColor(0x66, 0xbb, 0x6a),
		SelectedText:    tcell.ColorBlack,
		TagText:         "[#e0e0e0]",
		TagTextDim:      "[#808080]",
		TagAccent:       "[#4fc3f7]",
		TagHotkey:       "[#ffca28]",
		TagActionText:   "[#b0b0b0]",
		TagError:        "[#ef5350]",
		TagSuccess:      "[#66bb6a]",
		TagReset:        "[-]",
	},
	config.ColorLight: {
		Background:      tcell.ColorWhite,
		FieldBackground: tcell.NewRGBColor(0xe8, 0xe8, 0xe8),
		Text:            tcell.NewRGBColor(0x21, 0x21, 0x21),
		TextDim:         tcell.NewRGBColor(0x75, 0x75, 0x75),
		Accent:          tcell.NewRGBColor(0x15, 0x65, 0xc0),
		Border:          tcell.NewRGBColor(0x9e, 0x9e, 0x9e),
		Error:           tcell.NewRGBColor(0xc6, 0x28, 0x28),
		Success:         tcell.NewRGBColor(0x2e, 0x7d, 0x32),
		SelectedText:    tcell.ColorWhite,
		TagText:         "[#212121]",
		TagTextDim:      "[#757575]",
		TagAccent:       "[#1565c0]",
		TagHotkey:       "[#e65100]",
		TagActionText:   "[#424242]",
		TagError:        "[#c62828]",
		TagSuccess:      "[#2e7d32]",
		TagReset:        "[-]",
	},
	config.ColorMono: {
		Background:      tcell.ColorDefault,
		FieldBackground: tcell.ColorDefault,
		Text:            tcell.ColorDefault,
		TextDim:         tcell.ColorDefault,
		Accent:          tcell.ColorDefault,
		Border:          tcell.ColorDefault,
		Error:           tcell.ColorDefault,
		Success:         tcell.ColorDefault,
		SelectedText:    tcell.ColorDefault,
		TagText:         "",
		TagTextDim:      "",
		TagAccent:       "",
		TagHotkey:       "[::u]",
		TagActionText:   "[::-]",
		TagError:        "[::b]",
		TagSuccess:      "",
		TagReset:        "[-:-:-]",
	},
}

// NewTheme builds the theme for ui. Unknown color modes fall back to dark.
func NewTheme(ui config.UIConfig) Theme {
	mode := ui.ColorMode
	th, ok := palettes[mode]
	if !ok {
		mode = config.ColorDark
		th = palettes[mode]
	}
	th.Name = mode
	th.BoldHeaders = ui.BoldHeaders
	th.ASCII = ui.ASCIIMode
	if ui.ASCIIMode {
		th.Separator = "|"
		th.CheckOn = "[x]"
		th.CheckOff = "[ ]"
	} else {
		th.Separator = "│"
		th.CheckOn = "☑"
		th.CheckOff = "☐"
	}
	return th
}

// HeaderStyle is the style for table headers and titles.
func (th Theme) HeaderStyle() tcell.Style {
	s := tcell.StyleDefault.Foreground(th.Accent).Background(th.Background)
	if th.BoldHeaders {
		s = s.Bold(true)
	}
	return s
}

// apply sets tview's global defaults so widgets created later match th.
func (th Theme) apply() {
	tview.Styles.PrimitiveBackgroundColor = th.Background
	tview.Styles.ContrastBackgroundColor = th.FieldBackground
	tview.Styles.MoreContrastBackgroundColor = th.Accent
	tview.Styles.BorderColor = th.Border
	tview.Styles.TitleColor = th.Accent
	tview.Styles.GraphicsColor = th.Border
	tview.Styles.PrimaryTextColor = th.Text
	tview.Styles.SecondaryTextColor = th.Accent
	tview.Styles.TertiaryTextColor = th.Success
	tview.Styles.InverseTextColor = th.SelectedText
	tview.Styles.ContrastSecondaryTextColor = th.TextDim

	if th.ASCII {
		tview.Borders.Horizontal = '-'
		tview.Borders.Vertical = '|'
		tview.Borders.TopLeft = '+'
		tview.Borders.TopRight = '+'
		tview.Borders.BottomLeft = '+'
		tview.Borders.BottomRight = '+'
		tview.Borders.HorizontalFocus = '='
		tview.Borders.VerticalFocus = '|'
		tview.Borders.TopLeftFocus = '+'
		tview.Borders.TopRightFocus = '+'
		tview.Borders.BottomLeftFocus = '+'
		tview.Borders.BottomRightFocus = '+'
	}
}

// ApplyInputFieldTheme applies theme colors to an input field.
func ApplyInputFieldTheme(f *tview.InputField, th Theme) {
	f.SetLabelColor(th.Text).
		SetFieldBackgroundColor(th.FieldBackground).
		SetFieldTextColor(th.Text).
		SetPlaceholderTextColor(th.TextDim)
	f.SetBackgroundColor(th.Background)
}

// ApplyCheckboxTheme applies theme colors and glyphs to a checkbox.
func ApplyCheckboxTheme(c *tview.Checkbox, th Theme) {
	c.SetLabelColor(th.Text).
		SetFieldBackgroundColor(th.Background).
		SetFieldTextColor(th.Accent).
		SetCheckedString(th.CheckOn).
		SetUncheckedString(th.CheckOff)
	c.SetBackgroundColor(th.Background)
}

// ApplyButtonTheme applies theme colors to a button.
func ApplyButtonTheme(b *tview.Button, th Theme) {
	b.SetStyle(tcell.StyleDefault.Foreground(th.Text).Background(th.FieldBackground))
	b.SetActivatedStyle(tcell.StyleDefault.Foreground(th.SelectedText).Background(th.Accent))
	b.SetDisabledStyle(tcell.StyleDefault.Foreground(th.TextDim).Background(th.FieldBackground))
}

// ApplyBoxTheme applies border and title colors to a bordered box.
func ApplyBoxTheme(b *tview.Box, th Theme) {
	b.SetBorderColor(th.Border).
		SetTitleColor(th.Accent).
		SetBackgroundColor(th.Background)
}
