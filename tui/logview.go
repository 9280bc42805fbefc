package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"signaltap/logging"
)

// LogView shows the most recent log lines kept by the ring hook.
type LogView struct {
	app       *App
	ring      *logging.Ring
	flex      *tview.Flex
	logView   *tview.TextView
	statusBar *tview.TextView
	buttonBar *tview.TextView
	shown     int
	tail      string
}

// NewLogView creates the log page. A nil ring shows an empty log.
func NewLogView(app *App, ring *logging.Ring) *LogView {
	if ring == nil {
		ring = logging.NewRing(0)
	}
	t := &LogView{app: app, ring: ring, shown: -1}
	t.setupUI()
	return t
}

func (t *LogView) setupUI() {
	t.buttonBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	t.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true)
	t.logView.SetBorder(true).SetTitle(" Log ")

	t.logView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'c', 'C':
			t.Clear()
			return nil
		case 'G':
			t.logView.ScrollToEnd()
			return nil
		case 'g':
			t.logView.ScrollToBeginning()
			return nil
		}
		return event
	})

	t.statusBar = tview.NewTextView().SetDynamicColors(true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.buttonBar, 1, 0, false).
		AddItem(t.logView, 0, 1, true).
		AddItem(t.statusBar, 1, 0, false)

	t.RefreshTheme(t.app.theme)
	t.Refresh()
}

// GetFocusable returns the primitive that takes focus for this view.
func (t *LogView) GetFocusable() tview.Primitive {
	return t.logView
}

// Refresh reloads the ring contents when they changed.
func (t *LogView) Refresh() {
	lines := t.ring.Lines()
	tail := ""
	if len(lines) > 0 {
		tail = lines[len(lines)-1]
	}
	if len(lines) == t.shown && tail == t.tail {
		return
	}
	atEnd := t.shown < 0 || t.isAtEnd()
	t.logView.SetText(strings.Join(lines, "\n"))
	t.shown = len(lines)
	t.tail = tail
	if atEnd {
		t.logView.ScrollToEnd()
	}
	t.updateStatusBar()
}

func (t *LogView) isAtEnd() bool {
	row, _ := t.logView.GetScrollOffset()
	_, _, _, height := t.logView.GetInnerRect()
	return row+height >= t.logView.GetOriginalLineCount()
}

// Clear empties the ring and the view.
func (t *LogView) Clear() {
	t.ring.Clear()
	t.logView.Clear()
	t.shown = 0
	t.tail = ""
	t.updateStatusBar()
}

func (t *LogView) updateStatusBar() {
	t.statusBar.SetText(fmt.Sprintf(" %d log lines", t.ring.Len()))
}

func (t *LogView) updateButtonBar() {
	th := t.app.theme
	t.buttonBar.SetText(" " + th.TagHotkey + "c" + th.TagActionText + "lear  " +
		th.TagHotkey + "g" + th.TagActionText + " top  " +
		th.TagHotkey + "G" + th.TagActionText + " bottom  " +
		th.TagActionText + th.Separator + "  " +
		th.TagHotkey + "?" + th.TagActionText + " help " + th.TagReset)
}

// RefreshTheme updates theme-dependent UI elements.
func (t *LogView) RefreshTheme(th Theme) {
	t.updateButtonBar()
	ApplyBoxTheme(t.logView.Box, th)
	t.logView.SetTextColor(th.Text)
	t.statusBar.SetTextColor(th.TextDim)
	t.statusBar.SetBackgroundColor(th.Background)
	t.buttonBar.SetBackgroundColor(th.Background)
}
