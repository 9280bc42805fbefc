package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// OutputsTab lists the configured MQTT, Valkey and Kafka republishers.
type OutputsTab struct {
	app       *App
	flex      *tview.Flex
	table     *tview.Table
	buttonBar *tview.TextView
	statusBar *tview.TextView
}

// NewOutputsTab creates the outputs page.
func NewOutputsTab(app *App) *OutputsTab {
	t := &OutputsTab{app: app}
	t.setupUI()
	return t
}

func (t *OutputsTab) setupUI() {
	t.buttonBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	t.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	t.table.SetBorder(true).SetTitle(" Outputs ")
	t.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'c':
			if err := t.app.engine.ConnectOutputs(); err != nil {
				t.app.setStatus("Connect failed: " + err.Error())
			} else {
				t.app.setStatus("Connecting enabled outputs...")
			}
			return nil
		case 'C':
			if err := t.app.engine.DisconnectOutputs(); err != nil {
				t.app.setStatus("Disconnect failed: " + err.Error())
			} else {
				t.app.setStatus("Outputs disconnected.")
			}
			t.Refresh()
			return nil
		}
		return event
	})

	t.statusBar = tview.NewTextView().SetDynamicColors(true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.buttonBar, 1, 0, false).
		AddItem(t.table, 0, 1, true).
		AddItem(t.statusBar, 1, 0, false)

	t.RefreshTheme(t.app.theme)
	t.Refresh()
}

// GetFocusable returns the primitive that takes focus for this view.
func (t *OutputsTab) GetFocusable() tview.Primitive {
	return t.table
}

// Refresh re-reads the republisher states.
func (t *OutputsTab) Refresh() {
	th := t.app.theme
	outs := t.app.engine.Outputs()

	t.table.Clear()
	for i, h := range []string{"", "Kind", "Name", "Address", "Status", "Detail"} {
		t.table.SetCell(0, i, tview.NewTableCell(h).SetStyle(th.HeaderStyle()).SetSelectable(false).SetExpansion(1))
	}
	t.table.GetCell(0, 0).SetExpansion(0)

	if len(outs) == 0 {
		t.table.SetCell(1, 1, tview.NewTableCell("No outputs configured.").SetTextColor(th.TextDim).SetSelectable(false))
		t.statusBar.SetText(" Add mqtt, valkey or kafka sections to the config file.")
		return
	}

	running := 0
	for i, o := range outs {
		row := i + 1
		indicator, status := th.TagTextDim+"○"+th.TagReset, "Stopped"
		switch {
		case o.Running:
			indicator, status = th.TagSuccess+"●"+th.TagReset, "Running"
			running++
		case !o.Enabled:
			status = "Disabled"
		}
		if th.ASCII {
			indicator = "-"
			if o.Running {
				indicator = "*"
			}
		}
		t.table.SetCell(row, 0, tview.NewTableCell(indicator).SetExpansion(0))
		t.table.SetCell(row, 1, tview.NewTableCell(o.Kind).SetTextColor(th.TextDim).SetExpansion(1))
		t.table.SetCell(row, 2, tview.NewTableCell(tview.Escape(o.Name)).SetTextColor(th.Text).SetExpansion(1))
		t.table.SetCell(row, 3, tview.NewTableCell(tview.Escape(o.Address)).SetTextColor(th.Text).SetExpansion(2))
		t.table.SetCell(row, 4, tview.NewTableCell(status).SetTextColor(th.Text).SetExpansion(1))
		t.table.SetCell(row, 5, tview.NewTableCell(tview.Escape(o.Detail)).SetTextColor(th.TextDim).SetExpansion(2))
	}
	t.statusBar.SetText(fmt.Sprintf(" %d outputs, %d running", len(outs), running))
}

func (t *OutputsTab) updateButtonBar() {
	th := t.app.theme
	t.buttonBar.SetText(" " + th.TagHotkey + "c" + th.TagActionText + "onnect  " +
		th.TagHotkey + "C" + th.TagActionText + " disconnect  " +
		th.TagActionText + th.Separator + "  " +
		th.TagHotkey + "?" + th.TagActionText + " help " + th.TagReset)
}

// RefreshTheme updates theme-dependent UI elements.
func (t *OutputsTab) RefreshTheme(th Theme) {
	t.updateButtonBar()
	ApplyBoxTheme(t.table.Box, th)
	t.table.SetSelectedStyle(tcell.StyleDefault.Foreground(th.SelectedText).Background(th.Accent))
	t.statusBar.SetTextColor(th.Text)
	t.statusBar.SetBackgroundColor(th.Background)
	t.buttonBar.SetBackgroundColor(th.Background)
}
