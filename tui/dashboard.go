package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"signaltap/plcman"
	"signaltap/tagfilter"
)

// Dashboard lists every tag that has a value, unfiltered.
type Dashboard struct {
	app     *App
	flex    *tview.Flex
	summary *tview.TextView
	table   *tview.Table
}

// NewDashboard creates the live values page.
func NewDashboard(app *App) *Dashboard {
	d := &Dashboard{app: app}
	d.setupUI()
	return d
}

func (d *Dashboard) setupUI() {
	d.summary = tview.NewTextView().SetDynamicColors(true)

	d.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	d.table.SetBorder(true).SetTitle(" Live Values ")

	d.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.summary, 1, 0, false).
		AddItem(d.table, 0, 1, true)

	d.RefreshTheme(d.app.theme)
	d.Refresh(plcman.Snapshot{})
}

// GetFocusable returns the primitive that takes focus for this view.
func (d *Dashboard) GetFocusable() tview.Primitive {
	return d.table
}

// Refresh re-renders the dashboard from snap.
func (d *Dashboard) Refresh(snap plcman.Snapshot) {
	th := d.app.theme
	rows := tagfilter.WithValues(snap.Rows())

	d.summary.SetText(pollSummary(th, snap))

	d.table.Clear()
	d.table.SetCell(0, 0, tview.NewTableCell("Tag").SetStyle(th.HeaderStyle()).SetSelectable(false).SetExpansion(1))
	d.table.SetCell(0, 1, tview.NewTableCell("Value").SetStyle(th.HeaderStyle()).SetSelectable(false).SetExpansion(2))

	if len(rows) == 0 {
		d.table.SetCell(1, 0, tview.NewTableCell(NoValuesText).SetTextColor(th.TextDim).SetSelectable(false))
		return
	}
	for i, r := range rows {
		valueColor := th.Accent
		if r.Unreadable() {
			valueColor = th.Error
		}
		d.table.SetCell(i+1, 0, tview.NewTableCell(tview.Escape(r.Name)).SetTextColor(th.Text).SetExpansion(1))
		d.table.SetCell(i+1, 1, tview.NewTableCell(tview.Escape(r.Value)).SetTextColor(valueColor).SetExpansion(2))
	}
}

// pollSummary describes the poll loop in one line.
func pollSummary(th Theme, snap plcman.Snapshot) string {
	if snap.Target.Address == "" {
		return " " + th.TagTextDim + "No PLC selected" + th.TagReset
	}
	text := fmt.Sprintf(" %s  %s", snap.Target, statusIndicator(th, snap.Status))
	if !snap.LastPoll.IsZero() {
		text += fmt.Sprintf("  %s%s%s last read %s, %d reads",
			th.TagTextDim, th.Separator, th.TagReset, snap.LastPoll.Format("15:04:05"), snap.Polls)
	}
	if snap.PollErrors > 0 {
		text += fmt.Sprintf(", %s%d failed%s", th.TagError, snap.PollErrors, th.TagReset)
		if snap.LastPollErr != "" {
			text += ": " + tview.Escape(snap.LastPollErr)
		}
	}
	return text
}

// RefreshTheme updates theme-dependent UI elements.
func (d *Dashboard) RefreshTheme(th Theme) {
	ApplyBoxTheme(d.table.Box, th)
	d.table.SetSelectedStyle(tcell.StyleDefault.Foreground(th.SelectedText).Background(th.Accent))
	d.summary.SetTextColor(th.Text)
	d.summary.SetBackgroundColor(th.Background)
}
