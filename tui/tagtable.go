package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"signaltap/plcman"
	"signaltap/tagfilter"
)

// TagTable shows the scanned tags with their live values, narrowed by the
// filter text, the unreadable toggle, and the type checkboxes.
type TagTable struct {
	app        *App
	flex       *tview.Flex
	filter     *tview.InputField
	hideBox    *tview.Checkbox
	typeBoxes  []*tview.Checkbox
	typeNames  []string
	table      *tview.Table
	statusLine *tview.TextView

	state tagfilter.FilterState
	last  plcman.Snapshot
}

// NewTagTable creates the tag table with one checkbox per type in types.
func NewTagTable(app *App, types []string, hideUnreadable bool) *TagTable {
	if len(types) == 0 {
		types = tagfilter.DefaultTypes
	}
	t := &TagTable{
		app:   app,
		state: tagfilter.NewFilterState(types),
	}
	t.state.HideUnreadable = hideUnreadable
	for _, typ := range types {
		t.typeNames = append(t.typeNames, strings.ToUpper(strings.TrimSpace(typ)))
	}
	t.setupUI()
	return t
}

func (t *TagTable) setupUI() {
	th := t.app.theme

	t.filter = tview.NewInputField().
		SetLabel("Filter: ").
		SetPlaceholder("name, type or value").
		SetFieldWidth(30)
	t.filter.SetChangedFunc(func(text string) {
		t.state.Text = text
		t.render()
	})
	ApplyInputFieldTheme(t.filter, th)

	t.hideBox = tview.NewCheckbox().
		SetLabel(HideUnreadableLabel + " ").
		SetChecked(t.state.HideUnreadable)
	t.hideBox.SetChangedFunc(func(checked bool) {
		t.state.HideUnreadable = checked
		t.render()
	})
	ApplyCheckboxTheme(t.hideBox, th)

	controls := tview.NewFlex().
		AddItem(t.filter, 40, 0, false).
		AddItem(nil, 2, 0, false).
		AddItem(t.hideBox, len(HideUnreadableLabel)+5, 0, false).
		AddItem(nil, 0, 1, false)

	types := tview.NewFlex()
	types.AddItem(tview.NewTextView().SetText("Types: ").SetTextColor(th.TextDim), 7, 0, false)
	for _, name := range t.typeNames {
		typ := name
		box := tview.NewCheckbox().
			SetLabel(typ + " ").
			SetChecked(t.state.TypeEnabled[typ])
		box.SetChangedFunc(func(checked bool) {
			t.state.SetType(typ, checked)
			t.render()
		})
		ApplyCheckboxTheme(box, th)
		t.typeBoxes = append(t.typeBoxes, box)
		types.AddItem(box, len(typ)+5, 0, false)
	}
	types.AddItem(nil, 0, 1, false)

	t.table = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	t.table.SetBorder(true).SetTitle(" Tags ")
	t.table.SetInputCapture(t.handleKeys)

	t.statusLine = tview.NewTextView().
		SetDynamicColors(true).
		SetTextColor(th.TextDim)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(controls, 1, 0, false).
		AddItem(types, 1, 0, false).
		AddItem(t.table, 0, 1, true).
		AddItem(t.statusLine, 1, 0, false)

	t.linkFocus()
	t.applyTableTheme(th)
	t.render()
}

// linkFocus chains Tab through filter, unreadable toggle and type boxes,
// returning to the table after the last one. Escape always returns.
func (t *TagTable) linkFocus() {
	next := func(i int) tview.Primitive {
		if i < len(t.typeBoxes) {
			return t.typeBoxes[i]
		}
		return t.table
	}
	t.filter.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyTab {
			t.app.app.SetFocus(t.hideBox)
			return
		}
		t.app.app.SetFocus(t.table)
	})
	t.hideBox.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyTab {
			t.app.app.SetFocus(next(0))
			return
		}
		t.app.app.SetFocus(t.table)
	})
	for i, box := range t.typeBoxes {
		i := i
		box.SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyTab {
				t.app.app.SetFocus(next(i + 1))
				return
			}
			t.app.app.SetFocus(t.table)
		})
	}
}

func (t *TagTable) handleKeys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyTab {
		t.app.app.SetFocus(t.filter)
		return nil
	}
	switch event.Rune() {
	case '/':
		t.app.app.SetFocus(t.filter)
		return nil
	case 'c':
		t.filter.SetText("")
		return nil
	case 'u':
		t.hideBox.SetChecked(!t.hideBox.IsChecked())
		return nil
	case 's':
		t.app.connect.submit()
		return nil
	case 'i':
		t.app.app.SetFocus(t.app.connect.ipField)
		return nil
	}
	return event
}

// GetFocusable returns the primitive that takes focus for this view.
func (t *TagTable) GetFocusable() tview.Primitive {
	return t.table
}

// State returns a copy of the current filter selection.
func (t *TagTable) State() tagfilter.FilterState {
	return t.state.Clone()
}

// Refresh re-renders the table from snap.
func (t *TagTable) Refresh(snap plcman.Snapshot) {
	t.last = snap
	t.render()
}

func (t *TagTable) render() {
	th := t.app.theme
	snap := t.last

	t.table.Clear()
	headers := []string{"Name", "Type", "Value"}
	for i, h := range headers {
		t.table.SetCell(0, i, tview.NewTableCell(h).
			SetStyle(th.HeaderStyle()).
			SetSelectable(false).
			SetExpansion(1))
	}

	if len(snap.Tags) == 0 {
		t.table.SetCell(1, 0, tview.NewTableCell(NoTagsText).
			SetTextColor(th.TextDim).
			SetSelectable(false))
		t.statusLine.SetText("")
		return
	}

	rows := tagfilter.Apply(snap.Tags, snap.Values, t.state)
	for i, r := range rows {
		row := i + 1
		valueColor := th.Text
		if r.Unreadable() {
			valueColor = th.Error
		}
		t.table.SetCell(row, 0, tview.NewTableCell(tview.Escape(r.Name)).SetTextColor(th.Text).SetExpansion(1))
		t.table.SetCell(row, 1, tview.NewTableCell(r.Type).SetTextColor(th.TextDim).SetExpansion(1))
		t.table.SetCell(row, 2, tview.NewTableCell(tview.Escape(r.Value)).SetTextColor(valueColor).SetExpansion(1))
	}

	t.statusLine.SetText(fmt.Sprintf(" %d of %d tags shown", len(rows), len(snap.Tags)))
}

func (t *TagTable) applyTableTheme(th Theme) {
	ApplyBoxTheme(t.table.Box, th)
	t.table.SetSelectedStyle(tcell.StyleDefault.Foreground(th.SelectedText).Background(th.Accent))
	t.statusLine.SetTextColor(th.TextDim)
	t.statusLine.SetBackgroundColor(th.Background)
}

// RefreshTheme updates theme-dependent UI elements.
func (t *TagTable) RefreshTheme(th Theme) {
	ApplyInputFieldTheme(t.filter, th)
	ApplyCheckboxTheme(t.hideBox, th)
	for _, b := range t.typeBoxes {
		ApplyCheckboxTheme(b, th)
	}
	t.applyTableTheme(th)
	t.render()
}
