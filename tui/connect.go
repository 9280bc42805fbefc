package tui

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"signaltap/plcman"
)

// ConnectForm collects the PLC address and slot and submits scans.
type ConnectForm struct {
	app       *App
	flex      *tview.Flex
	ipField   *tview.InputField
	slotField *tview.InputField
	scanBtn   *tview.Button
	errorLine *tview.TextView

	// set while the fields are filled programmatically
	loading bool
}

// NewConnectForm creates the connect form, prefilled with target.
func NewConnectForm(app *App, target plcman.Target) *ConnectForm {
	f := &ConnectForm{app: app}
	f.setupUI()
	f.SetTarget(target)
	return f
}

func (f *ConnectForm) setupUI() {
	th := f.app.theme

	f.ipField = tview.NewInputField().
		SetLabel("PLC IP: ").
		SetPlaceholder("192.168.1.10").
		SetFieldWidth(18)
	f.ipField.SetChangedFunc(func(string) { f.targetChanged() })
	f.ipField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			f.submit()
		}
	})
	ApplyInputFieldTheme(f.ipField, th)

	f.slotField = tview.NewInputField().
		SetLabel("Slot: ").
		SetText("0").
		SetFieldWidth(4).
		SetAcceptanceFunc(acceptDigits)
	f.slotField.SetChangedFunc(func(string) { f.targetChanged() })
	f.slotField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			f.submit()
		}
	})
	ApplyInputFieldTheme(f.slotField, th)

	f.scanBtn = tview.NewButton(ScanButtonLabel).SetSelectedFunc(f.submit)
	ApplyButtonTheme(f.scanBtn, th)

	f.errorLine = tview.NewTextView().
		SetDynamicColors(true).
		SetTextColor(th.Error)

	row := tview.NewFlex().
		AddItem(f.ipField, 26, 0, true).
		AddItem(nil, 2, 0, false).
		AddItem(f.slotField, 10, 0, false).
		AddItem(nil, 2, 0, false).
		AddItem(f.scanBtn, len(ScanButtonLabel)+4, 0, false).
		AddItem(nil, 0, 1, false)

	f.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(row, 1, 0, true).
		AddItem(f.errorLine, 1, 0, false)
	f.flex.SetBorder(true).SetTitle(" Connect ")
	ApplyBoxTheme(f.flex.Box, th)

	// Tab cycles through the three controls
	cycle := func(next func() tview.Primitive) func(*tcell.EventKey) *tcell.EventKey {
		return func(event *tcell.EventKey) *tcell.EventKey {
			if event.Key() == tcell.KeyTab {
				f.app.app.SetFocus(next())
				return nil
			}
			if event.Key() == tcell.KeyEscape {
				f.app.focusCurrentTab()
				return nil
			}
			return event
		}
	}
	f.ipField.SetInputCapture(cycle(func() tview.Primitive { return f.slotField }))
	f.slotField.SetInputCapture(cycle(func() tview.Primitive { return f.scanBtn }))
	f.scanBtn.SetInputCapture(cycle(func() tview.Primitive { return f.app.tagTable.GetFocusable() }))
}

// Target returns the target described by the fields.
func (f *ConnectForm) Target() plcman.Target {
	return plcman.Target{
		Address: strings.TrimSpace(f.ipField.GetText()),
		Slot:    ParseSlot(f.slotField.GetText()),
	}
}

// SetTarget fills the fields without reporting a change.
func (f *ConnectForm) SetTarget(t plcman.Target) {
	f.loading = true
	f.ipField.SetText(t.Address)
	f.slotField.SetText(strconv.Itoa(t.Slot))
	f.loading = false
}

func (f *ConnectForm) targetChanged() {
	if f.loading {
		return
	}
	f.app.engine.SetTarget(f.Target())
}

func (f *ConnectForm) submit() {
	t := f.Target()
	if t.Address == "" {
		f.errorLine.SetText("Enter a PLC IP address.")
		f.app.app.SetFocus(f.ipField)
		return
	}
	if !f.app.engine.SubmitScan(t) {
		f.app.setStatus("A scan is already running.")
		return
	}
	f.app.setStatus("Scanning " + t.String() + "...")
}

// Refresh mirrors the session: button label while scanning and the scan error.
func (f *ConnectForm) Refresh(snap plcman.Snapshot) {
	if snap.Status == plcman.StatusScanning {
		f.scanBtn.SetLabel(ScanningButtonLabel)
		f.scanBtn.SetDisabled(true)
	} else {
		f.scanBtn.SetLabel(ScanButtonLabel)
		f.scanBtn.SetDisabled(false)
	}

	if snap.Status == plcman.StatusScanFailed && snap.LastError != "" {
		f.errorLine.SetText(tview.Escape(snap.LastError))
	} else {
		f.errorLine.SetText("")
	}
}

// RefreshTheme updates theme-dependent UI elements.
func (f *ConnectForm) RefreshTheme(th Theme) {
	ApplyInputFieldTheme(f.ipField, th)
	ApplyInputFieldTheme(f.slotField, th)
	ApplyButtonTheme(f.scanBtn, th)
	ApplyBoxTheme(f.flex.Box, th)
	f.errorLine.SetTextColor(th.Error)
	f.errorLine.SetBackgroundColor(th.Background)
}
