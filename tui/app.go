package tui

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"signaltap/config"
	"signaltap/engine"
	"signaltap/logging"
	"signaltap/plcman"
)

// App is the main TUI application.
type App struct {
	app            *tview.Application
	pages          *tview.Pages
	header         *tview.TextView
	tabs           *tview.TextView
	statusBar      *tview.TextView
	themeIndicator *tview.TextView
	footer         *tview.TextView
	tagsPage       *tview.Flex

	connect   *ConnectForm
	tagTable  *TagTable
	dashboard *Dashboard
	outputs   *OutputsTab
	logView   *LogView

	engine *engine.Engine
	config *config.Config
	ring   *logging.Ring
	theme  Theme

	currentTab int
	tabNames   []string

	apiOnline      int32 // 0 unknown, 1 online, -1 offline
	refreshPending atomic.Bool
	subID          engine.SubscriptionID
	stopChan       chan struct{}
	stopOnce       sync.Once
}

// NewApp creates a new TUI application over a started engine. ring feeds
// the Log page and may be nil.
func NewApp(eng *engine.Engine, ring *logging.Ring) *App {
	return newApp(eng, ring, tview.NewApplication())
}

// NewAppWithScreen creates a TUI application that draws on screen.
func NewAppWithScreen(eng *engine.Engine, ring *logging.Ring, screen tcell.Screen) *App {
	return newApp(eng, ring, tview.NewApplication().SetScreen(screen))
}

func newApp(eng *engine.Engine, ring *logging.Ring, tv *tview.Application) *App {
	cfg := eng.GetConfig()
	cfg.Lock()
	ui := cfg.UI
	cfg.Unlock()

	a := &App{
		app:      tv,
		engine:   eng,
		config:   cfg,
		ring:     ring,
		theme:    NewTheme(ui),
		tabNames: []string{TabTags, TabLive, TabOutputs, TabLog},
		stopChan: make(chan struct{}),
	}
	a.theme.apply()
	a.setupUI(ui)
	return a
}

func (a *App) setupUI(ui config.UIConfig) {
	th := a.theme

	a.header = tview.NewTextView().SetDynamicColors(true)
	a.tabs = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.themeIndicator = tview.NewTextView().
		SetTextAlign(tview.AlignRight)
	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	a.pages = tview.NewPages()

	snap := a.engine.Snapshot()
	a.tagTable = NewTagTable(a, ui.TagTypes, ui.HideUnreadable)
	a.connect = NewConnectForm(a, snap.Target)
	a.dashboard = NewDashboard(a)
	a.outputs = NewOutputsTab(a)
	a.logView = NewLogView(a, a.ring)

	a.tagsPage = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.connect.flex, 4, 0, false).
		AddItem(a.tagTable.flex, 0, 1, true)

	a.pages.AddPage(TabTags, a.tagsPage, true, true)
	a.pages.AddPage(TabLive, a.dashboard.flex, true, false)
	a.pages.AddPage(TabOutputs, a.outputs.flex, true, false)
	a.pages.AddPage(TabLog, a.logView.flex, true, false)

	bottomBar := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.statusBar, 0, 1, false).
		AddItem(a.themeIndicator, 24, 0, false)

	mainFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.tabs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(bottomBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(mainFlex, true)

	a.applyChrome(th)
	a.refreshSession()
	a.setStatus("Ready. Enter a PLC address and press Scan. Press ? for help.")
	a.focusCurrentTab()
}

func (a *App) isMainPage(name string) bool {
	for _, n := range a.tabNames {
		if n == name {
			return true
		}
	}
	return false
}

func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	if event == nil {
		return nil
	}

	frontPage, _ := a.pages.GetFrontPage()
	if !a.isMainPage(frontPage) {
		return event
	}

	switch event.Key() {
	case tcell.KeyBacktab:
		a.nextTab()
		return nil
	case tcell.KeyF6:
		a.cycleColorMode()
		return nil
	}

	// letters belong to the field being typed in
	if _, typing := a.app.GetFocus().(*tview.InputField); typing {
		return event
	}

	switch event.Rune() {
	case 'Q':
		a.Shutdown()
		return nil
	case '?':
		a.showHelp()
		return nil
	}
	return event
}

func (a *App) nextTab() {
	a.switchToTab((a.currentTab + 1) % len(a.tabNames))
}

func (a *App) switchToTab(index int) {
	a.currentTab = index
	a.pages.SwitchToPage(a.tabNames[index])
	a.updateTabsDisplay()
	a.refreshCurrentTab()
	a.focusCurrentTab()
}

func (a *App) focusCurrentTab() {
	switch a.tabNames[a.currentTab] {
	case TabTags:
		a.app.SetFocus(a.tagTable.GetFocusable())
	case TabLive:
		a.app.SetFocus(a.dashboard.GetFocusable())
	case TabOutputs:
		a.app.SetFocus(a.outputs.GetFocusable())
	case TabLog:
		a.app.SetFocus(a.logView.GetFocusable())
	}
}

func (a *App) refreshCurrentTab() {
	switch a.tabNames[a.currentTab] {
	case TabOutputs:
		a.outputs.Refresh()
	case TabLog:
		a.logView.Refresh()
	}
}

func (a *App) updateTabsDisplay() {
	th := a.theme
	text := ""
	for i, name := range a.tabNames {
		if i > 0 {
			text += th.TagTextDim + "  " + th.Separator + "  " + th.TagReset
		}
		if i == a.currentTab {
			text += th.TagAccent + "[::b]" + name + "[::-]" + th.TagReset
		} else {
			text += th.TagTextDim + name + th.TagReset
		}
	}
	a.tabs.SetText(text)
}

func (a *App) updateHeader(snap plcman.Snapshot) {
	th := a.theme
	text := " " + th.TagAccent + "[::b]" + AppTitle + "[::-]" + th.TagReset
	if snap.Target.Address != "" {
		text += "  " + th.TagTextDim + th.Separator + th.TagReset + "  " + tview.Escape(snap.Target.String())
	}
	text += "  " + statusIndicator(th, snap.Status)

	switch atomic.LoadInt32(&a.apiOnline) {
	case 1:
		text += "  " + th.TagTextDim + th.Separator + th.TagReset + "  API " + th.TagSuccess + "online" + th.TagReset
	case -1:
		text += "  " + th.TagTextDim + th.Separator + th.TagReset + "  API " + th.TagError + "offline" + th.TagReset
	}
	a.header.SetText(text)
}

func (a *App) updateFooter() {
	th := a.theme
	a.footer.SetText(th.TagHotkey + "Q" + th.TagActionText + " quit  " +
		th.TagHotkey + "?" + th.TagActionText + " help  " +
		th.TagHotkey + "Shift+Tab" + th.TagActionText + " next page  " +
		th.TagHotkey + "F6" + th.TagActionText + " colors" + th.TagReset)
}

func (a *App) setStatus(msg string) {
	a.statusBar.SetText(" " + tview.Escape(msg))
}

func (a *App) updateThemeIndicator() {
	a.themeIndicator.SetText("Colors (F6): " + a.theme.Name + " ")
}

// applyChrome colors everything outside the pages.
func (a *App) applyChrome(th Theme) {
	for _, tv := range []*tview.TextView{a.header, a.tabs, a.statusBar, a.themeIndicator, a.footer} {
		tv.SetBackgroundColor(th.Background)
		tv.SetTextColor(th.Text)
	}
	a.themeIndicator.SetTextColor(th.TextDim)
	a.updateTabsDisplay()
	a.updateThemeIndicator()
	a.updateFooter()
}

// cycleColorMode moves to the next color mode and saves it.
func (a *App) cycleColorMode() {
	mode := config.NextColorMode(a.theme.Name)
	if err := a.engine.SetColorMode(mode); err != nil {
		a.setStatus("Could not save color mode: " + err.Error())
	}

	a.config.Lock()
	ui := a.config.UI
	a.config.Unlock()
	a.applyTheme(NewTheme(ui))
	a.app.Sync()
}

// applyTheme switches every component to th.
func (a *App) applyTheme(th Theme) {
	a.theme = th
	th.apply()
	a.applyChrome(th)
	a.connect.RefreshTheme(th)
	a.tagTable.RefreshTheme(th)
	a.dashboard.RefreshTheme(th)
	a.outputs.RefreshTheme(th)
	a.logView.RefreshTheme(th)
	a.refreshSession()
}

func (a *App) showHelp() {
	const pageName = "help"

	textView := tview.NewTextView().
		SetText(HelpText).
		SetDynamicColors(false)
	textView.SetBorder(true).SetTitle(" Help ")
	ApplyBoxTheme(textView.Box, a.theme)
	textView.SetTextColor(a.theme.Text)

	textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyEnter || event.Rune() == '?' {
			a.closeModal(pageName)
			return nil
		}
		return event
	})

	a.showCenteredModal(pageName, textView, 46, 32)
}

// showCenteredModal displays a modal dialog centered on the screen.
func (a *App) showCenteredModal(pageName string, content tview.Primitive, width, height int) {
	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(content, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage(pageName, modal, true, true)
	a.app.SetFocus(content)
}

// closeModal removes a modal and restores focus to the current page.
func (a *App) closeModal(pageName string) {
	a.pages.RemovePage(pageName)
	a.focusCurrentTab()
}

// refreshSession redraws everything that depends on the session. UI goroutine only.
func (a *App) refreshSession() {
	snap := a.engine.Snapshot()
	a.updateHeader(snap)
	a.connect.Refresh(snap)
	a.tagTable.Refresh(snap)
	a.dashboard.Refresh(snap)
}

// scheduleRefresh queues one session redraw; bursts of events coalesce.
func (a *App) scheduleRefresh() {
	if !a.refreshPending.CompareAndSwap(false, true) {
		return
	}
	go a.app.QueueUpdateDraw(func() {
		a.refreshPending.Store(false)
		a.refreshSession()
	})
}

// onEvent runs on engine goroutines.
func (a *App) onEvent(e engine.Event) {
	switch e.Type {
	case engine.EventScanCompleted:
		p, _ := e.Payload.(engine.ScanEvent)
		msg := statusScanDone(p)
		go a.app.QueueUpdateDraw(func() { a.setStatus(msg) })
	case engine.EventScanFailed:
		p, _ := e.Payload.(engine.ScanEvent)
		go a.app.QueueUpdateDraw(func() { a.setStatus("Scan failed: " + p.Error) })
	case engine.EventMQTTStarted, engine.EventValkeyStarted, engine.EventKafkaConnected:
		go a.app.QueueUpdateDraw(a.outputs.Refresh)
	}
	a.scheduleRefresh()
}

func statusScanDone(p engine.ScanEvent) string {
	if p.TagCount == 0 {
		return "Scan of " + p.Target.String() + " found no tags."
	}
	if p.TagCount == 1 {
		return "Scan of " + p.Target.String() + " found 1 tag. Polling values."
	}
	return "Scan of " + p.Target.String() + " found " + strconv.Itoa(p.TagCount) + " tags. Polling values."
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.subID = a.engine.Events.Subscribe(a.onEvent)

	go a.periodicRefresh()
	go a.healthLoop()

	return a.app.Run()
}

// periodicRefresh refreshes pages fed by background goroutines.
func (a *App) periodicRefresh() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				frontPage, _ := a.pages.GetFrontPage()
				if !a.isMainPage(frontPage) {
					return
				}
				a.refreshCurrentTab()
			})
		}
	}
}

// healthLoop checks the backend every 10 seconds for the header.
func (a *App) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := a.engine.Health(ctx)
		cancel()

		state := int32(1)
		if err != nil {
			state = -1
			logging.DebugLog("tui", "health check failed: %v", err)
		}
		if atomic.SwapInt32(&a.apiOnline, state) != state {
			a.scheduleRefresh()
		}

		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
		}
	}
}

// Shutdown stops the UI and the engine.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.engine.Events.Unsubscribe(a.subID)
		a.app.Stop()

		done := make(chan struct{})
		go func() {
			a.engine.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			logging.DebugLog("tui", "engine stop timed out")
		}
	})
}

// QueueUpdateDraw queues a function to run on the UI thread.
func (a *App) QueueUpdateDraw(f func()) {
	a.app.QueueUpdateDraw(f)
}
