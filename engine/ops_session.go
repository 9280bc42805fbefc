package engine

import (
	"context"
	"fmt"

	"signaltap/config"
	"signaltap/plcman"
)

// SubmitScan starts an asynchronous scan. It returns false while a scan is
// running or when the target is invalid.
func (e *Engine) SubmitScan(t plcman.Target) bool {
	if e.plcMan == nil {
		return false
	}
	return e.plcMan.SubmitScan(t)
}

// Scan scans synchronously and starts polling on success.
func (e *Engine) Scan(ctx context.Context, t plcman.Target) error {
	if e.plcMan == nil {
		return ErrNotStarted
	}
	return e.plcMan.Scan(ctx, t)
}

// SetTarget records the target being edited; a change ends the current session.
func (e *Engine) SetTarget(t plcman.Target) {
	if e.plcMan == nil {
		return
	}
	old := e.plcMan.Target()
	if old == t {
		return
	}
	e.plcMan.SetTarget(t)
	e.emit(EventTargetChanged, TargetEvent{Old: old, New: t})
}

// Snapshot returns the current session.
func (e *Engine) Snapshot() plcman.Snapshot {
	if e.plcMan == nil {
		return plcman.Snapshot{}
	}
	return e.plcMan.Snapshot()
}

// healthChecker is implemented by backend.Client.
type healthChecker interface {
	Health(ctx context.Context) error
}

// Health checks the backend if the client supports it.
func (e *Engine) Health(ctx context.Context) error {
	hc, ok := e.client.(healthChecker)
	if !ok {
		return nil
	}
	return hc.Health(ctx)
}

// rememberTarget stores the last successfully scanned target in the config file.
func (e *Engine) rememberTarget(t plcman.Target) {
	if e.configPath == "" {
		return
	}
	e.cfg.Lock()
	if e.cfg.Target.Address == t.Address && e.cfg.Target.Slot == t.Slot {
		e.cfg.Unlock()
		return
	}
	e.cfg.Target = config.TargetConfig{Address: t.Address, Slot: t.Slot}
	if err := e.cfg.UnlockAndSave(e.configPath); err != nil {
		e.logFn("Failed to save config: %v", err)
		return
	}
	e.emit(EventConfigSaved, SystemEvent{Detail: "target"})
}

// SetColorMode switches the UI color mode and saves it.
func (e *Engine) SetColorMode(mode string) error {
	switch mode {
	case config.ColorDark, config.ColorLight, config.ColorMono:
	default:
		return fmt.Errorf("%w: color mode %q", ErrInvalidInput, mode)
	}

	e.cfg.Lock()
	e.cfg.UI.ColorMode = mode
	if e.configPath == "" {
		e.cfg.Unlock()
	} else if err := e.cfg.UnlockAndSave(e.configPath); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	e.emit(EventThemeChanged, SystemEvent{Detail: mode})
	return nil
}
