package plcman

import (
	"context"
	"time"
)

// Scheduler runs fn every period until the returned cancel func is called.
// Cancel must be safe to call more than once and must not block on fn.
type Scheduler interface {
	Every(period time.Duration, fn func()) (cancel func())
}

// tickerScheduler runs each schedule in its own goroutine driven by a time.Ticker.
type tickerScheduler struct{}

func (tickerScheduler) Every(period time.Duration, fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return cancel
}
