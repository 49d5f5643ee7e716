package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer periodically sweeps the pending store for overdue reservations.
//
// The one-shot timers armed by the scheduler do not survive a process
// restart; the sweep expires whatever they left behind.
type Timer struct {
	coordinator *Coordinator
	store       PendingStore
	interval    time.Duration
	logger      *slog.Logger
	stop        chan struct{}
	running     atomic.Bool
}

// NewTimer creates a reservation expiry sweep timer.
func NewTimer(coordinator *Coordinator, store PendingStore, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Timer{
		coordinator: coordinator,
		store:       store,
		interval:    interval,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

// Running reports whether the sweep loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeExpireOverdue(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeExpireOverdue(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in reservation sweep", "panic", fmt.Sprint(r))
		}
	}()
	t.expireOverdue(ctx)
}

func (t *Timer) expireOverdue(ctx context.Context) {
	overdue, err := t.store.ListExpired(ctx, time.Now(), 100)
	if err != nil {
		t.logger.Warn("failed to list overdue reservations", "error", err)
		return
	}

	for _, r := range overdue {
		// Expire re-checks via Remove; a completion landing between the
		// listing and here makes this a no-op.
		t.coordinator.Expire(ctx, r.Token)
	}
}
