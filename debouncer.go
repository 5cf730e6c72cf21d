package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultDebounceDelay collapses identity event bursts before resolving a profile
const DefaultDebounceDelay = 500 * time.Millisecond

// Timer is the subset of *time.Timer the debouncer needs
type Timer interface {
	Stop() bool
}

// TimerFunc starts a timer that calls f once after d
type TimerFunc func(d time.Duration, f func()) Timer

func defaultTimerFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RunFunc performs one resolution for userID
type RunFunc func(ctx context.Context, userID string)

// DebouncerOption customizes a Debouncer
type DebouncerOption func(*Debouncer)

// WithDebounceDelay overrides DefaultDebounceDelay
func WithDebounceDelay(d time.Duration) DebouncerOption {
	return func(db *Debouncer) {
		if d > 0 {
			db.delay = d
		}
	}
}

// WithDebounceTimer injects the timer factory (useful for tests)
func WithDebounceTimer(fn TimerFunc) DebouncerOption {
	return func(db *Debouncer) {
		if fn != nil {
			db.newTimer = fn
		}
	}
}

// WithDebounceLogger sets the logger used for dropped runs and recovered panics
func WithDebounceLogger(logger Logger) DebouncerOption {
	return func(db *Debouncer) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// Debouncer keeps one pending timer and at most one run in flight.
// Each Schedule call replaces the pending timer; when a timer fires while a
// run is in flight the request is dropped, not queued.
type Debouncer struct {
	mu       sync.Mutex
	run      RunFunc
	delay    time.Duration
	newTimer TimerFunc
	logger   Logger

	timer      Timer
	generation uint64
	inFlight   bool
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDebouncer returns a Debouncer that calls run once per collapsed burst.
func NewDebouncer(run RunFunc, opts ...DebouncerOption) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		run:      run,
		delay:    DefaultDebounceDelay,
		newTimer: defaultTimerFunc,
		logger:   defLogger{},
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// Schedule restarts the debounce window for userID
func (d *Debouncer) Schedule(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.generation++
	gen := d.generation
	d.timer = d.newTimer(d.delay, func() {
		d.fire(gen, userID)
	})
}

// Cancel stops the pending timer, if any. An in flight run is not affected.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Close cancels the pending timer, cancels the run context and rejects
// any further Schedule calls.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.stopLocked()
	d.mu.Unlock()

	d.cancel()
}

// InFlight reports whether a run is executing
func (d *Debouncer) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Pending reports whether a timer is waiting to fire
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// a timer that already fired must not run after cancel
	d.generation++
}

func (d *Debouncer) fire(gen uint64, userID string) {
	d.mu.Lock()
	if d.closed || gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.timer = nil

	if d.inFlight {
		d.mu.Unlock()
		d.logger.Debug("profile resolution already in flight, dropping request", "user_id", userID)
		return
	}
	d.inFlight = true
	ctx := d.ctx
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("profile resolution panicked", "user_id", userID, "error", fmt.Sprint(r))
		}

		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	if d.run != nil {
		d.run(ctx, userID)
	}
}
