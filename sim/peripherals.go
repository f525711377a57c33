package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/moffa90/go-dcboot/watchdog"
)

// ErrNotStarted is returned when feeding a watchdog that was never started.
var ErrNotStarted = errors.New("watchdog not started")

// Timer simulates the hardware watchdog. Time only moves through Advance.
type Timer struct {
	mu        sync.Mutex
	timeout   time.Duration
	remaining time.Duration
	running   bool
	expired   bool
}

// Start implements watchdog.Timer.
func (t *Timer) Start(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	t.remaining = timeout
	t.running = true
	t.expired = false
	return nil
}

// Feed implements watchdog.Timer.
func (t *Timer) Feed() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return ErrNotStarted
	}
	t.remaining = t.timeout
	return nil
}

// Advance moves time forward and reports whether the watchdog expired.
func (t *Timer) Advance(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.expired {
		return t.expired
	}
	t.remaining -= d
	if t.remaining <= 0 {
		t.expired = true
	}
	return t.expired
}

// Running reports whether the watchdog is armed.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.expired = false
}

// ResetRegister simulates the reset reason register.
type ResetRegister struct {
	mu     sync.Mutex
	reason watchdog.ResetReason
}

// ResetReason implements watchdog.ResetReasonReader.
func (r *ResetRegister) ResetReason() (watchdog.ResetReason, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason, nil
}

func (r *ResetRegister) latch(reason watchdog.ResetReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reason = reason
}
