// Package watchdog turns the hardware watchdog into the health signal of a
// freshly installed image.
//
// Before every jump to the application the Supervisor arms the Timer and
// hands out the only Handle able to feed it. An application that stops
// feeding gets reset by the hardware; on the next boot Observe counts that
// reset against the confirmation budget.
package watchdog

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrAlreadyArmed is returned by Arm when the handle was already handed out
// during this boot.
var ErrAlreadyArmed = errors.New("watchdog already armed")

// Timer is the hardware watchdog. Once started it cannot be stopped; only a
// reset clears it.
type Timer interface {
	Start(timeout time.Duration) error
	Feed() error
}

// Handle is the exclusive right to feed the armed watchdog.
type Handle struct {
	timer   Timer
	timeout time.Duration
}

// Feed restarts the watchdog countdown.
func (h *Handle) Feed() error {
	return h.timer.Feed()
}

// Timeout returns the period within which Feed must be called.
func (h *Handle) Timeout() time.Duration { return h.timeout }

// Supervisor counts watchdog resets and arms the timer.
type Supervisor struct {
	timer   Timer
	timeout time.Duration
	budget  uint8
	armed   atomic.Bool
}

// NewSupervisor creates a Supervisor. budget is the number of watchdog resets
// an unconfirmed image may cause before it is reverted.
func NewSupervisor(timer Timer, timeout time.Duration, budget uint8) (*Supervisor, error) {
	if timer == nil {
		return nil, fmt.Errorf("watchdog timer cannot be nil")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("watchdog timeout must be positive, got %s", timeout)
	}
	if budget == 0 {
		return nil, fmt.Errorf("attempt budget must be at least 1")
	}
	return &Supervisor{timer: timer, timeout: timeout, budget: budget}, nil
}

// Budget returns the configured attempt budget.
func (s *Supervisor) Budget() uint8 { return s.budget }

// Observe accounts for the last reset. Only a watchdog reset increments the
// counter; exhausted reports whether the budget has been reached.
func (s *Supervisor) Observe(reason ResetReason, attempts uint8) (next uint8, exhausted bool) {
	next = attempts
	if reason == ReasonWatchdog && next < 0xFF {
		next++
	}
	return next, next >= s.budget
}

// Arm starts the watchdog and returns the handle. It may be called once.
func (s *Supervisor) Arm() (*Handle, error) {
	if !s.armed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyArmed
	}
	if err := s.timer.Start(s.timeout); err != nil {
		s.armed.Store(false)
		return nil, fmt.Errorf("start watchdog: %w", err)
	}
	return &Handle{timer: s.timer, timeout: s.timeout}, nil
}
