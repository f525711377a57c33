package bootloader

import "time"

// Config holds the boot manager configuration.
type Config struct {
	// AttemptBudget is the number of watchdog resets an unconfirmed image
	// may cause before it is reverted (required)
	AttemptBudget uint8

	// WatchdogTimeout is the period armed before every jump (required)
	WatchdogTimeout time.Duration

	// EventCallback is called on every boot event (optional)
	EventCallback EventCallback

	// Logger is used for logging operations (optional)
	Logger Logger
}

// defaultConfig returns the default configuration. The attempt budget and
// the watchdog timeout are deliberately left unset.
func defaultConfig() Config {
	return Config{}
}

func (c Config) validate() error {
	if c.AttemptBudget == 0 {
		return &ConfigError{Option: "attempt budget", Reason: "required, must be at least 1"}
	}
	if c.WatchdogTimeout <= 0 {
		return &ConfigError{Option: "watchdog timeout", Reason: "required, must be positive"}
	}
	return nil
}

// Option is a functional option for configuring the Manager.
type Option func(*Config)

// WithAttemptBudget sets how many watchdog resets an unconfirmed image may
// cause before it is reverted.
//
// Example:
//
//	mgr, err := bootloader.New(tbl, res, bootloader.WithAttemptBudget(3))
func WithAttemptBudget(n uint8) Option {
	return func(c *Config) {
		c.AttemptBudget = n
	}
}

// WithWatchdogTimeout sets the watchdog period armed before the jump.
//
// Example:
//
//	mgr, err := bootloader.New(tbl, res, bootloader.WithWatchdogTimeout(8*time.Second))
func WithWatchdogTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WatchdogTimeout = d
	}
}

// WithEventCallback sets a callback to observe boot events.
func WithEventCallback(callback EventCallback) Option {
	return func(c *Config) {
		c.EventCallback = callback
	}
}

// WithLogger sets a logger for boot manager operations.
//
// Example:
//
//	mgr, err := bootloader.New(tbl, res, bootloader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
