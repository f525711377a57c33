package sim

import (
	"time"

	"github.com/moffa90/go-dcboot/board"
	"github.com/moffa90/go-dcboot/bootloader"
	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/logging"
	"github.com/moffa90/go-dcboot/partition"
)

// Config holds the simulator configuration.
type Config struct {
	// Table is the partition map (default: the compiled-in board revision)
	Table partition.Table

	// Internal and External back the two flash chips (default: erased
	// in-memory devices sized from Table)
	Internal flash.Flash
	External flash.Flash

	// AttemptBudget and WatchdogTimeout are passed to the boot manager
	AttemptBudget   uint8
	WatchdogTimeout time.Duration

	// EventCallback observes boot events (optional)
	EventCallback bootloader.EventCallback

	// Logger is used for logging operations (optional)
	Logger logging.Logger
}

func defaultConfig() Config {
	return Config{
		Table:  board.PartitionTable(),
		Logger: logging.Nop(),
	}
}

// Option is a functional option for configuring the Device.
type Option func(*Config)

// WithTable sets the partition table.
func WithTable(t partition.Table) Option {
	return func(c *Config) {
		c.Table = t
	}
}

// WithFlash sets the two flash chips, e.g. persistent DatastoreFlash models.
func WithFlash(internal, external flash.Flash) Option {
	return func(c *Config) {
		c.Internal = internal
		c.External = external
	}
}

// WithAttemptBudget sets the boot manager's attempt budget.
func WithAttemptBudget(n uint8) Option {
	return func(c *Config) {
		c.AttemptBudget = n
	}
}

// WithWatchdogTimeout sets the boot manager's watchdog timeout.
func WithWatchdogTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WatchdogTimeout = d
	}
}

// WithEventCallback sets a callback to observe boot events.
func WithEventCallback(cb bootloader.EventCallback) Option {
	return func(c *Config) {
		c.EventCallback = cb
	}
}

// WithLogger sets a logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}
