package swap

import (
	"time"

	"github.com/moffa90/go-dcboot/logging"
)

// Progress reports one completed block.
type Progress struct {
	// Direction of the run
	Direction Direction

	// Block is the number of blocks completed so far (the new cursor)
	Block uint32

	// TotalBlocks is the number of blocks in the partition
	TotalBlocks uint32

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the run started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every block. It must return quickly.
type ProgressCallback func(Progress)

// Config holds the engine configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// ProgressCallback is called after each block (optional)
	ProgressCallback ProgressCallback
}

func defaultConfig() Config {
	return Config{Logger: logging.Nop()}
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithProgressCallback sets a callback invoked after every swapped block.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}
