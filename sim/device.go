// Package sim simulates the wearable sensor as far as the boot manager is
// concerned: two flash chips, the watchdog and the reset reason register.
//
// A Device boots like the real board: every Boot takes the board resources,
// runs the boot manager and, on a jump, leaves the watchdog armed. Reset
// models the hardware resetting; Advance lets simulated time pass so an
// application that stops feeding the watchdog is reset by it.
//
// Example:
//
//	dev, _ := sim.New(sim.WithAttemptBudget(3), sim.WithWatchdogTimeout(time.Second))
//	dev.WriteActive(image.Build(1, app))
//	d, err := dev.Boot(ctx)
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-dcboot/board"
	"github.com/moffa90/go-dcboot/bootloader"
	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/logging"
	"github.com/moffa90/go-dcboot/partition"
	"github.com/moffa90/go-dcboot/watchdog"
)

// ErrNotRunning is returned when an application call is made while the
// device sits in the bootloader.
var ErrNotRunning = errors.New("application not running")

// Device is a simulated board.
type Device struct {
	config Config

	internal flash.Flash
	external flash.Flash
	timer    *Timer
	reset    *ResetRegister

	bootID   string
	decision *bootloader.Decision
}

// New creates a powered-off Device. The first Boot sees a power-on reset.
func New(opts ...Option) (*Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Table.Validate(); err != nil {
		return nil, fmt.Errorf("partition table %s: %w", cfg.Table.Revision, err)
	}

	if cfg.Internal == nil {
		cfg.Internal = flash.NewMemory(cfg.Table.Internal.Capacity, cfg.Table.Internal.SectorSize)
	}
	if cfg.External == nil {
		cfg.External = flash.NewMemory(cfg.Table.External.Capacity, cfg.Table.External.SectorSize)
	}

	d := &Device{
		config:   cfg,
		internal: cfg.Internal,
		external: cfg.External,
		timer:    &Timer{},
		reset:    &ResetRegister{},
	}
	d.reset.latch(watchdog.ReasonPowerOn)
	return d, nil
}

// Boot runs the boot manager as after a reset.
func (d *Device) Boot(ctx context.Context) (*bootloader.Decision, error) {
	d.bootID = uuid.NewString()
	logger := logging.With(d.config.Logger, "boot_id", d.bootID)

	arena, err := board.NewArena(d.resources())
	if err != nil {
		return nil, err
	}
	res, err := arena.Take()
	if err != nil {
		return nil, err
	}

	mgr, err := bootloader.New(d.config.Table, res,
		bootloader.WithAttemptBudget(d.config.AttemptBudget),
		bootloader.WithWatchdogTimeout(d.config.WatchdogTimeout),
		bootloader.WithEventCallback(d.config.EventCallback),
		bootloader.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	dec, err := mgr.Boot(ctx)
	if dec != nil && dec.Action == bootloader.ActionJump {
		d.decision = dec
	} else {
		d.decision = nil
	}
	return dec, err
}

// BootID identifies the last boot in logs.
func (d *Device) BootID() string { return d.bootID }

// Reset resets the device with the given cause. The watchdog stops and the
// application, if any, is gone.
func (d *Device) Reset(reason watchdog.ResetReason) {
	d.timer.stop()
	d.reset.latch(reason)
	d.decision = nil
}

// Advance lets the application run for dt. When feed is true the
// application feeds the watchdog first. If the watchdog expires the device
// is reset with ReasonWatchdog and Advance returns true.
func (d *Device) Advance(dt time.Duration, feed bool) (bool, error) {
	if d.decision == nil {
		return false, ErrNotRunning
	}
	if feed {
		if err := d.decision.Watchdog.Feed(); err != nil {
			return false, err
		}
	}
	if d.timer.Advance(dt) {
		d.Reset(watchdog.ReasonWatchdog)
		return true, nil
	}
	return false, nil
}

// Updater returns the running application's Updater.
func (d *Device) Updater() (*bootloader.Updater, error) {
	if d.decision == nil {
		return nil, ErrNotRunning
	}
	return d.decision.Updater, nil
}

// OpenUpdater opens an Updater on the flash as an application started by an
// earlier boot would. Unlike Updater it works while nothing is running.
func (d *Device) OpenUpdater() (*bootloader.Updater, error) {
	return bootloader.OpenUpdater(d.config.Table, d.resources(),
		bootloader.WithLogger(d.config.Logger),
		bootloader.WithEventCallback(d.config.EventCallback),
	)
}

// WriteStaging writes img to the staging partition the way the application
// does while downloading an update.
func (d *Device) WriteStaging(img []byte) error {
	return d.program(partition.RoleStaging, img)
}

// WriteActive writes img to the active partition, as factory programming
// does.
func (d *Device) WriteActive(img []byte) error {
	return d.program(partition.RoleActive, img)
}

// Region opens the partition with the given role.
func (d *Device) Region(role partition.Role) (flash.Region, error) {
	p, err := d.config.Table.Lookup(role)
	if err != nil {
		return flash.Region{}, err
	}
	return d.resources().Region(p)
}

// Record reads the persisted boot record.
func (d *Device) Record() (bootrecord.Record, error) {
	r, err := d.Region(partition.RoleBootRecord)
	if err != nil {
		return bootrecord.Record{}, err
	}
	s, err := bootrecord.NewStore(r, nil)
	if err != nil {
		return bootrecord.Record{}, err
	}
	return s.Load()
}

// Watchdog returns the simulated watchdog.
func (d *Device) Watchdog() *Timer { return d.timer }

func (d *Device) program(role partition.Role, img []byte) error {
	r, err := d.Region(role)
	if err != nil {
		return err
	}
	ss := r.SectorSize()
	n := (uint32(len(img)) + ss - 1) / ss * ss
	if n > r.Size() {
		return fmt.Errorf("image of %d bytes does not fit %s partition of %d bytes: %w",
			len(img), role, r.Size(), flash.ErrOutOfBounds)
	}

	buf := make([]byte, n)
	for i := range buf {
		buf[i] = flash.ErasedByte
	}
	copy(buf, img)
	return r.Program(0, buf)
}

func (d *Device) resources() board.Resources {
	return board.Resources{
		Internal:    d.internal,
		External:    d.external,
		Watchdog:    d.timer,
		ResetReason: d.reset,
	}
}
