package bootloader

import (
	"fmt"

	"github.com/moffa90/go-dcboot/board"
	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/image"
	"github.com/moffa90/go-dcboot/logging"
	"github.com/moffa90/go-dcboot/partition"
)

// StagingDescriptor announces the image the application has written to the
// staging partition.
type StagingDescriptor struct {
	Version  uint32
	Length   uint32
	Checksum uint32
}

// Updater is the application's handle on the boot state. It is obtained from
// a Decision and must only be used from the application's single execution
// context.
type Updater struct {
	store       *bootrecord.Store
	active      flash.Region
	staging     flash.Region
	activeName  string
	stagingName string
	logger      Logger
	emit        func(Event)
}

// OpenUpdater opens an Updater directly on the partitions, the way an
// application that was started by an earlier boot does. Only the logger and
// event callback options are used.
func OpenUpdater(table partition.Table, res board.Resources, opts ...Option) (*Updater, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("partition table %s: %w", table.Revision, err)
	}

	parts, err := openPartitions(table, res)
	if err != nil {
		return nil, err
	}
	store, err := bootrecord.NewStore(parts.records, cfg.Logger)
	if err != nil {
		return nil, err
	}

	cb := cfg.EventCallback
	return &Updater{
		store:       store,
		active:      parts.active,
		staging:     parts.staging,
		activeName:  parts.activeName,
		stagingName: parts.stagingName,
		logger:      cfg.Logger,
		emit: func(e Event) {
			if cb != nil {
				cb(e)
			}
		},
	}, nil
}

// State returns the persisted boot state, or StateCorrupt if it cannot be
// read.
func (u *Updater) State() bootrecord.State {
	rec, err := u.store.Load()
	if err != nil {
		return bootrecord.StateCorrupt
	}
	return rec.State
}

// IsFirstBootAfterUpdate reports whether the running image was just installed
// and still waits for confirmation.
func (u *Updater) IsFirstBootAfterUpdate() bool {
	return u.State() == bootrecord.StateSwappedUnconfirmed
}

// Confirm marks the running image as good. It is a no-op when nothing awaits
// confirmation.
func (u *Updater) Confirm() error {
	rec, err := u.store.Load()
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	switch rec.State {
	case bootrecord.StateBoot:
		return nil
	case bootrecord.StateSwappedUnconfirmed:
	default:
		return &StateError{Op: "confirm", State: rec.State}
	}

	hdr, err := image.VerifyNamed(u.active, u.activeName)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	if _, err := u.store.Store(bootrecord.Record{State: bootrecord.StateBoot, Flags: rec.Flags}); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	u.logger.Info("image confirmed", "version", hdr.Version, "attempts", rec.Attempts)
	u.emit(Event{Type: EventConfirmed, State: bootrecord.StateBoot, Version: hdr.Version, Attempts: rec.Attempts})
	return nil
}

// RequestUpdate asks for the image described by d to be installed on the
// next boot. The staging header must match d; the payload is verified by the
// bootloader at the next boot.
func (u *Updater) RequestUpdate(d StagingDescriptor) error {
	rec, err := u.store.Load()
	if err != nil {
		return fmt.Errorf("request update: %w", err)
	}
	if rec.State != bootrecord.StateBoot {
		return &StateError{Op: "request update", State: rec.State}
	}

	hdr, err := image.Peek(u.staging)
	if err != nil {
		return &image.InvalidImageError{Partition: u.stagingName, Reason: "read header", Err: err}
	}
	if hdr.Length > u.staging.Size()-image.HeaderSize {
		return &image.InvalidImageError{
			Partition: u.stagingName,
			Reason:    fmt.Sprintf("payload length %d exceeds capacity %d", hdr.Length, u.staging.Size()-image.HeaderSize),
		}
	}
	if err := fitsActive(hdr, u.active, u.stagingName); err != nil {
		return err
	}
	for _, f := range []struct {
		name      string
		want, got uint32
	}{
		{"version", d.Version, hdr.Version},
		{"length", d.Length, hdr.Length},
		{"checksum", d.Checksum, hdr.Checksum},
	} {
		if f.want != f.got {
			return &DescriptorMismatchError{Field: f.name, Expected: f.want, Actual: f.got}
		}
	}

	if rec.Consumed() {
		if _, err := u.store.Store(rec.WithConsumed(false)); err != nil {
			return fmt.Errorf("request update: %w", err)
		}
	}

	u.logger.Info("update requested", "version", d.Version, "length", d.Length)
	u.emit(Event{Type: EventUpdateRequested, State: rec.State, Version: d.Version})
	return nil
}

// ReportFailure declares the unconfirmed image broken. The next boot reverts
// to the previous image without waiting for the watchdog.
func (u *Updater) ReportFailure() error {
	rec, err := u.store.Load()
	if err != nil {
		return fmt.Errorf("report failure: %w", err)
	}
	if rec.State != bootrecord.StateSwappedUnconfirmed {
		return &StateError{Op: "report failure", State: rec.State}
	}

	next := bootrecord.Record{State: bootrecord.StateReverting, Attempts: rec.Attempts, Flags: rec.Flags}
	if _, err := u.store.Store(next); err != nil {
		return fmt.Errorf("report failure: %w", err)
	}

	u.logger.Info("failure reported, revert scheduled")
	u.emit(Event{Type: EventRevertStarted, State: bootrecord.StateReverting, Attempts: rec.Attempts})
	return nil
}
