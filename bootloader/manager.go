package bootloader

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/moffa90/go-dcboot/board"
	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/image"
	"github.com/moffa90/go-dcboot/logging"
	"github.com/moffa90/go-dcboot/partition"
	"github.com/moffa90/go-dcboot/swap"
	"github.com/moffa90/go-dcboot/watchdog"
)

// maxTransitions bounds the state changes of a single Boot. The longest
// legal chain is Boot -> SwapRequested -> Reverting -> Boot.
const maxTransitions = 8

// Action is what the caller must do after Boot returns.
type Action uint8

const (
	// ActionJump starts the application in the active partition
	ActionJump Action = iota + 1

	// ActionRetry resets the device; the persisted state lets the next boot
	// resume where this one stopped
	ActionRetry

	// ActionHalt stays in the bootloader; no bootable image exists
	ActionHalt
)

func (a Action) String() string {
	switch a {
	case ActionJump:
		return "jump"
	case ActionRetry:
		return "retry"
	case ActionHalt:
		return "halt"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Decision is the outcome of one boot.
type Decision struct {
	Action Action

	// State is the boot state the application starts in, or StateCorrupt
	// when the boot record was lost
	State bootrecord.State

	// Reason is the reset reason read at boot
	Reason watchdog.ResetReason

	// Active is the header of the verified active image (ActionJump only)
	Active image.Header

	// Watchdog is the only handle able to feed the armed watchdog
	// (ActionJump only)
	Watchdog *watchdog.Handle

	// Updater is the application's interface to the boot state
	// (ActionJump only)
	Updater *Updater
}

// Manager decides, on every reset, which image runs and drives swaps and
// reverts to completion.
type Manager struct {
	table  partition.Table
	config Config
	logger Logger

	active      flash.Region
	staging     flash.Region
	activeName  string
	stagingName string

	store      *bootrecord.Store
	engine     *swap.Engine
	supervisor *watchdog.Supervisor
	reasons    watchdog.ResetReasonReader

	reason watchdog.ResetReason
	state  bootrecord.State
}

// New creates a Manager over the resources of one reset. The table is
// validated, and the attempt budget and watchdog timeout options are
// required.
//
// Example:
//
//	res, _ := arena.Take()
//	mgr, err := bootloader.New(board.PartitionTable(), res,
//	    bootloader.WithAttemptBudget(3),
//	    bootloader.WithWatchdogTimeout(8*time.Second),
//	)
func New(table partition.Table, res board.Resources, opts ...Option) (*Manager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("partition table %s: %w", table.Revision, err)
	}
	if res.ResetReason == nil {
		return nil, fmt.Errorf("reset reason reader cannot be nil")
	}

	m := &Manager{
		table:   table,
		config:  cfg,
		logger:  logging.With(cfg.Logger, "revision", table.Revision),
		reasons: res.ResetReason,
	}

	parts, err := openPartitions(table, res)
	if err != nil {
		return nil, err
	}
	m.active, m.staging = parts.active, parts.staging
	m.activeName, m.stagingName = parts.activeName, parts.stagingName

	store, err := bootrecord.NewStore(parts.records, m.logger)
	if err != nil {
		return nil, err
	}
	engine, err := swap.New(parts.scratch, parts.journal,
		swap.WithLogger(m.logger),
		swap.WithProgressCallback(m.onSwapProgress),
	)
	if err != nil {
		return nil, err
	}

	supervisor, err := watchdog.NewSupervisor(res.Watchdog, cfg.WatchdogTimeout, cfg.AttemptBudget)
	if err != nil {
		return nil, err
	}

	m.store = store
	m.engine = engine
	m.supervisor = supervisor
	return m, nil
}

// Boot runs the boot state machine once. It must be called once per reset.
//
// On ActionJump the returned Decision carries the armed watchdog handle and
// the Updater. On ActionRetry the error describes the fault; the persisted
// state is consistent and the next boot continues from it. On ActionHalt the
// error is a *FatalError.
//
// The operation can be cancelled via context between swap blocks.
func (m *Manager) Boot(ctx context.Context) (*Decision, error) {
	reason, err := m.reasons.ResetReason()
	if err != nil {
		m.logger.Error("read reset reason", "error", err)
		reason = watchdog.ReasonUnknown
	}
	m.reason = reason

	rec, err := m.store.Load()
	if err != nil {
		return m.recoverCorrupt(err)
	}

	m.logger.Info("boot", "reason", reason.String(), "record", rec.String())
	m.state = rec.State
	m.emit(Event{Type: EventBoot, Attempts: rec.Attempts})

	for step := 0; step < maxTransitions; step++ {
		if err := ctx.Err(); err != nil {
			_, d, err := m.retry(err)
			return d, err
		}

		m.state = rec.State
		var (
			next bootrecord.Record
			d    *Decision
		)
		switch rec.State {
		case bootrecord.StateBoot:
			next, d, err = m.boot(rec)
		case bootrecord.StateSwapRequested:
			next, d, err = m.swapRequested(ctx, rec)
		case bootrecord.StateSwappedUnconfirmed:
			next, d, err = m.swappedUnconfirmed(rec)
		case bootrecord.StateReverting:
			next, d, err = m.reverting(ctx, rec)
		default:
			_, d, err = m.halt(&FatalError{Reason: fmt.Sprintf("unknown state %s", rec.State)})
		}
		if d != nil {
			return d, err
		}
		rec = next
	}

	_, d, err := m.halt(&FatalError{Reason: "boot state did not settle"})
	return d, err
}

// boot handles StateBoot: look for a newer valid staging image, else run
// active. A consumed staging image is only considered when active no longer
// verifies; it then holds the rollback copy of the last update.
func (m *Manager) boot(rec bootrecord.Record) (bootrecord.Record, *Decision, error) {
	activeHdr, activeErr := m.verifyActive()
	if flash.IsHardwareFault(activeErr) {
		return m.retry(activeErr)
	}
	if activeErr == nil && rec.Consumed() {
		return m.jump(rec, activeHdr)
	}

	stagingHdr, stagingErr := m.verifyStaging()
	switch {
	case errors.Is(stagingErr, errImageTooLarge) && !rec.Consumed():
		return m.rejectStaging(rec, stagingErr)
	case stagingErr != nil:
		if activeErr == nil {
			m.logger.Debug("no update in staging", "error", stagingErr)
			return m.jump(rec, activeHdr)
		}
		if flash.IsHardwareFault(stagingErr) {
			return m.retry(multierr.Combine(activeErr, stagingErr))
		}
		return m.halt(&FatalError{Reason: "active image invalid and no valid alternative",
			Err: multierr.Combine(activeErr, stagingErr)})
	case activeErr == nil && stagingHdr.Version <= activeHdr.Version:
		m.logger.Debug("staging not newer than active",
			"staging", stagingHdr.Version, "active", activeHdr.Version)
		return m.jump(rec, activeHdr)
	}

	if activeErr != nil {
		m.logger.Error("active image invalid, installing staging",
			"version", stagingHdr.Version, "consumed", rec.Consumed(), "error", activeErr)
	} else {
		m.logger.Info("update accepted", "version", stagingHdr.Version)
	}
	m.emit(Event{Type: EventUpdateAccepted, Version: stagingHdr.Version})

	next, err := m.persist(bootrecord.Record{State: bootrecord.StateSwapRequested, Flags: rec.Flags})
	if err != nil {
		return m.retry(err)
	}
	return next, nil, nil
}

// rejectStaging marks the staging image consumed so that it is not looked at
// again until the application requests a new update.
func (m *Manager) rejectStaging(rec bootrecord.Record, cause error) (bootrecord.Record, *Decision, error) {
	m.logger.Error("staging image rejected", "error", cause)
	m.emit(Event{Type: EventUpdateRejected, Err: cause})

	next, err := m.persist(bootrecord.Record{State: bootrecord.StateBoot, Flags: rec.Flags}.WithConsumed(true))
	if err != nil {
		return m.retry(multierr.Combine(cause, err))
	}
	return next, nil, nil
}

// swapRequested handles StateSwapRequested: install staging into active.
func (m *Manager) swapRequested(ctx context.Context, rec bootrecord.Record) (bootrecord.Record, *Decision, error) {
	if rec.Cursor == 0 {
		busy, err := m.engine.InProgress(swap.Forward)
		if err != nil {
			return m.retry(err)
		}
		// Nothing moved yet; staging may have changed since the request.
		if !busy {
			hdr, err := m.verifyStaging()
			if err != nil {
				if flash.IsHardwareFault(err) {
					return m.retry(err)
				}
				return m.rejectStaging(rec, err)
			}
			m.logger.Info("installing update", "version", hdr.Version)
		}
	}

	if _, err := m.engine.Run(ctx, swap.Forward, m.active, m.staging, rec.Cursor, m.cursorPersister(&rec)); err != nil {
		return m.retry(err)
	}
	m.emit(Event{Type: EventSwapComplete})

	hdr, err := m.verifyActive()
	if err != nil {
		if flash.IsHardwareFault(err) {
			return m.retry(err)
		}
		m.logger.Error("installed image invalid, reverting", "error", err)
		m.emit(Event{Type: EventRevertStarted, Err: err})

		next, perr := m.persist(bootrecord.Record{State: bootrecord.StateReverting, Flags: rec.Flags}.WithConsumed(true))
		if perr != nil {
			return m.retry(multierr.Combine(err, perr))
		}
		return next, nil, nil
	}

	next, err := m.persist(bootrecord.Record{State: bootrecord.StateSwappedUnconfirmed, Flags: rec.Flags}.WithConsumed(true))
	if err != nil {
		return m.retry(err)
	}
	m.state = next.State
	return m.jump(next, hdr)
}

// swappedUnconfirmed handles StateSwappedUnconfirmed: count watchdog resets
// against the budget and give the new image another try.
func (m *Manager) swappedUnconfirmed(rec bootrecord.Record) (bootrecord.Record, *Decision, error) {
	attempts, exhausted := m.supervisor.Observe(m.reason, rec.Attempts)
	if attempts != rec.Attempts {
		m.logger.Info("watchdog reset of unconfirmed image",
			"attempts", attempts, "budget", m.supervisor.Budget())
		m.emit(Event{Type: EventWatchdogReset, Attempts: attempts})
	}

	if exhausted {
		m.logger.Error("attempt budget exhausted, reverting", "attempts", attempts)
		return m.startRevert(rec, attempts, nil)
	}

	if attempts != rec.Attempts {
		r := rec
		r.Attempts = attempts
		next, err := m.persist(r)
		if err != nil {
			return m.retry(err)
		}
		rec = next
	}

	hdr, err := m.verifyActive()
	if err != nil {
		if flash.IsHardwareFault(err) {
			return m.retry(err)
		}
		m.logger.Error("unconfirmed image invalid, reverting", "error", err)
		return m.startRevert(rec, attempts, err)
	}
	return m.jump(rec, hdr)
}

func (m *Manager) startRevert(rec bootrecord.Record, attempts uint8, cause error) (bootrecord.Record, *Decision, error) {
	m.emit(Event{Type: EventRevertStarted, Attempts: attempts, Err: cause})

	next, err := m.persist(bootrecord.Record{State: bootrecord.StateReverting, Attempts: attempts, Flags: rec.Flags})
	if err != nil {
		return m.retry(multierr.Combine(cause, err))
	}
	return next, nil, nil
}

// reverting handles StateReverting: move the rollback copy back into active.
func (m *Manager) reverting(ctx context.Context, rec bootrecord.Record) (bootrecord.Record, *Decision, error) {
	if _, err := m.engine.Run(ctx, swap.Revert, m.active, m.staging, rec.Cursor, m.cursorPersister(&rec)); err != nil {
		return m.retry(err)
	}

	hdr, err := m.verifyActive()
	if err != nil {
		if flash.IsHardwareFault(err) {
			return m.retry(err)
		}
		return m.halt(&FatalError{Reason: "rollback image invalid", Err: err})
	}

	m.logger.Info("revert complete", "version", hdr.Version)
	m.emit(Event{Type: EventRevertComplete, Version: hdr.Version})

	next, err := m.persist(bootrecord.Record{State: bootrecord.StateBoot, Flags: rec.Flags}.WithConsumed(true))
	if err != nil {
		return m.retry(err)
	}
	return next, nil, nil
}

// recoverCorrupt runs the active image as is when the boot record is lost,
// and rewrites a default record that ignores the current staging content.
func (m *Manager) recoverCorrupt(loadErr error) (*Decision, error) {
	m.state = bootrecord.StateCorrupt
	m.logger.Error("boot record lost, running active image", "error", loadErr)
	m.emit(Event{Type: EventCorruptRecord, Err: loadErr})

	hdr, err := m.verifyActive()
	if err != nil {
		if flash.IsHardwareFault(err) {
			_, d, err := m.retry(multierr.Combine(loadErr, err))
			return d, err
		}
		_, d, err := m.halt(&FatalError{Reason: "boot record corrupt and active image invalid",
			Err: multierr.Combine(loadErr, err)})
		return d, err
	}

	// A stale journal must not be mistaken for progress of a later swap.
	rec := bootrecord.Default().WithConsumed(true)
	if err := m.engine.Reset(); err != nil {
		m.logger.Error("clear swap journal", "error", err)
	} else if stored, err := m.persist(rec); err != nil {
		m.logger.Error("rewrite boot record", "error", err)
	} else {
		rec = stored
	}

	_, d, err := m.jump(rec, hdr)
	if d != nil {
		d.State = bootrecord.StateCorrupt
	}
	return d, err
}

// jump arms the watchdog and hands control to the application.
func (m *Manager) jump(rec bootrecord.Record, hdr image.Header) (bootrecord.Record, *Decision, error) {
	h, err := m.supervisor.Arm()
	if err != nil {
		return m.retry(err)
	}

	m.logger.Info("starting application", "version", hdr.Version, "state", rec.State.String())
	m.emit(Event{Type: EventJump, Version: hdr.Version, Attempts: rec.Attempts})

	return rec, &Decision{
		Action:   ActionJump,
		State:    rec.State,
		Reason:   m.reason,
		Active:   hdr,
		Watchdog: h,
		Updater:  m.updater(),
	}, nil
}

func (m *Manager) retry(err error) (bootrecord.Record, *Decision, error) {
	m.logger.Error("boot interrupted, retrying on next reset", "state", m.state.String(), "error", err)
	m.emit(Event{Type: EventRetry, Err: err})
	return bootrecord.Record{}, &Decision{Action: ActionRetry, State: m.state, Reason: m.reason}, err
}

func (m *Manager) halt(err *FatalError) (bootrecord.Record, *Decision, error) {
	m.logger.Error("no bootable image", "state", m.state.String(), "error", err)
	m.emit(Event{Type: EventHalt, Err: err})
	return bootrecord.Record{}, &Decision{Action: ActionHalt, State: m.state, Reason: m.reason}, err
}

func (m *Manager) persist(rec bootrecord.Record) (bootrecord.Record, error) {
	stored, err := m.store.Store(rec)
	if err != nil {
		return rec, fmt.Errorf("persist %s: %w", rec.State, err)
	}
	return stored, nil
}

// cursorPersister stores each completed block in the record pointed to by rec.
func (m *Manager) cursorPersister(rec *bootrecord.Record) swap.CursorPersister {
	return func(cursor uint32) error {
		next := *rec
		next.Cursor = cursor
		stored, err := m.persist(next)
		if err != nil {
			return err
		}
		*rec = stored
		return nil
	}
}

func (m *Manager) verifyActive() (image.Header, error) {
	return image.VerifyNamed(m.active, m.activeName)
}

// verifyStaging verifies the staging image and checks that it can be
// installed into active.
func (m *Manager) verifyStaging() (image.Header, error) {
	hdr, err := image.VerifyNamed(m.staging, m.stagingName)
	if err != nil {
		return hdr, err
	}
	return hdr, fitsActive(hdr, m.active, m.stagingName)
}

func (m *Manager) onSwapProgress(p swap.Progress) {
	m.emit(Event{Type: EventSwapProgress, Swap: p})
}

// emit fills in the common fields and calls the event callback if configured.
func (m *Manager) emit(e Event) {
	if m.config.EventCallback == nil {
		return
	}
	if e.State == 0 {
		e.State = m.state
	}
	e.Reason = m.reason
	m.config.EventCallback(e)
}

func (m *Manager) updater() *Updater {
	return &Updater{
		store:       m.store,
		active:      m.active,
		staging:     m.staging,
		activeName:  m.activeName,
		stagingName: m.stagingName,
		logger:      m.logger,
		emit:        m.emit,
	}
}

// partitions are the regions the boot manager works on.
type partitions struct {
	active      flash.Region
	staging     flash.Region
	records     flash.Region
	scratch     flash.Region
	journal     flash.Region
	activeName  string
	stagingName string
}

// openPartitions opens the active, staging and boot-record partitions. The
// boot-record partition holds two record slots, the scratch block and the
// scratch journal, one sector each.
func openPartitions(table partition.Table, res board.Resources) (partitions, error) {
	var parts partitions

	open := func(role partition.Role) (flash.Region, string, error) {
		p, err := table.Lookup(role)
		if err != nil {
			return flash.Region{}, "", err
		}
		r, err := res.Region(p)
		return r, p.Name, err
	}

	var err error
	if parts.active, parts.activeName, err = open(partition.RoleActive); err != nil {
		return parts, err
	}
	if parts.staging, parts.stagingName, err = open(partition.RoleStaging); err != nil {
		return parts, err
	}
	if parts.records, _, err = open(partition.RoleBootRecord); err != nil {
		return parts, err
	}

	ss := parts.records.SectorSize()
	if parts.scratch, err = parts.records.Sub(2*ss, ss); err != nil {
		return parts, fmt.Errorf("scratch block: %w", err)
	}
	if parts.journal, err = parts.records.Sub(3*ss, ss); err != nil {
		return parts, fmt.Errorf("scratch journal: %w", err)
	}
	return parts, nil
}

// errImageTooLarge marks a staging image that verifies but is larger than
// the active partition.
var errImageTooLarge = errors.New("image larger than active partition")

func fitsActive(hdr image.Header, active flash.Region, name string) error {
	if hdr.Size() > active.Size() {
		return &image.InvalidImageError{
			Partition: name,
			Reason:    fmt.Sprintf("image of %d bytes does not fit active partition of %d bytes", hdr.Size(), active.Size()),
			Err:       errImageTooLarge,
		}
	}
	return nil
}

// IsHalt reports whether err is a FatalError.
func IsHalt(err error) bool {
	return errors.Is(err, ErrHalted)
}
