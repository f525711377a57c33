package swap

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/moffa90/go-dcboot/flash"
)

// Direction tells which way a run moves content.
type Direction uint8

const (
	// Forward installs the staging image into active
	Forward Direction = 1

	// Revert moves the rollback copy held in staging back into active
	Revert Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Revert:
		return "revert"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ErrInconsistent is returned when resuming a block finds contents that
// match none of the states the algorithm can leave behind.
var ErrInconsistent = errors.New("swap block contents inconsistent with journal")

// CursorPersister durably records the number of completed blocks. It must
// not return before the value would survive a power loss.
type CursorPersister func(cursor uint32) error

// Engine runs block swaps. It owns the scratch block and journal.
type Engine struct {
	scratch flash.Region
	journal flash.Region
	config  Config
}

// New creates an Engine. scratch must hold at least one block and journal
// must be a whole number of sectors; both must survive power loss and must
// not overlap the partitions being swapped.
func New(scratch, journal flash.Region, opts ...Option) (*Engine, error) {
	if journal.Size() < journalSize || journal.Size()%journal.SectorSize() != 0 {
		return nil, fmt.Errorf("journal region of %d bytes is unusable", journal.Size())
	}
	if scratch.Size()%scratch.SectorSize() != 0 {
		return nil, fmt.Errorf("scratch region of %d bytes is not sector aligned", scratch.Size())
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{scratch: scratch, journal: journal, config: cfg}, nil
}

// InProgress reports whether a run in direction dir was interrupted after
// it started modifying a block.
func (e *Engine) InProgress(dir Direction) (bool, error) {
	j, ok, err := readJournal(e.journal)
	if err != nil {
		return false, err
	}
	return ok && j.Direction == dir, nil
}

// Reset forgets any interrupted run. Call it only when the partitions are
// abandoned, e.g. after the boot record was lost.
func (e *Engine) Reset() error {
	return clearJournal(e.journal)
}

// Blocks returns the number of swap blocks of active.
func Blocks(active flash.Region) uint32 {
	return active.Size() / active.SectorSize()
}

// Run swaps blocks cursor..N-1 between active and staging, calling persist
// after each block. It returns the cursor reached. A run with cursor == N
// returns immediately.
//
// The operation can be cancelled via context between blocks; the returned
// cursor is then durable.
func (e *Engine) Run(ctx context.Context, dir Direction, active, staging flash.Region, cursor uint32, persist CursorPersister) (uint32, error) {
	bs := active.SectorSize()
	if staging.SectorSize() != bs {
		return cursor, fmt.Errorf("active sector %d and staging sector %d differ", bs, staging.SectorSize())
	}
	if staging.Size() < active.Size() {
		return cursor, fmt.Errorf("staging (%d bytes) smaller than active (%d bytes)", staging.Size(), active.Size())
	}
	if e.scratch.Size() < bs || bs%e.scratch.SectorSize() != 0 {
		return cursor, fmt.Errorf("scratch (%d bytes, %d-byte sectors) cannot hold a %d-byte block",
			e.scratch.Size(), e.scratch.SectorSize(), bs)
	}
	if persist == nil {
		return cursor, fmt.Errorf("cursor persister cannot be nil")
	}

	total := Blocks(active)
	if cursor > total {
		return cursor, fmt.Errorf("cursor %d beyond %d blocks", cursor, total)
	}

	if cursor == total {
		if err := clearJournal(e.journal); err != nil {
			return cursor, fmt.Errorf("clear journal: %w", err)
		}
		return cursor, nil
	}

	e.config.Logger.Info("swap started",
		"direction", dir.String(),
		"cursor", cursor,
		"blocks", total,
	)

	start := time.Now()
	for i := cursor; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("cancelled at block %d: %w", i, err)
		}

		if err := e.swapBlock(dir, i, active, staging); err != nil {
			e.config.Logger.Error("swap block failed", "direction", dir.String(), "block", i, "error", err)
			return i, fmt.Errorf("swap block %d: %w", i, err)
		}

		if err := persist(i + 1); err != nil {
			return i, fmt.Errorf("persist cursor %d: %w", i+1, err)
		}

		e.reportProgress(Progress{
			Direction:   dir,
			Block:       i + 1,
			TotalBlocks: total,
			Percentage:  float64(i+1) / float64(total) * 100,
			ElapsedTime: time.Since(start),
		})
	}

	if err := clearJournal(e.journal); err != nil {
		return total, fmt.Errorf("clear journal: %w", err)
	}

	e.config.Logger.Info("swap complete",
		"direction", dir.String(),
		"blocks", total,
		"elapsed", time.Since(start).String(),
	)
	return total, nil
}

// swapBlock performs steps 1-4 for block i, resuming from the journal when it
// describes this block.
func (e *Engine) swapBlock(dir Direction, i uint32, active, staging flash.Region) error {
	bs := active.SectorSize()
	off := i * bs
	scratch, err := e.scratch.Sub(0, bs)
	if err != nil {
		return err
	}

	// Step 1: the staging block must be readable.
	newBuf := make([]byte, bs)
	if err := staging.Read(off, newBuf); err != nil {
		return fmt.Errorf("read staging: %w", err)
	}

	j, ok, err := readJournal(e.journal)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if ok && j.Direction == dir && j.Block == i {
		return e.resumeBlock(j, off, scratch, active, staging, newBuf)
	}

	// Step 2: preserve the active block in scratch.
	oldBuf := make([]byte, bs)
	if err := active.Read(off, oldBuf); err != nil {
		return fmt.Errorf("read active: %w", err)
	}
	if err := scratch.Program(0, oldBuf); err != nil {
		return fmt.Errorf("program scratch: %w", err)
	}
	j = journalEntry{
		Direction: dir,
		Block:     i,
		OldCRC:    crc32.ChecksumIEEE(oldBuf),
		NewCRC:    crc32.ChecksumIEEE(newBuf),
	}
	if err := writeJournal(e.journal, j); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	// Steps 3 and 4.
	if err := active.Program(off, newBuf); err != nil {
		return fmt.Errorf("program active: %w", err)
	}
	return e.restoreFromScratch(off, scratch, staging, j.OldCRC)
}

// resumeBlock finishes a block whose scratch copy was already journaled.
func (e *Engine) resumeBlock(j journalEntry, off uint32, scratch, active, staging flash.Region, stagingBuf []byte) error {
	activeBuf := make([]byte, len(stagingBuf))
	if err := active.Read(off, activeBuf); err != nil {
		return fmt.Errorf("read active: %w", err)
	}
	activeCRC := crc32.ChecksumIEEE(activeBuf)
	stagingCRC := crc32.ChecksumIEEE(stagingBuf)

	e.config.Logger.Debug("resuming block",
		"direction", j.Direction.String(),
		"block", j.Block,
		"active_done", activeCRC == j.NewCRC,
		"staging_done", stagingCRC == j.OldCRC,
	)

	switch {
	case activeCRC == j.NewCRC && stagingCRC == j.OldCRC:
		// Both steps done; only the cursor was lost.
		return nil
	case activeCRC == j.NewCRC:
		// Step 3 done, step 4 interrupted or not started.
		return e.restoreFromScratch(off, scratch, staging, j.OldCRC)
	case stagingCRC == j.NewCRC:
		// Step 3 interrupted: staging still holds the new content.
		if err := active.Program(off, stagingBuf); err != nil {
			return fmt.Errorf("program active: %w", err)
		}
		return e.restoreFromScratch(off, scratch, staging, j.OldCRC)
	default:
		return &flash.HardwareFaultError{Op: "verify", Addr: active.Base() + off, Err: ErrInconsistent}
	}
}

// restoreFromScratch is step 4: program the scratch content into staging.
func (e *Engine) restoreFromScratch(off uint32, scratch, staging flash.Region, wantCRC uint32) error {
	buf := make([]byte, scratch.Size())
	if err := scratch.Read(0, buf); err != nil {
		return fmt.Errorf("read scratch: %w", err)
	}
	if crc32.ChecksumIEEE(buf) != wantCRC {
		return &flash.HardwareFaultError{Op: "verify", Addr: scratch.Base(), Err: ErrInconsistent}
	}
	if err := staging.Program(off, buf); err != nil {
		return fmt.Errorf("program staging: %w", err)
	}
	return nil
}

// reportProgress calls the progress callback if configured.
func (e *Engine) reportProgress(p Progress) {
	if e.config.ProgressCallback != nil {
		e.config.ProgressCallback(p)
	}
}
