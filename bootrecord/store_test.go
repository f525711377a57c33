package bootrecord

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-dcboot/flash"
)

const sector = 256

func newStore(t *testing.T, dev flash.Flash) *Store {
	t.Helper()
	s, err := NewStore(flash.NewRegion(dev, 0, 2*sector), nil)
	require.NoError(t, err)
	return s
}

func TestFirstBootIsDefault(t *testing.T) {
	s := newStore(t, flash.NewMemory(2*sector, sector))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), rec)
	assert.Equal(t, StateBoot, rec.State)
}

func TestStoreAndLoad(t *testing.T) {
	mem := flash.NewMemory(2*sector, sector)
	s := newStore(t, mem)

	want := Record{State: StateSwapRequested, Attempts: 2, Cursor: 17}.WithConsumed(true)
	stored, err := s.Store(want)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stored.Generation)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.True(t, got.Consumed())

	// A fresh Store over the same flash sees the same record.
	got, err = newStore(t, mem).Load()
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestStoreAlternatesSlots(t *testing.T) {
	mem := flash.NewMemory(2*sector, sector)
	s := newStore(t, mem)

	for i := uint32(1); i <= 5; i++ {
		rec, err := s.Store(Record{State: StateSwapRequested, Cursor: i})
		require.NoError(t, err)
		assert.Equal(t, i, rec.Generation)

		// Odd generations land in slot 0, even ones in slot 1.
		slot := mem.Snapshot(((i+1)%2)*sector, SlotSize)
		dec, committed, ok := decode(slot)
		require.True(t, ok)
		assert.True(t, committed)
		assert.Equal(t, i, dec.Cursor)
	}

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.Cursor)
}

func TestStoreRejectsInvalidState(t *testing.T) {
	s := newStore(t, flash.NewMemory(2*sector, sector))
	_, err := s.Store(Record{State: StateCorrupt})
	assert.Error(t, err)
	_, err = s.Store(Record{})
	assert.Error(t, err)
}

// TestStorePowerLoss cuts power at every flash operation of a Store and checks
// that the record read afterwards is either the old or the new one.
func TestStorePowerLoss(t *testing.T) {
	old := Record{State: StateSwapRequested, Cursor: 3}
	next := Record{State: StateSwapRequested, Cursor: 4}

	for cut := 0; ; cut++ {
		mem := flash.NewMemory(2*sector, sector)
		faulty := flash.NewFaulty(mem)
		s := newStore(t, faulty)

		_, err := s.Store(old)
		require.NoError(t, err)
		_, err = s.Store(Record{State: StateSwapRequested, Cursor: 3, Attempts: 1})
		require.NoError(t, err)
		old.Attempts = 1

		faulty.CutPowerAfter(cut)
		_, storeErr := s.Store(next)
		faulty.Restore()

		got, err := s.Load()
		require.NoError(t, err, "cut after %d ops", cut)
		if storeErr == nil {
			assert.Equal(t, next.Cursor, got.Cursor)
			break
		}
		assert.Contains(t, []uint32{old.Cursor, next.Cursor}, got.Cursor, "cut after %d ops", cut)
		if got.Cursor == old.Cursor {
			assert.Equal(t, uint8(1), got.Attempts)
		}
	}
}

func TestFirstStoreInterruptedIsStillFirstBoot(t *testing.T) {
	for cut := 0; cut < 3; cut++ {
		faulty := flash.NewFaulty(flash.NewMemory(2*sector, sector))
		s := newStore(t, faulty)

		faulty.CutPowerAfter(cut)
		_, err := s.Store(Record{State: StateSwapRequested})
		require.Error(t, err)
		faulty.Restore()

		rec, err := s.Load()
		require.NoError(t, err, "cut after %d ops", cut)
		assert.Equal(t, Default(), rec)
	}
}

func TestCorruptBothSlots(t *testing.T) {
	mem := flash.NewMemory(2*sector, sector)
	s := newStore(t, mem)

	_, err := s.Store(Record{State: StateSwappedUnconfirmed})
	require.NoError(t, err)
	_, err = s.Store(Record{State: StateSwappedUnconfirmed, Attempts: 1})
	require.NoError(t, err)

	// Flip bits inside the CRC-protected area of both slots.
	require.NoError(t, mem.Write(1, []byte{0x00}))
	require.NoError(t, mem.Write(sector+1, []byte{0x00}))

	rec, err := s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptState))
	assert.Equal(t, Default(), rec)

	// Storing a fresh record recovers.
	_, err = s.Store(Default())
	require.NoError(t, err)
	rec, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateBoot, rec.State)
}

func TestOneCorruptSlotFallsBack(t *testing.T) {
	mem := flash.NewMemory(2*sector, sector)
	s := newStore(t, mem)

	_, err := s.Store(Record{State: StateSwapRequested, Cursor: 1})
	require.NoError(t, err)
	_, err = s.Store(Record{State: StateSwapRequested, Cursor: 2})
	require.NoError(t, err)

	// Corrupt the newer record (slot 1).
	require.NoError(t, mem.Write(sector+4, []byte{0x00}))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), rec.Cursor)
}

func TestReadbackFailureDoesNotCommit(t *testing.T) {
	faulty := flash.NewFaulty(flash.NewMemory(2*sector, sector))
	s := newStore(t, faulty)

	_, err := s.Store(Record{State: StateBoot})
	require.NoError(t, err)

	faulty.FailRange(sector, 2*sector)
	_, err = s.Store(Record{State: StateSwapRequested})
	require.Error(t, err)
	assert.True(t, flash.IsHardwareFault(err))
	faulty.FailRange(0, 0)

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateBoot, rec.State)
}

func TestGenerationWrap(t *testing.T) {
	assert.True(t, newer(1, 0))
	assert.True(t, newer(0, 0xFFFFFFFF))
	assert.False(t, newer(0xFFFFFFFF, 0))
	assert.False(t, newer(5, 5))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SwappedUnconfirmed", StateSwappedUnconfirmed.String())
	assert.Equal(t, "CorruptState", StateCorrupt.String())
	assert.Equal(t, "State(0x09)", State(9).String())
}
