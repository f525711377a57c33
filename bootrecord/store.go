package bootrecord

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/logging"
)

// ErrCorruptState is returned by Load when no slot holds a valid record.
var ErrCorruptState = errors.New("boot record corrupt on both slots")

// Store reads and writes the boot record in its two slots.
type Store struct {
	slots  [2]flash.Region
	logger logging.Logger
}

// NewStore uses the first two sectors of r as record slots.
func NewStore(r flash.Region, logger logging.Logger) (*Store, error) {
	ss := r.SectorSize()
	if ss < SlotSize {
		return nil, fmt.Errorf("sector size %d cannot hold a %d-byte record slot", ss, SlotSize)
	}

	var s Store
	for i := range s.slots {
		slot, err := r.Sub(uint32(i)*ss, ss)
		if err != nil {
			return nil, fmt.Errorf("record slot %d: %w", i, err)
		}
		s.slots[i] = slot
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s.logger = logger
	return &s, nil
}

// slotState is what scanning one slot found.
type slotState struct {
	rec       Record
	valid     bool // committed and CRC valid
	committed bool // commit marker programmed, whatever the CRC says
	readError error
}

// Load returns the authoritative record.
//
// A device on which no slot was ever committed (both blank, or the very
// first Store was interrupted) is on its first boot and gets Default() with
// no error. If neither slot is valid but a commit marker is present, the
// record was lost: Load returns Default() and ErrCorruptState.
func (s *Store) Load() (Record, error) {
	states, auth := s.scan()
	if auth >= 0 {
		return states[auth].rec, nil
	}

	if !states[0].committed && !states[1].committed &&
		states[0].readError == nil && states[1].readError == nil {
		s.logger.Info("boot record never committed, first boot")
		return Default(), nil
	}

	err := ErrCorruptState
	for i, st := range states {
		if st.readError != nil {
			err = fmt.Errorf("%w: slot %d: %v", ErrCorruptState, i, st.readError)
		}
	}
	s.logger.Error("boot record corrupt", "error", err)
	return Default(), err
}

// Store persists rec in the non-authoritative slot and commits it. The
// generation is assigned by Store; rec.Generation is ignored.
//
// Until the commit marker is programmed the previous record stays
// authoritative. A readback mismatch is reported as a
// *flash.HardwareFaultError and nothing is committed.
func (s *Store) Store(rec Record) (Record, error) {
	if !rec.State.Valid() {
		return rec, fmt.Errorf("cannot persist state %s", rec.State)
	}

	states, auth := s.scan()
	target := 0
	rec.Generation = 1
	if auth >= 0 {
		target = 1 - auth
		rec.Generation = states[auth].rec.Generation + 1
	}

	slot := s.slots[target]
	buf := rec.encode()

	if err := slot.Erase(0, slot.Size()); err != nil {
		return rec, fmt.Errorf("erase slot %d: %w", target, err)
	}
	if err := slot.Write(0, buf); err != nil {
		return rec, fmt.Errorf("write slot %d: %w", target, err)
	}
	if err := slot.Verify(0, buf); err != nil {
		return rec, fmt.Errorf("verify slot %d: %w", target, err)
	}

	// The flip: a single-byte program of the commit marker.
	marker := []byte{markerCommitted}
	if err := slot.Write(markerOffset, marker); err != nil {
		return rec, fmt.Errorf("commit slot %d: %w", target, err)
	}
	if err := slot.Verify(markerOffset, marker); err != nil {
		return rec, fmt.Errorf("commit slot %d: %w", target, err)
	}

	s.logger.Debug("boot record stored", "slot", target, "record", rec.String())
	return rec, nil
}

// scan reads both slots and returns the index of the authoritative one, or -1.
func (s *Store) scan() ([2]slotState, int) {
	var states [2]slotState
	auth := -1

	for i, slot := range s.slots {
		buf := make([]byte, SlotSize)
		if err := slot.Read(0, buf); err != nil {
			states[i].readError = err
			continue
		}
		states[i].committed = buf[markerOffset] == markerCommitted

		rec, committed, ok := decode(buf)
		if !ok || !committed {
			continue
		}
		states[i] = slotState{rec: rec, valid: true, committed: true}

		if auth < 0 || newer(rec.Generation, states[auth].rec.Generation) {
			auth = i
		}
	}

	return states, auth
}
