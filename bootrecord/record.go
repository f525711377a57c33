// Package bootrecord persists the boot manager's state machine across resets.
//
// The record lives in two redundant slots, one erase sector each, at the
// start of the boot-record partition. A slot is authoritative when its
// commit marker is programmed and its CRC is valid; when both are, the one
// with the newer generation wins. Store always writes the other slot and
// programs the commit marker last, so a power loss at any point leaves either
// the old or the new record authoritative, never a half-written one.
//
// Slot layout (little-endian):
//
//	[0]     Layout      record layout version (1)
//	[1]     State       state tag
//	[2]     Attempts    consecutive watchdog resets since swap/confirm
//	[3]     Flags       bit 0: staging image consumed
//	[4:8]   Cursor      blocks completed by the current swap run
//	[8:12]  Generation  incremented on every store
//	[12:16] CRC         CRC-32 of bytes 0..12
//	[16]    Commit      0x00 once committed, 0xFF (erased) otherwise
package bootrecord

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// LayoutVersion is the on-flash record format written by this package.
const LayoutVersion = 1

// Encoded sizes.
const (
	// recordSize covers the CRC-protected fields and the CRC itself
	recordSize = 16

	// markerOffset is where the commit marker byte lives
	markerOffset = recordSize

	// SlotSize is the number of bytes a slot occupies before padding
	SlotSize = recordSize + 1

	markerCommitted = 0x00
)

// State is the persisted state tag of the boot state machine.
type State uint8

// States. Zero and 0xFF are never written so that blank or zeroed flash
// cannot decode as a meaningful state.
const (
	StateBoot               State = 0x01
	StateSwapRequested      State = 0x02
	StateSwappedUnconfirmed State = 0x03
	StateReverting          State = 0x04

	// StateCorrupt is reported when neither slot is readable. It is never
	// persisted.
	StateCorrupt State = 0xFE
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "Boot"
	case StateSwapRequested:
		return "SwapRequested"
	case StateSwappedUnconfirmed:
		return "SwappedUnconfirmed"
	case StateReverting:
		return "Reverting"
	case StateCorrupt:
		return "CorruptState"
	default:
		return fmt.Sprintf("State(0x%02X)", uint8(s))
	}
}

// Valid reports whether s may be persisted.
func (s State) Valid() bool {
	return s >= StateBoot && s <= StateReverting
}

// Flags holds boolean record attributes.
type Flags uint8

const (
	// FlagStagingConsumed marks the staging image as already handled: it is
	// either the rollback copy of a completed update or was rejected. A new
	// update request clears it.
	FlagStagingConsumed Flags = 1 << 0
)

// Record is the persisted boot state.
type Record struct {
	State      State
	Attempts   uint8
	Cursor     uint32
	Flags      Flags
	Generation uint32
}

// Default returns the record used on first boot: Boot, no pending swap.
func Default() Record {
	return Record{State: StateBoot}
}

// Consumed reports whether FlagStagingConsumed is set.
func (r Record) Consumed() bool {
	return r.Flags&FlagStagingConsumed != 0
}

// WithConsumed returns r with FlagStagingConsumed set or cleared.
func (r Record) WithConsumed(consumed bool) Record {
	if consumed {
		r.Flags |= FlagStagingConsumed
	} else {
		r.Flags &^= FlagStagingConsumed
	}
	return r
}

func (r Record) String() string {
	return fmt.Sprintf("%s attempts=%d cursor=%d flags=0x%02X gen=%d",
		r.State, r.Attempts, r.Cursor, uint8(r.Flags), r.Generation)
}

// encode returns the CRC-protected record bytes (without commit marker).
func (r Record) encode() []byte {
	buf := make([]byte, recordSize)
	buf[0] = LayoutVersion
	buf[1] = byte(r.State)
	buf[2] = r.Attempts
	buf[3] = byte(r.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], r.Cursor)
	binary.LittleEndian.PutUint32(buf[8:12], r.Generation)
	binary.LittleEndian.PutUint32(buf[12:16], crc32.ChecksumIEEE(buf[:12]))
	return buf
}

// decode parses a slot. ok is false for a bad CRC, unknown layout or state.
func decode(slot []byte) (rec Record, committed bool, ok bool) {
	if len(slot) < SlotSize {
		return Record{}, false, false
	}
	if binary.LittleEndian.Uint32(slot[12:16]) != crc32.ChecksumIEEE(slot[:12]) {
		return Record{}, false, false
	}
	if slot[0] != LayoutVersion {
		return Record{}, false, false
	}
	rec = Record{
		State:      State(slot[1]),
		Attempts:   slot[2],
		Flags:      Flags(slot[3]),
		Cursor:     binary.LittleEndian.Uint32(slot[4:8]),
		Generation: binary.LittleEndian.Uint32(slot[8:12]),
	}
	if !rec.State.Valid() {
		return Record{}, false, false
	}
	return rec, slot[markerOffset] == markerCommitted, true
}

// newer reports whether generation a is newer than b, tolerating wrap-around.
func newer(a, b uint32) bool {
	return int32(a-b) > 0
}
