package swap

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/moffa90/go-dcboot/flash"
)

const journalSize = 20

// journalEntry describes the block whose old active content is in scratch.
type journalEntry struct {
	Direction Direction
	Block     uint32
	OldCRC    uint32 // active block i before the swap (= scratch content)
	NewCRC    uint32 // staging block i before the swap
}

func (j journalEntry) encode() []byte {
	buf := make([]byte, journalSize)
	binary.LittleEndian.PutUint32(buf[0:4], j.Block)
	binary.LittleEndian.PutUint32(buf[4:8], j.OldCRC)
	binary.LittleEndian.PutUint32(buf[8:12], j.NewCRC)
	buf[12] = byte(j.Direction)
	binary.LittleEndian.PutUint32(buf[16:20], crc32.ChecksumIEEE(buf[:16]))
	return buf
}

func decodeJournal(buf []byte) (journalEntry, bool) {
	if len(buf) < journalSize {
		return journalEntry{}, false
	}
	if binary.LittleEndian.Uint32(buf[16:20]) != crc32.ChecksumIEEE(buf[:16]) {
		return journalEntry{}, false
	}
	j := journalEntry{
		Block:     binary.LittleEndian.Uint32(buf[0:4]),
		OldCRC:    binary.LittleEndian.Uint32(buf[4:8]),
		NewCRC:    binary.LittleEndian.Uint32(buf[8:12]),
		Direction: Direction(buf[12]),
	}
	if j.Direction != Forward && j.Direction != Revert {
		return journalEntry{}, false
	}
	return j, true
}

// readJournal returns the journal entry, if a valid one is present.
func readJournal(r flash.Region) (journalEntry, bool, error) {
	buf := make([]byte, journalSize)
	if err := r.Read(0, buf); err != nil {
		return journalEntry{}, false, err
	}
	j, ok := decodeJournal(buf)
	return j, ok, nil
}

func writeJournal(r flash.Region, j journalEntry) error {
	buf := j.encode()
	if err := r.Erase(0, r.Size()); err != nil {
		return err
	}
	if err := r.Write(0, buf); err != nil {
		return err
	}
	return r.Verify(0, buf)
}

// clearJournal erases the journal unless it is already blank.
func clearJournal(r flash.Region) error {
	buf := make([]byte, journalSize)
	if err := r.Read(0, buf); err != nil {
		return err
	}
	if flash.IsErased(buf) {
		return nil
	}
	return r.Erase(0, r.Size())
}
