package flash

import (
	"fmt"
	"sync"
)

// Memory is an in-memory NOR flash. A fresh Memory is fully erased.
type Memory struct {
	mu         sync.Mutex
	data       []byte
	sectorSize uint32
}

// NewMemory creates an erased device of capacity bytes. capacity must be a
// whole number of sectors.
func NewMemory(capacity, sectorSize uint32) *Memory {
	if sectorSize == 0 || capacity%sectorSize != 0 {
		panic(fmt.Sprintf("capacity %d is not a multiple of sector size %d", capacity, sectorSize))
	}
	data := make([]byte, capacity)
	for i := range data {
		data[i] = ErasedByte
	}
	return &Memory{data: data, sectorSize: sectorSize}
}

// Read implements Flash.
func (m *Memory) Read(off uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(off, uint32(len(p))); err != nil {
		return err
	}
	copy(p, m.data[off:])
	return nil
}

// Write implements Flash. Programming ANDs p into the current content.
func (m *Memory) Write(off uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(off, uint32(len(p))); err != nil {
		return err
	}
	for i, b := range p {
		m.data[off+uint32(i)] &= b
	}
	return nil
}

// Erase implements Flash.
func (m *Memory) Erase(from, to uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if from > to {
		return fmt.Errorf("erase 0x%X-0x%X: %w", from, to, ErrOutOfBounds)
	}
	if err := m.check(from, to-from); err != nil {
		return err
	}
	if from%m.sectorSize != 0 || to%m.sectorSize != 0 {
		return fmt.Errorf("erase 0x%X-0x%X: %w", from, to, ErrUnaligned)
	}
	for i := from; i < to; i++ {
		m.data[i] = ErasedByte
	}
	return nil
}

// erasePartial erases [from, to) without alignment checks, as a power cut
// during a sector erase would.
func (m *Memory) erasePartial(from, to uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to = min(to, uint32(len(m.data)))
	for i := from; i < to; i++ {
		m.data[i] = ErasedByte
	}
}

// SectorSize implements Flash.
func (m *Memory) SectorSize() uint32 { return m.sectorSize }

// Capacity implements Flash.
func (m *Memory) Capacity() uint32 { return uint32(len(m.data)) }

// Snapshot returns a copy of [off, off+n).
func (m *Memory) Snapshot(off, n uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]byte, n)
	copy(out, m.data[off:off+n])
	return out
}

func (m *Memory) check(off, size uint32) error {
	if uint64(off)+uint64(size) > uint64(len(m.data)) {
		return fmt.Errorf("access 0x%X+0x%X on %d-byte device: %w", off, size, len(m.data), ErrOutOfBounds)
	}
	return nil
}
