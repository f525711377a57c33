package flash

import "sync"

// Faulty wraps a Flash and injects failures. It is used by tests and the
// simulator to model power loss at an arbitrary flash operation and cells
// that refuse to program.
//
// Power loss: after CutPowerAfter(n), the n+1-th mutating operation (write or
// erase) is torn, i.e. only its first half is applied, and every operation
// after it fails with ErrPowerLoss until Restore is called. On a Memory a torn
// erase stops mid-sector, so even a single-sector erase leaves the first half
// of the sector erased and the rest untouched.
type Faulty struct {
	mu sync.Mutex

	dev Flash

	// remaining mutating operations before power is cut; negative = never
	remaining int
	dead      bool
	ops       int

	badFrom, badTo uint32
}

// NewFaulty wraps dev with no faults armed.
func NewFaulty(dev Flash) *Faulty {
	return &Faulty{dev: dev, remaining: -1}
}

// CutPowerAfter arms a power cut after n more successful writes or erases.
func (f *Faulty) CutPowerAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = n
}

// Restore brings power back and disarms any pending cut.
func (f *Faulty) Restore() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = -1
	f.dead = false
}

// Dead reports whether power has been cut.
func (f *Faulty) Dead() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dead
}

// Ops returns how many writes and erases have been attempted.
func (f *Faulty) Ops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

// FailRange makes every write or erase touching [from, to) fail.
// FailRange(0, 0) clears it.
func (f *Faulty) FailRange(from, to uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.badFrom, f.badTo = from, to
}

// Read implements Flash.
func (f *Faulty) Read(off uint32, p []byte) error {
	f.mu.Lock()
	dead := f.dead
	f.mu.Unlock()
	if dead {
		return ErrPowerLoss
	}
	return f.dev.Read(off, p)
}

// Write implements Flash.
func (f *Faulty) Write(off uint32, p []byte) error {
	tear, err := f.mutate(off, off+uint32(len(p)))
	if err != nil {
		return err
	}
	if tear {
		_ = f.dev.Write(off, p[:len(p)/2])
		return ErrPowerLoss
	}
	return f.dev.Write(off, p)
}

// Erase implements Flash.
func (f *Faulty) Erase(from, to uint32) error {
	tear, err := f.mutate(from, to)
	if err != nil {
		return err
	}
	if tear {
		f.tearErase(from, to)
		return ErrPowerLoss
	}
	return f.dev.Erase(from, to)
}

// partialEraser is implemented by devices that can model an erase stopped
// part way through a sector.
type partialEraser interface {
	erasePartial(from, to uint32)
}

// tearErase applies the first half of an erase of [from, to). Devices that
// cannot erase part of a sector keep whole sectors only.
func (f *Faulty) tearErase(from, to uint32) {
	half := from + (to-from)/2
	if pe, ok := f.dev.(partialEraser); ok {
		pe.erasePartial(from, half)
		return
	}
	ss := f.dev.SectorSize()
	if half = from + ((to-from)/ss/2)*ss; half > from {
		_ = f.dev.Erase(from, half)
	}
}

// SectorSize implements Flash.
func (f *Faulty) SectorSize() uint32 { return f.dev.SectorSize() }

// Capacity implements Flash.
func (f *Faulty) Capacity() uint32 { return f.dev.Capacity() }

// mutate accounts for one write or erase and reports whether it must be torn.
func (f *Faulty) mutate(from, to uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dead {
		return false, ErrPowerLoss
	}
	f.ops++
	if f.badTo > f.badFrom && from < f.badTo && f.badFrom < to {
		return false, errBadCell
	}
	if f.remaining == 0 {
		f.dead = true
		return true, nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return false, nil
}
