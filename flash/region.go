package flash

import (
	"bytes"
	"fmt"
)

// Region is a bounds-checked window [base, base+size) of a Flash device.
// Offsets passed to Region methods are relative to base.
type Region struct {
	dev  Flash
	base uint32
	size uint32
}

// NewRegion returns a window onto dev. It panics if the window does not fit
// the device, since regions are built from validated partition tables.
func NewRegion(dev Flash, base, size uint32) Region {
	if dev == nil {
		panic("flash device cannot be nil")
	}
	if uint64(base)+uint64(size) > uint64(dev.Capacity()) {
		panic(fmt.Sprintf("region 0x%08X+0x%X exceeds device capacity 0x%X", base, size, dev.Capacity()))
	}
	return Region{dev: dev, base: base, size: size}
}

// Base returns the device address of the region start.
func (r Region) Base() uint32 { return r.base }

// Size returns the region length in bytes.
func (r Region) Size() uint32 { return r.size }

// SectorSize returns the erase granularity of the underlying device.
func (r Region) SectorSize() uint32 { return r.dev.SectorSize() }

// Sub returns the window [off, off+size) of r.
func (r Region) Sub(off, size uint32) (Region, error) {
	if err := r.check(off, size); err != nil {
		return Region{}, err
	}
	return Region{dev: r.dev, base: r.base + off, size: size}, nil
}

// Read fills p from off.
func (r Region) Read(off uint32, p []byte) error {
	if err := r.check(off, uint32(len(p))); err != nil {
		return err
	}
	if err := r.dev.Read(r.base+off, p); err != nil {
		return &HardwareFaultError{Op: "read", Addr: r.base + off, Err: err}
	}
	return nil
}

// Write programs p at off.
func (r Region) Write(off uint32, p []byte) error {
	if err := r.check(off, uint32(len(p))); err != nil {
		return err
	}
	if err := r.dev.Write(r.base+off, p); err != nil {
		return &HardwareFaultError{Op: "write", Addr: r.base + off, Err: err}
	}
	return nil
}

// Erase erases [off, off+size). Both must be sector aligned.
func (r Region) Erase(off, size uint32) error {
	if err := r.check(off, size); err != nil {
		return err
	}
	ss := r.dev.SectorSize()
	if (r.base+off)%ss != 0 || size%ss != 0 {
		return fmt.Errorf("erase 0x%08X+0x%X: %w", r.base+off, size, ErrUnaligned)
	}
	if err := r.dev.Erase(r.base+off, r.base+off+size); err != nil {
		return &HardwareFaultError{Op: "erase", Addr: r.base + off, Err: err}
	}
	return nil
}

// Program erases [off, off+len(p)) and writes p there, then reads it back.
// len(p) must be a whole number of sectors.
func (r Region) Program(off uint32, p []byte) error {
	if err := r.Erase(off, uint32(len(p))); err != nil {
		return err
	}
	if err := r.Write(off, p); err != nil {
		return err
	}
	return r.Verify(off, p)
}

// Verify reads [off, off+len(p)) back and compares it with p.
func (r Region) Verify(off uint32, p []byte) error {
	got := make([]byte, len(p))
	if err := r.Read(off, got); err != nil {
		return err
	}
	if !bytes.Equal(got, p) {
		return &HardwareFaultError{Op: "verify", Addr: r.base + off}
	}
	return nil
}

func (r Region) check(off, size uint32) error {
	if uint64(off)+uint64(size) > uint64(r.size) {
		return fmt.Errorf("access 0x%X+0x%X in region of 0x%X bytes: %w", off, size, r.size, ErrOutOfBounds)
	}
	return nil
}
