package flash

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrHardwareFault matches every HardwareFaultError
	ErrHardwareFault = errors.New("flash hardware fault")

	// ErrOutOfBounds indicates an access outside a device or region
	ErrOutOfBounds = errors.New("flash access out of bounds")

	// ErrUnaligned indicates an erase that does not start and end on sector boundaries
	ErrUnaligned = errors.New("flash erase not sector aligned")

	// ErrPowerLoss is returned by Faulty once its power has been cut
	ErrPowerLoss = errors.New("power lost")
)

// HardwareFaultError is a failed flash operation. Op is "read", "write",
// "erase" or "verify"; Addr is the device address of the operation.
type HardwareFaultError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *HardwareFaultError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("flash %s at 0x%08X failed", e.Op, e.Addr)
	}
	return fmt.Sprintf("flash %s at 0x%08X failed: %v", e.Op, e.Addr, e.Err)
}

func (e *HardwareFaultError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrHardwareFault) true for any HardwareFaultError.
func (e *HardwareFaultError) Is(target error) bool {
	return target == ErrHardwareFault
}

// IsHardwareFault returns true if err is or wraps a HardwareFaultError.
func IsHardwareFault(err error) bool {
	return errors.Is(err, ErrHardwareFault)
}

var errBadCell = errors.New("cell failed to program")
