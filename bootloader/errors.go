package bootloader

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-dcboot/bootrecord"
)

// ErrHalted matches every FatalError.
var ErrHalted = errors.New("boot halted")

// FatalError indicates that no bootable image exists. The device must stay in
// the bootloader until it is recovered externally.
type FatalError struct {
	// Reason describes what left the device unbootable
	Reason string

	// Err is the verification failure that led here, if any
	Err error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("boot halted: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("boot halted: %s", e.Reason)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrHalted) true for any FatalError.
func (e *FatalError) Is(target error) bool {
	return target == ErrHalted
}

// StateError indicates an application request that is not allowed in the
// current boot state.
type StateError struct {
	Op    string
	State bootrecord.State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

// DescriptorMismatchError indicates that the staging header does not match
// the update the application announced.
type DescriptorMismatchError struct {
	Field    string
	Expected uint32
	Actual   uint32
}

func (e *DescriptorMismatchError) Error() string {
	return fmt.Sprintf("staging %s mismatch: expected 0x%08X, found 0x%08X",
		e.Field, e.Expected, e.Actual)
}

// ConfigError indicates a missing or invalid Manager option.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Option, e.Reason)
}
