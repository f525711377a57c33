package bootloader

import (
	"errors"
	"strings"
	"testing"

	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/image"
)

func TestFatalError(t *testing.T) {
	cause := &image.InvalidImageError{Partition: "active", Reason: "bad magic"}
	err := &FatalError{Reason: "no valid image", Err: cause}

	errMsg := err.Error()

	if !strings.Contains(errMsg, "boot halted") {
		t.Errorf("error message should contain 'boot halted', got: %s", errMsg)
	}

	if !strings.Contains(errMsg, "bad magic") {
		t.Errorf("error message should contain the cause, got: %s", errMsg)
	}

	if !errors.Is(err, ErrHalted) {
		t.Error("FatalError should match ErrHalted")
	}

	if !errors.Is(err, image.ErrInvalidImage) {
		t.Error("FatalError should unwrap to the image error")
	}
}

func TestStateError(t *testing.T) {
	err := &StateError{Op: "confirm", State: bootrecord.StateReverting}

	errMsg := err.Error()

	if !strings.Contains(errMsg, "confirm") {
		t.Errorf("error message should contain the operation, got: %s", errMsg)
	}

	if !strings.Contains(errMsg, "Reverting") {
		t.Errorf("error message should contain the state, got: %s", errMsg)
	}
}

func TestDescriptorMismatchError(t *testing.T) {
	err := &DescriptorMismatchError{
		Field:    "checksum",
		Expected: 0xDEADBEEF,
		Actual:   0x12345678,
	}

	errMsg := err.Error()

	if !strings.Contains(errMsg, "checksum") {
		t.Errorf("error message should contain the field, got: %s", errMsg)
	}

	if !strings.Contains(errMsg, "0xDEADBEEF") {
		t.Errorf("error message should contain expected value, got: %s", errMsg)
	}

	if !strings.Contains(errMsg, "0x12345678") {
		t.Errorf("error message should contain actual value, got: %s", errMsg)
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Option: "attempt budget", Reason: "required"}

	if !strings.Contains(err.Error(), "attempt budget") {
		t.Errorf("error message should name the option, got: %s", err.Error())
	}
}
