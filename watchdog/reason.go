package watchdog

import "fmt"

// ResetReason is the cause of the last reset as latched by the hardware.
type ResetReason uint8

const (
	ReasonUnknown ResetReason = iota
	ReasonPowerOn
	ReasonWatchdog
	ReasonDebugger
	ReasonPin
	ReasonSoftware
)

var reasonNames = map[ResetReason]string{
	ReasonUnknown:  "unknown",
	ReasonPowerOn:  "power-on",
	ReasonWatchdog: "watchdog",
	ReasonDebugger: "debugger",
	ReasonPin:      "pin",
	ReasonSoftware: "software",
}

func (r ResetReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// ParseResetReason is the inverse of String.
func ParseResetReason(s string) (ResetReason, error) {
	for r, name := range reasonNames {
		if name == s {
			return r, nil
		}
	}
	return ReasonUnknown, fmt.Errorf("unknown reset reason %q", s)
}

// ResetReasonReader reads the reset cause register. Implementations may clear
// the register on read.
type ResetReasonReader interface {
	ResetReason() (ResetReason, error)
}

// ResetReasonFunc adapts a function to ResetReasonReader.
type ResetReasonFunc func() (ResetReason, error)

// ResetReason implements ResetReasonReader.
func (f ResetReasonFunc) ResetReason() (ResetReason, error) { return f() }
