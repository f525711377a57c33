package bootloader

import (
	"fmt"

	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/logging"
	"github.com/moffa90/go-dcboot/swap"
	"github.com/moffa90/go-dcboot/watchdog"
)

// EventType identifies a boot event.
type EventType uint8

// Boot events.
const (
	EventBoot EventType = iota + 1
	EventUpdateAccepted
	EventUpdateRejected
	EventSwapProgress
	EventSwapComplete
	EventWatchdogReset
	EventRevertStarted
	EventRevertComplete
	EventConfirmed
	EventUpdateRequested
	EventCorruptRecord
	EventRetry
	EventHalt
	EventJump
)

var eventNames = map[EventType]string{
	EventBoot:            "boot",
	EventUpdateAccepted:  "update_accepted",
	EventUpdateRejected:  "update_rejected",
	EventSwapProgress:    "swap_progress",
	EventSwapComplete:    "swap_complete",
	EventWatchdogReset:   "watchdog_reset",
	EventRevertStarted:   "revert_started",
	EventRevertComplete:  "revert_complete",
	EventConfirmed:       "confirmed",
	EventUpdateRequested: "update_requested",
	EventCorruptRecord:   "corrupt_record",
	EventRetry:           "retry",
	EventHalt:            "halt",
	EventJump:            "jump",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Event is passed to EventCallback whenever the boot manager makes progress
// or takes a decision.
type Event struct {
	Type EventType

	// State is the boot state when the event happened
	State bootrecord.State

	// Reason is the reset reason read at boot
	Reason watchdog.ResetReason

	// Attempts is the watchdog reset counter
	Attempts uint8

	// Swap is set for EventSwapProgress
	Swap swap.Progress

	// Version is the firmware version involved, if any
	Version uint32

	// Err is set for EventUpdateRejected, EventRetry and EventHalt
	Err error
}

// EventCallback is called synchronously for each Event.
// Implementations should return quickly since the boot is blocked meanwhile.
//
// Example:
//
//	mgr, _ := bootloader.New(tbl, res,
//	    bootloader.WithEventCallback(func(e bootloader.Event) {
//	        fmt.Printf("[%s] %s\n", e.State, e.Type)
//	    }),
//	)
type EventCallback func(Event)

// Logger is the logging interface accepted by the boot manager.
type Logger = logging.Logger
