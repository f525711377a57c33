package board

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/partition"
	"github.com/moffa90/go-dcboot/watchdog"
)

// ErrResourcesTaken is returned by a second Arena.Take.
var ErrResourcesTaken = errors.New("board resources already taken")

// Resources are the peripherals the boot manager drives.
type Resources struct {
	Internal    flash.Flash
	External    flash.Flash
	Watchdog    watchdog.Timer
	ResetReason watchdog.ResetReasonReader
}

// Device returns the flash chip backing d.
func (r Resources) Device(d partition.Device) flash.Flash {
	if d == partition.DeviceExternal {
		return r.External
	}
	return r.Internal
}

// Region opens p on the matching device.
func (r Resources) Region(p partition.Partition) (flash.Region, error) {
	dev := r.Device(p.Device)
	if dev == nil {
		return flash.Region{}, fmt.Errorf("no %s flash for partition %s", p.Device, p.Name)
	}
	if uint64(p.End()) > uint64(dev.Capacity()) {
		return flash.Region{}, fmt.Errorf("partition %s exceeds %s flash: %w", p, p.Device, flash.ErrOutOfBounds)
	}
	return flash.NewRegion(dev, p.Base, p.Length), nil
}

// Arena hands out Resources once.
type Arena struct {
	taken atomic.Bool
	res   Resources
}

// NewArena wraps res. Every field must be set.
func NewArena(res Resources) (*Arena, error) {
	switch {
	case res.Internal == nil:
		return nil, fmt.Errorf("internal flash cannot be nil")
	case res.External == nil:
		return nil, fmt.Errorf("external flash cannot be nil")
	case res.Watchdog == nil:
		return nil, fmt.Errorf("watchdog cannot be nil")
	case res.ResetReason == nil:
		return nil, fmt.Errorf("reset reason reader cannot be nil")
	}
	return &Arena{res: res}, nil
}

// Take returns the resources on the first call and ErrResourcesTaken after.
func (a *Arena) Take() (Resources, error) {
	if !a.taken.CompareAndSwap(false, true) {
		return Resources{}, ErrResourcesTaken
	}
	return a.res, nil
}
