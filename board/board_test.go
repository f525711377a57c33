package board

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/partition"
	"github.com/moffa90/go-dcboot/watchdog"
)

type nopTimer struct{}

func (nopTimer) Start(time.Duration) error { return nil }
func (nopTimer) Feed() error               { return nil }

func resources() Resources {
	return Resources{
		Internal: flash.NewMemory(0x10000, 0x1000),
		External: flash.NewMemory(0x10000, 0x1000),
		Watchdog: nopTimer{},
		ResetReason: watchdog.ResetReasonFunc(func() (watchdog.ResetReason, error) {
			return watchdog.ReasonPowerOn, nil
		}),
	}
}

func TestPartitionTableIsValid(t *testing.T) {
	tbl := PartitionTable()
	require.NoError(t, tbl.Validate())
	assert.Equal(t, Revision, tbl.Revision)

	active, err := tbl.Lookup(partition.RoleActive)
	require.NoError(t, err)
	staging, err := tbl.Lookup(partition.RoleStaging)
	require.NoError(t, err)

	assert.Equal(t, partition.DeviceInternal, active.Device)
	assert.Equal(t, partition.DeviceExternal, staging.Device)
	assert.GreaterOrEqual(t, staging.Length, active.Length)
}

func TestPartitionTableFillsInternalFlash(t *testing.T) {
	tbl := PartitionTable()

	var used uint32
	for _, p := range tbl.Partitions {
		if p.Device == partition.DeviceInternal {
			used += p.Length
		}
	}
	assert.Equal(t, tbl.Internal.Capacity, used)
}

func TestArenaTakeOnce(t *testing.T) {
	a, err := NewArena(resources())
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		taken int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Take()
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, ErrResourcesTaken)
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, taken)
}

func TestNewArenaRequiresEveryResource(t *testing.T) {
	res := resources()
	res.Watchdog = nil
	_, err := NewArena(res)
	assert.Error(t, err)
}

func TestResourcesRegion(t *testing.T) {
	res := resources()

	r, err := res.Region(partition.Partition{Name: "a", Device: partition.DeviceExternal, Base: 0x1000, Length: 0x2000})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), r.Base())

	_, err = res.Region(partition.Partition{Name: "big", Base: 0, Length: 0x20000})
	assert.ErrorIs(t, err, flash.ErrOutOfBounds)
}
