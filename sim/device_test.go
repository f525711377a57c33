package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-dcboot/bootloader"
	"github.com/moffa90/go-dcboot/bootrecord"
	"github.com/moffa90/go-dcboot/image"
	"github.com/moffa90/go-dcboot/partition"
	"github.com/moffa90/go-dcboot/watchdog"
)

func smallTable() partition.Table {
	return partition.Table{
		Revision: "sim",
		Internal: partition.Geometry{Capacity: 0x2000, SectorSize: 0x200},
		External: partition.Geometry{Capacity: 0x2000, SectorSize: 0x200},
		Partitions: []partition.Partition{
			{Name: "bootloader", Base: 0x0000, Length: 0x0200, Role: partition.RoleBootloader},
			{Name: "bootloader_state", Base: 0x0200, Length: 0x0800, Role: partition.RoleBootRecord},
			{Name: "active", Base: 0x0A00, Length: 0x1400, Role: partition.RoleActive},
			{Name: "storage", Base: 0x1E00, Length: 0x0200, Role: partition.RoleAppStorage},
			{Name: "dfu", Device: partition.DeviceExternal, Base: 0, Length: 0x1400, Role: partition.RoleStaging},
			{Name: "ext_storage", Device: partition.DeviceExternal, Base: 0x1400, Length: 0x0C00, Role: partition.RoleExternalStorage},
		},
	}
}

func app(version uint32) []byte {
	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i*7) ^ byte(version)
	}
	return image.Build(version, payload)
}

func newDevice(t *testing.T, events *[]bootloader.Event) *Device {
	t.Helper()
	dev, err := New(
		WithTable(smallTable()),
		WithAttemptBudget(3),
		WithWatchdogTimeout(time.Second),
		WithEventCallback(func(e bootloader.Event) {
			if events != nil {
				*events = append(*events, e)
			}
		}),
	)
	require.NoError(t, err)
	require.NoError(t, dev.WriteActive(app(1)))
	return dev
}

func boot(t *testing.T, dev *Device) *bootloader.Decision {
	t.Helper()
	d, err := dev.Boot(context.Background())
	require.NoError(t, err)
	require.Equal(t, bootloader.ActionJump, d.Action)
	return d
}

// hang runs an application that never feeds the watchdog.
func hang(t *testing.T, dev *Device) {
	t.Helper()
	reset, err := dev.Advance(2*time.Second, false)
	require.NoError(t, err)
	require.True(t, reset)
}

// stage downloads version into staging and requests the update.
func stage(t *testing.T, dev *Device, version uint32) {
	t.Helper()
	img := app(version)
	require.NoError(t, dev.WriteStaging(img))

	hdr, _, err := image.Decode(img)
	require.NoError(t, err)

	u, err := dev.Updater()
	require.NoError(t, err)
	require.NoError(t, u.RequestUpdate(bootloader.StagingDescriptor{
		Version: hdr.Version, Length: hdr.Length, Checksum: hdr.Checksum,
	}))
}

func TestHealthyUpdate(t *testing.T) {
	dev := newDevice(t, nil)

	d := boot(t, dev)
	assert.Equal(t, uint32(1), d.Active.Version)
	assert.NotEmpty(t, dev.BootID())

	stage(t, dev, 2)
	dev.Reset(watchdog.ReasonSoftware)

	d = boot(t, dev)
	assert.Equal(t, uint32(2), d.Active.Version)
	assert.True(t, d.Updater.IsFirstBootAfterUpdate())

	// A healthy application keeps feeding the watchdog.
	for i := 0; i < 5; i++ {
		reset, err := dev.Advance(800*time.Millisecond, true)
		require.NoError(t, err)
		require.False(t, reset)
	}
	require.NoError(t, d.Updater.Confirm())

	dev.Reset(watchdog.ReasonPin)
	d = boot(t, dev)
	assert.Equal(t, uint32(2), d.Active.Version)
	assert.Equal(t, bootrecord.StateBoot, d.State)
}

func TestHangingUpdateIsReverted(t *testing.T) {
	var events []bootloader.Event
	dev := newDevice(t, &events)

	boot(t, dev)
	stage(t, dev, 2)
	dev.Reset(watchdog.ReasonSoftware)

	d := boot(t, dev)
	require.Equal(t, uint32(2), d.Active.Version)

	for i := 0; i < 3; i++ {
		hang(t, dev)
		d = boot(t, dev)
	}

	assert.Equal(t, uint32(1), d.Active.Version)
	assert.Equal(t, bootrecord.StateBoot, d.State)

	rec, err := dev.Record()
	require.NoError(t, err)
	assert.True(t, rec.Consumed())

	var resets int
	for _, e := range events {
		if e.Type == bootloader.EventWatchdogReset {
			resets++
		}
	}
	assert.Equal(t, 3, resets)
}

func TestAdvanceWithoutApplication(t *testing.T) {
	dev := newDevice(t, nil)

	_, err := dev.Advance(time.Second, true)
	assert.ErrorIs(t, err, ErrNotRunning)

	_, err = dev.Updater()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestWriteStagingTooLarge(t *testing.T) {
	dev := newDevice(t, nil)
	err := dev.WriteStaging(make([]byte, 0x1401))
	assert.Error(t, err)
}

func TestTimer(t *testing.T) {
	var tm Timer
	assert.ErrorIs(t, tm.Feed(), ErrNotStarted)
	assert.False(t, tm.Advance(time.Hour), "a stopped watchdog never expires")

	require.NoError(t, tm.Start(time.Second))
	assert.True(t, tm.Running())
	assert.False(t, tm.Advance(900*time.Millisecond))
	require.NoError(t, tm.Feed())
	assert.False(t, tm.Advance(900*time.Millisecond))
	assert.True(t, tm.Advance(200*time.Millisecond))
}

func TestOpenUpdaterWithoutRunningApplication(t *testing.T) {
	dev := newDevice(t, nil)
	boot(t, dev)

	img := app(2)
	require.NoError(t, dev.WriteStaging(img))
	dev.Reset(watchdog.ReasonPowerOn)

	hdr, _, err := image.Decode(img)
	require.NoError(t, err)
	u, err := dev.OpenUpdater()
	require.NoError(t, err)
	require.NoError(t, u.RequestUpdate(bootloader.StagingDescriptor{
		Version: hdr.Version, Length: hdr.Length, Checksum: hdr.Checksum,
	}))

	d := boot(t, dev)
	assert.Equal(t, uint32(2), d.Active.Version)
}
