package flash

import (
	"bytes"
	"errors"
	"testing"

	ds "github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// devices returns a fresh instance of every Flash model under test.
func devices(t *testing.T) map[string]Flash {
	t.Helper()

	dsf, err := NewDatastoreFlash(ds.NewMapDatastore(), "test", 4096, 256)
	require.NoError(t, err)

	return map[string]Flash{
		"memory":    NewMemory(4096, 256),
		"datastore": dsf,
		"faulty":    NewFaulty(NewMemory(4096, 256)),
	}
}

func TestFlashModels(t *testing.T) {
	for name, dev := range devices(t) {
		t.Run(name, func(t *testing.T) {
			buf := make([]byte, 16)
			require.NoError(t, dev.Read(250, buf))
			assert.True(t, IsErased(buf), "fresh device must read erased")

			// Spans a sector boundary.
			require.NoError(t, dev.Write(250, []byte{0x0F, 0xF0, 0x12, 0x34}))
			require.NoError(t, dev.Read(250, buf[:4]))
			assert.Equal(t, []byte{0x0F, 0xF0, 0x12, 0x34}, buf[:4])

			// NOR programming can only clear bits.
			require.NoError(t, dev.Write(250, []byte{0xF1}))
			require.NoError(t, dev.Read(250, buf[:1]))
			assert.Equal(t, byte(0x01), buf[0])

			require.NoError(t, dev.Erase(0, 512))
			require.NoError(t, dev.Read(250, buf[:4]))
			assert.True(t, IsErased(buf[:4]))

			assert.ErrorIs(t, dev.Erase(10, 256), ErrUnaligned)
			assert.ErrorIs(t, dev.Read(4095, buf[:2]), ErrOutOfBounds)
			assert.ErrorIs(t, dev.Write(4096, buf[:1]), ErrOutOfBounds)
		})
	}
}

func TestRegion(t *testing.T) {
	mem := NewMemory(4096, 256)
	r := NewRegion(mem, 1024, 1024)

	assert.Equal(t, uint32(1024), r.Base())
	assert.Equal(t, uint32(1024), r.Size())
	assert.Equal(t, uint32(256), r.SectorSize())

	data := bytes.Repeat([]byte{0xA5}, 256)
	require.NoError(t, r.Program(256, data))
	assert.Equal(t, data, mem.Snapshot(1280, 256))

	sub, err := r.Sub(256, 256)
	require.NoError(t, err)
	got := make([]byte, 256)
	require.NoError(t, sub.Read(0, got))
	assert.Equal(t, data, got)

	assert.ErrorIs(t, r.Read(1020, make([]byte, 8)), ErrOutOfBounds)
	_, err = r.Sub(1000, 256)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, r.Erase(1, 256), ErrUnaligned)

	assert.Panics(t, func() { NewRegion(mem, 4000, 256) })
}

func TestRegionWrapsDeviceErrors(t *testing.T) {
	f := NewFaulty(NewMemory(4096, 256))
	r := NewRegion(f, 0, 4096)

	f.FailRange(512, 768)
	err := r.Write(600, []byte{0})
	require.Error(t, err)
	assert.True(t, IsHardwareFault(err))

	var hw *HardwareFaultError
	require.True(t, errors.As(err, &hw))
	assert.Equal(t, "write", hw.Op)
	assert.Equal(t, uint32(600), hw.Addr)
	assert.Contains(t, hw.Error(), "0x00000258")

	f.FailRange(0, 0)
	require.NoError(t, r.Write(600, []byte{0}))
}

func TestRegionVerifyDetectsMismatch(t *testing.T) {
	mem := NewMemory(1024, 256)
	r := NewRegion(mem, 0, 1024)

	// Writing without erasing leaves the previous zero bits in place.
	require.NoError(t, r.Write(0, []byte{0x00}))
	require.NoError(t, r.Write(0, []byte{0xFF}))
	err := r.Verify(0, []byte{0xFF})
	require.Error(t, err)
	assert.True(t, IsHardwareFault(err))
}

func TestFaultyPowerCut(t *testing.T) {
	mem := NewMemory(1024, 256)
	f := NewFaulty(mem)

	f.CutPowerAfter(1)
	require.NoError(t, f.Write(0, []byte{0x00, 0x00}))

	// The second mutation is torn: only its first half lands.
	err := f.Write(16, []byte{0x11, 0x22, 0x33, 0x44})
	assert.ErrorIs(t, err, ErrPowerLoss)
	assert.True(t, f.Dead())
	assert.Equal(t, []byte{0x11, 0x22, 0xFF, 0xFF}, mem.Snapshot(16, 4))

	assert.ErrorIs(t, f.Read(0, make([]byte, 1)), ErrPowerLoss)
	assert.ErrorIs(t, f.Erase(0, 256), ErrPowerLoss)

	f.Restore()
	assert.False(t, f.Dead())
	require.NoError(t, f.Erase(0, 256))
	assert.Equal(t, 3, f.Ops())
}

func TestFaultyTornErase(t *testing.T) {
	mem := NewMemory(1024, 256)
	f := NewFaulty(mem)
	require.NoError(t, f.Write(0, bytes.Repeat([]byte{0}, 1024)))

	f.CutPowerAfter(0)
	assert.ErrorIs(t, f.Erase(0, 1024), ErrPowerLoss)
	assert.True(t, IsErased(mem.Snapshot(0, 512)))
	assert.Equal(t, bytes.Repeat([]byte{0}, 512), mem.Snapshot(512, 512))
}

func TestFaultyTornSingleSectorErase(t *testing.T) {
	mem := NewMemory(1024, 256)
	f := NewFaulty(mem)
	require.NoError(t, f.Write(256, bytes.Repeat([]byte{0x5A}, 256)))

	f.CutPowerAfter(0)
	assert.ErrorIs(t, f.Erase(256, 512), ErrPowerLoss)
	assert.True(t, IsErased(mem.Snapshot(256, 128)))
	assert.Equal(t, bytes.Repeat([]byte{0x5A}, 128), mem.Snapshot(384, 128))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 256), mem.Snapshot(0, 256))
}

func TestDatastoreFlashPersists(t *testing.T) {
	store := ds.NewMapDatastore()

	a, err := NewDatastoreFlash(store, "internal", 1024, 256)
	require.NoError(t, err)
	require.NoError(t, a.Write(300, []byte{1, 2, 3}))

	// A second handle on the same store sees the same content.
	b, err := NewDatastoreFlash(store, "internal", 1024, 256)
	require.NoError(t, err)
	got := make([]byte, 3)
	require.NoError(t, b.Read(300, got))
	assert.Equal(t, []byte{1, 2, 3}, got)

	// A different device name is isolated.
	c, err := NewDatastoreFlash(store, "external", 1024, 256)
	require.NoError(t, err)
	require.NoError(t, c.Read(300, got))
	assert.True(t, IsErased(got))

	_, err = NewDatastoreFlash(store, "bad", 1000, 256)
	assert.Error(t, err)
}
