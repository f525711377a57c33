package image

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-dcboot/flash"
)

func region(t *testing.T, content []byte) flash.Region {
	t.Helper()
	mem := flash.NewMemory(2048, 256)
	r := flash.NewRegion(mem, 0, 2048)
	require.NoError(t, r.Write(0, content))
	return r
}

func TestHeaderRoundTrip(t *testing.T) {
	hdr := Header{Magic: Magic, Version: 3, Length: 100, Checksum: 0xDEADBEEF}
	buf, err := hdr.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)
	assert.Equal(t, []byte("DCFW"), buf[:4])

	got, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, hdr, got)
	assert.Equal(t, uint32(116), got.Size())
}

func TestParseHeaderErrors(t *testing.T) {
	_, err := ParseHeader([]byte("DCFW"))
	assert.ErrorContains(t, err, "too short")

	_, err = ParseHeader(bytes.Repeat([]byte{0xFF}, HeaderSize))
	assert.ErrorContains(t, err, "bad magic")
}

func TestVerify(t *testing.T) {
	payload := bytes.Repeat([]byte("sensor-firmware!"), 40) // spans several sectors

	tests := []struct {
		name    string
		content func() []byte
		reason  string
	}{
		{
			name:    "valid",
			content: func() []byte { return Build(2, payload) },
		},
		{
			name:    "erased partition",
			content: func() []byte { return nil },
			reason:  "bad magic",
		},
		{
			name: "corrupted payload",
			content: func() []byte {
				img := Build(2, payload)
				img[HeaderSize+500] ^= 0x01
				return img
			},
			reason: "checksum mismatch",
		},
		{
			name: "corrupted checksum",
			content: func() []byte {
				img := Build(2, payload)
				img[12] ^= 0x80
				return img
			},
			reason: "checksum mismatch",
		},
		{
			name: "length exceeds partition",
			content: func() []byte {
				hdr := Header{Magic: Magic, Version: 1, Length: 4096}
				buf, _ := hdr.MarshalBinary()
				return buf
			},
			reason: "exceeds capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, err := VerifyNamed(region(t, tt.content()), "active")
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, uint32(2), hdr.Version)
				assert.Equal(t, uint32(len(payload)), hdr.Length)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidImage))
			assert.Contains(t, err.Error(), tt.reason)
			assert.Contains(t, err.Error(), "in active")
		})
	}
}

func TestVerifyReadFailure(t *testing.T) {
	f := flash.NewFaulty(flash.NewMemory(2048, 256))
	r := flash.NewRegion(f, 0, 2048)
	require.NoError(t, r.Write(0, Build(1, []byte("abc"))))

	f.CutPowerAfter(0)
	_ = f.Erase(1024, 1280) // cut power

	_, err := Verify(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.True(t, flash.IsHardwareFault(err))
}

func TestPeek(t *testing.T) {
	r := region(t, Build(9, []byte("xyz")))
	hdr, err := Peek(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), hdr.Version)
	assert.Equal(t, fmt.Sprintf("v9 len=3 crc=0x%08X", Checksum([]byte("xyz"))), hdr.String())
}

func TestDecode(t *testing.T) {
	img := Build(4, []byte("payload"))
	hdr, payload, err := Decode(img)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), hdr.Version)
	assert.Equal(t, []byte("payload"), payload)

	_, _, err = Decode(img[:len(img)-1])
	assert.ErrorIs(t, err, ErrInvalidImage)

	img[len(img)-1] ^= 0xFF
	_, _, err = Decode(img)
	assert.ErrorContains(t, err, "checksum mismatch")
}
