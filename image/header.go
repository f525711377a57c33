package image

import (
	"encoding/binary"
	"fmt"
)

// Constants for the image header.
const (
	// HeaderSize is the encoded header length in bytes
	HeaderSize = 16

	// MagicSize is the length of the magic field
	MagicSize = 4
)

// Magic identifies a firmware image header.
var Magic = [MagicSize]byte{'D', 'C', 'F', 'W'}

// Header is the decoded image header.
type Header struct {
	// Magic must equal image.Magic
	Magic [MagicSize]byte

	// Version is compared to decide whether staging is newer than active
	Version uint32

	// Length is the payload length in bytes
	Length uint32

	// Checksum is the CRC-32 of the payload
	Checksum uint32
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Length)
	binary.LittleEndian.PutUint32(buf[12:16], h.Checksum)
	return buf, nil
}

// ParseHeader decodes a header. It checks the size and magic only.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: got %d bytes, expected %d", len(data), HeaderSize)
	}

	var h Header
	copy(h.Magic[:], data[0:4])
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	h.Length = binary.LittleEndian.Uint32(data[8:12])
	h.Checksum = binary.LittleEndian.Uint32(data[12:16])

	if h.Magic != Magic {
		return h, fmt.Errorf("bad magic %q", h.Magic[:])
	}
	return h, nil
}

// Size returns the total image size (header plus payload).
func (h Header) Size() uint32 {
	return HeaderSize + h.Length
}

func (h Header) String() string {
	return fmt.Sprintf("v%d len=%d crc=0x%08X", h.Version, h.Length, h.Checksum)
}
