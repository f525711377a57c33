package image

import (
	"fmt"
	"hash/crc32"

	"github.com/moffa90/go-dcboot/flash"
)

// Checksum returns the image checksum of payload.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// Peek reads and decodes the header of the image in r without checking the
// payload. The result must not be trusted; it is meant for logging.
func Peek(r flash.Region) (Header, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Read(0, buf); err != nil {
		return Header{}, err
	}
	return ParseHeader(buf)
}

// Verify validates the image stored at the start of r: magic, length bound
// and payload checksum. Any failure, including a flash read error, is
// returned as an *InvalidImageError.
func Verify(r flash.Region) (Header, error) {
	return VerifyNamed(r, "")
}

// VerifyNamed is Verify with the partition name recorded in errors.
func VerifyNamed(r flash.Region, name string) (Header, error) {
	if r.Size() < HeaderSize {
		return Header{}, &InvalidImageError{Partition: name, Reason: "partition smaller than header"}
	}

	buf := make([]byte, HeaderSize)
	if err := r.Read(0, buf); err != nil {
		return Header{}, &InvalidImageError{Partition: name, Reason: "read header", Err: err}
	}

	hdr, err := ParseHeader(buf)
	if err != nil {
		return hdr, &InvalidImageError{Partition: name, Reason: err.Error()}
	}

	if hdr.Length > r.Size()-HeaderSize {
		return hdr, &InvalidImageError{
			Partition: name,
			Reason: fmt.Sprintf("payload length %d exceeds capacity %d",
				hdr.Length, r.Size()-HeaderSize),
		}
	}

	// Stream the payload one sector at a time.
	chunk := make([]byte, r.SectorSize())
	var crc uint32
	for off := uint32(0); off < hdr.Length; {
		n := min(hdr.Length-off, uint32(len(chunk)))
		if err := r.Read(HeaderSize+off, chunk[:n]); err != nil {
			return hdr, &InvalidImageError{Partition: name, Reason: "read payload", Err: err}
		}
		crc = crc32.Update(crc, crc32.IEEETable, chunk[:n])
		off += n
	}

	if crc != hdr.Checksum {
		return hdr, &InvalidImageError{
			Partition: name,
			Reason:    fmt.Sprintf("checksum mismatch: header 0x%08X, computed 0x%08X", hdr.Checksum, crc),
		}
	}

	return hdr, nil
}
