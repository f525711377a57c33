package flash

// ErasedByte is the value of every byte of an erased NOR sector.
const ErasedByte = 0xFF

// Flash is a NOR flash device addressed from zero.
type Flash interface {
	// Read fills p with the bytes starting at off.
	Read(off uint32, p []byte) error

	// Write programs p at off. Bits can only be cleared.
	Write(off uint32, p []byte) error

	// Erase resets [from, to) to ErasedByte. Both bounds must be sector aligned.
	Erase(from, to uint32) error

	// SectorSize is the erase granularity in bytes.
	SectorSize() uint32

	// Capacity is the device size in bytes.
	Capacity() uint32
}

// IsErased reports whether every byte of p is ErasedByte.
func IsErased(p []byte) bool {
	for _, b := range p {
		if b != ErasedByte {
			return false
		}
	}
	return true
}
