package partition

import "fmt"

// OverlapError indicates that two partitions on the same device share bytes.
type OverlapError struct {
	A Partition
	B Partition
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("partition %s overlaps %s", e.A, e.B)
}

// AlignmentError indicates that a partition base or length is not a whole
// multiple of the device's erase-sector size.
type AlignmentError struct {
	Partition  Partition
	SectorSize uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("partition %s is not aligned to %d-byte sectors", e.Partition, e.SectorSize)
}

// BoundsError indicates that a partition extends past the end of its device.
type BoundsError struct {
	Partition Partition
	Capacity  uint32
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("partition %s exceeds device capacity 0x%08X", e.Partition, e.Capacity)
}

// MissingRoleError indicates that a required role has no partition.
type MissingRoleError struct {
	Role Role
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("no %s partition in table", e.Role)
}

// LayoutError reports a table that is well-formed but unusable by the
// swap algorithm.
type LayoutError struct {
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid partition layout: %s", e.Reason)
}
