package partition

import "fmt"

// Role identifies what a partition is used for.
type Role uint8

// Partition roles.
const (
	RoleBootloader Role = iota
	RoleActive
	RoleStaging
	RoleBootRecord
	RoleAppStorage
	RoleExternalStorage
)

// String returns the role name used in logs and tables.
func (r Role) String() string {
	switch r {
	case RoleBootloader:
		return "bootloader"
	case RoleActive:
		return "active"
	case RoleStaging:
		return "staging"
	case RoleBootRecord:
		return "boot-record"
	case RoleAppStorage:
		return "app-storage"
	case RoleExternalStorage:
		return "external-storage"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Device identifies the flash chip a partition lives on.
type Device uint8

// Flash devices.
const (
	// DeviceInternal is the MCU's on-chip flash
	DeviceInternal Device = iota

	// DeviceExternal is the external QSPI NOR flash
	DeviceExternal
)

func (d Device) String() string {
	switch d {
	case DeviceInternal:
		return "internal"
	case DeviceExternal:
		return "external"
	default:
		return fmt.Sprintf("device(%d)", uint8(d))
	}
}

// Geometry describes a flash device.
type Geometry struct {
	// Capacity is the device size in bytes
	Capacity uint32

	// SectorSize is the erase-sector size in bytes
	SectorSize uint32
}

// Partition is one named flash region.
type Partition struct {
	Name   string
	Device Device
	Base   uint32
	Length uint32
	Role   Role
}

// End returns the first address past the partition.
func (p Partition) End() uint32 {
	return p.Base + p.Length
}

// Overlaps reports whether p and o share any byte on the same device.
func (p Partition) Overlaps(o Partition) bool {
	if p.Device != o.Device {
		return false
	}
	return p.Base < o.End() && o.Base < p.End()
}

func (p Partition) String() string {
	return fmt.Sprintf("%s(%s@%s 0x%08X-0x%08X)", p.Name, p.Role, p.Device, p.Base, p.End())
}

// Table is the partition map of one hardware revision.
type Table struct {
	// Revision is the hardware revision name, e.g. "r6"
	Revision string

	// Internal and External describe the two flash devices
	Internal Geometry
	External Geometry

	// Partitions lists every region
	Partitions []Partition
}

// Geometry returns the geometry of the given device.
func (t Table) Geometry(d Device) Geometry {
	if d == DeviceExternal {
		return t.External
	}
	return t.Internal
}

// Lookup returns the first partition with the given role.
func (t Table) Lookup(role Role) (Partition, error) {
	for _, p := range t.Partitions {
		if p.Role == role {
			return p, nil
		}
	}
	return Partition{}, &MissingRoleError{Role: role}
}

// BlockSize returns the swap block size: the erase-sector size shared by the
// active and staging partitions.
func (t Table) BlockSize() uint32 {
	active, err := t.Lookup(RoleActive)
	if err != nil {
		return t.Internal.SectorSize
	}
	return t.Geometry(active.Device).SectorSize
}
