//go:build !sr6

package board

import "github.com/moffa90/go-dcboot/partition"

// Revision is the compiled-in hardware revision.
const Revision = "r6"

// PartitionTable returns the r6 flash layout.
func PartitionTable() partition.Table {
	return partition.Table{
		Revision: Revision,
		Internal: partition.Geometry{Capacity: 0x100000, SectorSize: 0x1000},
		External: partition.Geometry{Capacity: 0x800000, SectorSize: 0x1000},
		Partitions: []partition.Partition{
			{Name: "bootloader", Device: partition.DeviceInternal, Base: 0x000000, Length: 0x006000, Role: partition.RoleBootloader},
			{Name: "bootloader_state", Device: partition.DeviceInternal, Base: 0x006000, Length: 0x004000, Role: partition.RoleBootRecord},
			{Name: "active", Device: partition.DeviceInternal, Base: 0x00A000, Length: 0x0F4000, Role: partition.RoleActive},
			{Name: "storage", Device: partition.DeviceInternal, Base: 0x0FE000, Length: 0x002000, Role: partition.RoleAppStorage},
			{Name: "dfu", Device: partition.DeviceExternal, Base: 0x000000, Length: 0x0F8000, Role: partition.RoleStaging},
			{Name: "ext_storage", Device: partition.DeviceExternal, Base: 0x0F8000, Length: 0x708000, Role: partition.RoleExternalStorage},
		},
	}
}
