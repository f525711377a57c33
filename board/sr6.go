//go:build sr6

package board

import "github.com/moffa90/go-dcboot/partition"

// Revision is the compiled-in hardware revision.
const Revision = "sr6"

// PartitionTable returns the sr6 flash layout. The sr6 bootloader carries
// the larger debug build, so everything behind it moves up by two sectors.
func PartitionTable() partition.Table {
	return partition.Table{
		Revision: Revision,
		Internal: partition.Geometry{Capacity: 0x100000, SectorSize: 0x1000},
		External: partition.Geometry{Capacity: 0x800000, SectorSize: 0x1000},
		Partitions: []partition.Partition{
			{Name: "bootloader", Device: partition.DeviceInternal, Base: 0x000000, Length: 0x008000, Role: partition.RoleBootloader},
			{Name: "bootloader_state", Device: partition.DeviceInternal, Base: 0x008000, Length: 0x004000, Role: partition.RoleBootRecord},
			{Name: "active", Device: partition.DeviceInternal, Base: 0x00C000, Length: 0x0F0000, Role: partition.RoleActive},
			{Name: "storage", Device: partition.DeviceInternal, Base: 0x0FC000, Length: 0x004000, Role: partition.RoleAppStorage},
			{Name: "dfu", Device: partition.DeviceExternal, Base: 0x000000, Length: 0x0F0000, Role: partition.RoleStaging},
			{Name: "ext_storage", Device: partition.DeviceExternal, Base: 0x0F0000, Length: 0x710000, Role: partition.RoleExternalStorage},
		},
	}
}
