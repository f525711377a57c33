package partition

import "fmt"

// BootRecordSectors is the minimum number of sectors in the boot-record
// partition: two record slots, the scratch block and the scratch journal.
const BootRecordSectors = 4

// singletonRoles must appear exactly once.
var singletonRoles = []Role{RoleBootloader, RoleActive, RoleStaging, RoleBootRecord}

// Validate checks the table invariants. It returns the first violation found.
func (t Table) Validate() error {
	for _, g := range []Geometry{t.Internal, t.External} {
		if g.SectorSize == 0 {
			return &LayoutError{Reason: "device sector size is zero"}
		}
	}

	for i, p := range t.Partitions {
		g := t.Geometry(p.Device)
		if p.Length == 0 {
			return &LayoutError{Reason: fmt.Sprintf("partition %s is empty", p.Name)}
		}
		if p.Base%g.SectorSize != 0 || p.Length%g.SectorSize != 0 {
			return &AlignmentError{Partition: p, SectorSize: g.SectorSize}
		}
		if uint64(p.Base)+uint64(p.Length) > uint64(g.Capacity) {
			return &BoundsError{Partition: p, Capacity: g.Capacity}
		}
		for _, o := range t.Partitions[i+1:] {
			if p.Overlaps(o) {
				return &OverlapError{A: p, B: o}
			}
		}
	}

	for _, role := range singletonRoles {
		n := 0
		for _, p := range t.Partitions {
			if p.Role == role {
				n++
			}
		}
		if n == 0 {
			return &MissingRoleError{Role: role}
		}
		if n > 1 {
			return &LayoutError{Reason: fmt.Sprintf("%d partitions with role %s", n, role)}
		}
	}

	active, _ := t.Lookup(RoleActive)
	staging, _ := t.Lookup(RoleStaging)
	record, _ := t.Lookup(RoleBootRecord)

	if t.Geometry(active.Device).SectorSize != t.Geometry(staging.Device).SectorSize {
		return &LayoutError{Reason: "active and staging devices have different sector sizes"}
	}
	if staging.Length < active.Length {
		return &LayoutError{Reason: fmt.Sprintf("staging (%d bytes) is smaller than active (%d bytes)",
			staging.Length, active.Length)}
	}
	// The scratch block shares the boot-record partition, so its sectors must
	// be able to hold one swap block.
	if t.Geometry(record.Device).SectorSize < t.BlockSize() {
		return &LayoutError{Reason: "boot-record sectors are smaller than a swap block"}
	}
	if record.Length/t.Geometry(record.Device).SectorSize < BootRecordSectors {
		return &LayoutError{Reason: fmt.Sprintf("boot-record partition needs %d sectors", BootRecordSectors)}
	}

	return nil
}
