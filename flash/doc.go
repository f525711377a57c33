// Package flash abstracts raw NOR flash for the boot manager.
//
// # Hardware Independence
//
// This package does NOT talk to hardware. A board provides a Flash
// implementation for each of its chips (on-chip NVMC, external QSPI, ...):
//
//	type Flash interface {
//	    Read(off uint32, p []byte) error
//	    Write(off uint32, p []byte) error
//	    Erase(from, to uint32) error
//	    SectorSize() uint32
//	    Capacity() uint32
//	}
//
// Writes follow NOR semantics: programming can only clear bits, so a sector
// must be erased (all 0xFF) before new content is written to it.
//
// # Regions
//
// Region is a bounds-checked window onto one partition. Every error coming
// from the underlying device is wrapped in a HardwareFaultError so callers can
// tell device failures from programming mistakes:
//
//	active := flash.NewRegion(internal, 0xA000, 0xF4000)
//	if err := active.Erase(0, active.SectorSize()); err != nil {
//	    if errors.Is(err, flash.ErrHardwareFault) { ... }
//	}
//
// # Models
//
// Memory is an in-memory NOR model, Faulty wraps any Flash to inject power
// loss or failing cells, and DatastoreFlash persists sectors in a LevelDB
// datastore so a simulated device survives process restarts.
package flash
