// Package partition describes the compiled-in flash layout of a hardware
// revision.
//
// # Overview
//
// A Table lists every flash region the boot manager knows about:
//   - bootloader code
//   - the active (executed) firmware partition
//   - the staging (DFU) partition holding a candidate update
//   - the boot-record partition (record slots, scratch block, scratch journal)
//   - persistent application storage
//   - bulk external storage
//
// Partitions live on one of two flash devices. On the reference hardware the
// staging partition sits on external QSPI flash while everything else is in
// the MCU's internal flash.
//
// # Validation
//
// Tables are constants, but Validate is run on every boot anyway:
//
//	tbl := board.PartitionTable()
//	if err := tbl.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Validate rejects overlapping regions, regions that are not whole multiples
// of the erase-sector size, regions outside their device, and layouts the
// swap algorithm cannot run on.
package partition
