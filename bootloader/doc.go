// Package bootloader decides, on every reset, which firmware image runs.
//
// # Overview
//
// The Manager drives a persisted state machine:
//   - Boot: run the active image, or accept a newer valid staging image
//   - SwapRequested: swap staging into active block by block
//   - SwappedUnconfirmed: run the new image until the application confirms it
//     or the watchdog budget is exhausted
//   - Reverting: swap the rollback copy back into active
//
// Every transition is persisted in the boot record before it takes effect, so
// a power loss at any instant leaves a state from which the next boot
// continues.
//
// # Basic Usage
//
//	arena, _ := board.NewArena(resources)
//	res, err := arena.Take()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr, err := bootloader.New(board.PartitionTable(), res,
//	    bootloader.WithAttemptBudget(3),
//	    bootloader.WithWatchdogTimeout(8*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d, err := mgr.Boot(context.Background())
//	switch d.Action {
//	case bootloader.ActionJump:
//	    runApplication(d.Watchdog, d.Updater)
//	case bootloader.ActionRetry:
//	    resetDevice()
//	case bootloader.ActionHalt:
//	    waitForRecovery(err)
//	}
//
// # Application API
//
// The application receives an Updater with the Decision:
//
//	if d.Updater.IsFirstBootAfterUpdate() {
//	    if selfTest() {
//	        d.Updater.Confirm()
//	    } else {
//	        d.Updater.ReportFailure()
//	    }
//	}
//
// After writing a new image to the staging partition it calls RequestUpdate
// with the image's version, length and checksum; the image is verified and
// installed on the next boot.
//
// # Configuration
//
// The attempt budget and the watchdog timeout have no defaults and must be
// given explicitly. New fails with a *ConfigError otherwise.
//
// # Error Handling
//
// The package provides structured error types:
//   - FatalError: no bootable image, the device must stay in the bootloader
//   - StateError: application request not allowed in the current state
//   - DescriptorMismatchError: staging header differs from the announced update
//   - ConfigError: missing or invalid option
//
// Flash failures surface as *flash.HardwareFaultError with ActionRetry.
package bootloader
