// Package swap implements the power-loss-safe block swap between the active
// and staging partitions.
//
// # Algorithm
//
// Both partitions are split into blocks of one erase sector. For each block
// i, starting at the persisted cursor:
//
//  1. read staging block i
//  2. copy active block i into the scratch block, then record a journal
//     entry {direction, i, CRC(active i), CRC(staging i)}
//  3. erase active block i and program the staging content into it
//  4. erase staging block i and program the scratch content into it
//  5. persist cursor = i+1
//
// After a full run active holds the former staging image and staging holds
// the former active image, which is the rollback copy. Running the same
// algorithm again in the Revert direction restores the original layout.
//
// # Resumption
//
// The cursor only ever names a block boundary. When a run restarts at block
// i, the journal tells whether the scratch block already holds active block i
// and, by comparing CRCs, which of steps 3 and 4 completed. Without a
// matching journal entry nothing destructive happened to block i and it is
// swapped from the beginning. A run whose cursor already equals the block
// count does nothing.
//
// # Errors
//
// Any flash failure aborts the run with an error wrapping a
// *flash.HardwareFaultError. The cursor returned (and persisted) is the
// number of fully swapped blocks; the next run resumes from there.
package swap
