// Package board holds the per-revision flash layout and the one-time
// resource arena of the wearable sensor.
//
// Exactly one revision is compiled in, chosen with a build tag:
//
//	go build ./...            # r6 (default)
//	go build -tags sr6 ./...  # sr6
//
// The bootloader takes its resources from the Arena exactly once per reset.
package board
