// Package image encodes and verifies firmware images stored in raw flash
// partitions.
//
// # Image Format
//
// An image is a 16-byte header followed by the payload; the payload area
// fills the remainder of the partition. All fields are little-endian:
//
//	[Magic(4)][Version(4)][Length(4)][Checksum(4)][Payload(Length)]...
//
//	  Magic    = "DCFW"
//	  Version  = monotonically increasing firmware version
//	  Length   = payload length in bytes
//	  Checksum = CRC-32 (IEEE) of Payload[:Length]
//
// An image is valid iff the magic matches, Length fits in the partition after
// the header, and the checksum matches. There is no signature; the checksum
// is an integrity check only.
//
// # Usage
//
// Verify the image in a partition before trusting it:
//
//	hdr, err := image.Verify(activeRegion)
//	if err != nil {
//	    // errors.Is(err, image.ErrInvalidImage)
//	}
//	fmt.Printf("active v%d, %d bytes\n", hdr.Version, hdr.Length)
//
// Build an image on the host side from a raw firmware binary:
//
//	raw, _ := os.ReadFile("app.bin")
//	img := image.Build(7, raw)
package image
