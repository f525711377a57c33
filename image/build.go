package image

// Build returns header+payload for a firmware binary.
func Build(version uint32, payload []byte) []byte {
	hdr := Header{
		Magic:    Magic,
		Version:  version,
		Length:   uint32(len(payload)),
		Checksum: Checksum(payload),
	}
	out, _ := hdr.MarshalBinary()
	return append(out, payload...)
}

// Decode splits an encoded image into its header and payload and checks the
// checksum. It is the host-side counterpart of Verify.
func Decode(data []byte) (Header, []byte, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return hdr, nil, &InvalidImageError{Reason: err.Error()}
	}
	if uint64(hdr.Length) > uint64(len(data)-HeaderSize) {
		return hdr, nil, &InvalidImageError{Reason: "truncated payload"}
	}
	payload := data[HeaderSize : HeaderSize+hdr.Length]
	if Checksum(payload) != hdr.Checksum {
		return hdr, nil, &InvalidImageError{Reason: "checksum mismatch"}
	}
	return hdr, payload, nil
}
