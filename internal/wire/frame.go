package wire

// TryReadFrame attempts to parse one frame from the front of buf.
// It returns ok == false if buf does not yet hold a complete frame
// (fewer than 5+payload_size bytes buffered); the caller must keep
// accumulating bytes and retry. This mirrors SPEC_FULL.md §4.4's framing
// rule precisely: a frame is consumed only once the whole payload has
// arrived, and partial frames are left buffered rather than parsed
// speculatively.
//
// payload aliases buf; callers that need to retain it past the next
// mutation of buf must copy it.
func TryReadFrame(buf []byte) (op Opcode, payload []byte, consumed int, ok bool) {
	if len(buf) < headerSize {
		return 0, nil, 0, false
	}
	size := getUint32(buf[1:5])
	total := frameLen(int(size))
	if len(buf) < total {
		return 0, nil, 0, false
	}
	return Opcode(buf[0]), buf[headerSize:total], total, true
}

// AppendFrame appends a complete frame (header + payload) for op to dst
// and returns the extended slice. Used by both the Writer in reply.go
// (for replies) and tests that synthesize command frames.
func AppendFrame(dst []byte, op Opcode, payload []byte) []byte {
	header := [headerSize]byte{byte(op)}
	putUint32(header[1:5], uint32(len(payload)))
	dst = append(dst, header[:]...)
	dst = append(dst, payload...)
	return dst
}
