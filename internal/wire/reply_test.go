package wire

import (
	"bytes"
	"testing"
)

func TestWriteMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteMessage("attach", "permission denied"); err != nil {
		t.Fatal(err)
	}

	op, payload, consumed, ok := TryReadFrame(buf.Bytes())
	if !ok || op != Message || consumed != buf.Len() {
		t.Fatalf("unexpected frame: op=%v ok=%v consumed=%d total=%d", op, ok, consumed, buf.Len())
	}

	len1 := getUint32(payload[0:4])
	text := string(payload[4 : 4+len1])
	rest := payload[4+len1:]
	len2 := getUint32(rest[0:4])
	sysErr := string(rest[4 : 4+len2])

	if text != "attach" || sysErr != "permission denied" {
		t.Fatalf("unexpected payload: text=%q sysErr=%q", text, sysErr)
	}
}

func TestWriteStackSamplesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	entries := []CallStackEntry{
		{Symbol: 1, Line: 10, Offset: 4},
		{Symbol: 2, Line: 20, Offset: 0},
	}
	if err := w.WriteStackSamples(7, entries); err != nil {
		t.Fatal(err)
	}

	op, payload, _, ok := TryReadFrame(buf.Bytes())
	if !ok || op != StackSamples {
		t.Fatalf("unexpected frame: op=%v ok=%v", op, ok)
	}
	if tid := getUint32(payload[0:4]); tid != 7 {
		t.Fatalf("tid = %d, want 7", tid)
	}
	if count := getUint32(payload[4:8]); count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	off := 8
	for i, want := range entries {
		sym := getUint32(payload[off : off+4])
		line := getUint32(payload[off+4 : off+8])
		offset := getUint32(payload[off+8 : off+12])
		if sym != want.Symbol || line != want.Line || offset != want.Offset {
			t.Fatalf("entry %d mismatch: got (%d,%d,%d) want %+v", i, sym, line, offset, want)
		}
		off += 12
	}
}

func TestWriteNewSymbolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	fields := NewSymbolFields{ID: 1, Name: 2, File: 3, Size: 64, Address: 0xdeadbeef, Module: 4, Line: 10, LineLast: 12}
	if err := w.WriteNewSymbol(fields); err != nil {
		t.Fatal(err)
	}

	_, payload, _, ok := TryReadFrame(buf.Bytes())
	if !ok {
		t.Fatal("expected a complete frame")
	}
	if len(payload) != 36 {
		t.Fatalf("NEW_SYMBOL payload must be 36 bytes, got %d", len(payload))
	}
	if addr := getUint64(payload[16:24]); addr != 0xdeadbeef {
		t.Fatalf("address = %#x, want 0xdeadbeef", addr)
	}
}

func TestDecodeCreateProcess(t *testing.T) {
	cmd := CreateProcessCommand{Command: "/bin/app", Args: "-x 1", Folder: "/tmp"}

	payload := make([]byte, 0)
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(len(cmd.Command)))
	payload = append(payload, lenBuf[:]...)
	putUint32(lenBuf[:], uint32(len(cmd.Args)))
	payload = append(payload, lenBuf[:]...)
	putUint32(lenBuf[:], uint32(len(cmd.Folder)))
	payload = append(payload, lenBuf[:]...)
	payload = append(payload, cmd.Command...)
	payload = append(payload, cmd.Args...)
	payload = append(payload, cmd.Folder...)

	got, err := DecodeCreateProcess(payload)
	if err != nil {
		t.Fatal(err)
	}
	if got != cmd {
		t.Fatalf("got %+v, want %+v", got, cmd)
	}
}

func TestDecodeSetOptionsRejectsBadLength(t *testing.T) {
	if _, err := DecodeSetOptions([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a truncated SET_OPTIONS payload")
	}
}
