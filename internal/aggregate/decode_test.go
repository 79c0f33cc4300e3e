package aggregate

import (
	"bytes"
	"testing"
)

func testDecoded() *Decoded {
	return &Decoded{
		Strings: map[uint32]string{
			1: "main.go", 2: "lib.go", 3: "libmodule",
		},
		Symbols: map[uint32]Symbol{
			1: {ID: 1, Name: "main.main", Address: 0x1000, Size: 16, File: 1, Line: 10, LineLast: 20, Module: 3},
			2: {ID: 2, Name: "lib.Do", Address: 0x2000, Size: 32, File: 2, Line: 5, LineLast: 15, Module: 3},
			3: {ID: 3, Name: "trampoline", Address: 0x3000, Size: 8, File: 0, Line: 0, LineLast: 0, Module: 3},
		},
		Threads: [][][]Entry{
			{
				{{SymbolID: 2, Line: 7, Offset: 2}, {SymbolID: 1, Line: 11, Offset: 4}},
				{{SymbolID: 1, Line: 12, Offset: 0}},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := testDecoded()

	blob, err := EncodeBlob(want, 8)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(8, blob)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Strings) != len(want.Strings) {
		t.Fatalf("strings: got %d, want %d", len(got.Strings), len(want.Strings))
	}
	for id, s := range want.Strings {
		if got.Strings[id] != s {
			t.Fatalf("string %d: got %q, want %q", id, got.Strings[id], s)
		}
	}
	if len(got.Symbols) != len(want.Symbols) {
		t.Fatalf("symbols: got %d, want %d", len(got.Symbols), len(want.Symbols))
	}
	for id, sym := range want.Symbols {
		if got.Symbols[id] != sym {
			t.Fatalf("symbol %d: got %+v, want %+v", id, got.Symbols[id], sym)
		}
	}
	if len(got.Threads) != 1 || len(got.Threads[0]) != 2 {
		t.Fatalf("unexpected thread shape: %+v", got.Threads)
	}
	if len(got.Threads[0][0]) != 2 || len(got.Threads[0][1]) != 1 {
		t.Fatalf("unexpected stack lengths: %+v", got.Threads[0])
	}
}

func TestWriteReadFileRoundTrip(t *testing.T) {
	want := testDecoded()

	var buf bytes.Buffer
	if err := WriteFile(&buf, want, 8); err != nil {
		t.Fatal(err)
	}

	ptrSize, blob, err := ReadFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if ptrSize != 8 {
		t.Fatalf("ptrSize = %d, want 8", ptrSize)
	}
	got, err := Decode(ptrSize, blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Threads[0]) != 2 {
		t.Fatalf("unexpected thread shape after round trip: %+v", got.Threads)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	want := testDecoded()
	blob, err := EncodeBlob(want, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(8, blob[:len(blob)-3]); err == nil {
		t.Fatal("expected an error decoding a truncated blob")
	}
}
