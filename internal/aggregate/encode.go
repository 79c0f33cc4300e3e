package aggregate

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// magic identifies a serialized profile file on disk (SPEC_FULL.md §6).
var magic = [4]byte{'C', 'P', 'R', '?'}

const formatVersion = 1

// EncodeBlob serializes a Decoded profile back into the uncompressed
// inner byte format Decode expects — strings, then symbols, then one
// entry stream per thread with a symbol id of 0 terminating each stack.
func EncodeBlob(d *Decoded, ptrSize int) ([]byte, error) {
	if ptrSize != 4 && ptrSize != 8 {
		return nil, fmt.Errorf("aggregate: unsupported ptrSize %d", ptrSize)
	}

	var buf bytes.Buffer
	var tmp [8]byte

	putUint32(tmp[:4], uint32(len(d.Strings)))
	buf.Write(tmp[:4])
	for id, s := range d.Strings {
		putUint32(tmp[:4], id)
		buf.Write(tmp[:4])
		writeString(&buf, s)
	}

	putUint32(tmp[:4], uint32(len(d.Symbols)))
	buf.Write(tmp[:4])
	for _, sym := range d.Symbols {
		writeSymbol(&buf, sym, ptrSize)
	}

	putUint32(tmp[:4], uint32(len(d.Threads)))
	buf.Write(tmp[:4])
	for _, stacks := range d.Threads {
		count := 0
		for _, s := range stacks {
			count += len(s) + 1 // +1 for the sentinel
		}
		putUint32(tmp[:4], uint32(count))
		buf.Write(tmp[:4])
		for _, stack := range stacks {
			for _, e := range stack {
				writeEntry(&buf, e)
			}
			writeEntry(&buf, Entry{}) // sentinel: symbol id 0
		}
	}

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func writeSymbol(buf *bytes.Buffer, sym Symbol, ptrSize int) {
	var tmp [8]byte
	putUint32(tmp[:4], sym.ID)
	buf.Write(tmp[:4])
	writeString(buf, sym.Name)
	if ptrSize == 4 {
		putUint32(tmp[:4], uint32(sym.Address))
		buf.Write(tmp[:4])
	} else {
		putUint64(tmp[:8], sym.Address)
		buf.Write(tmp[:8])
	}
	putUint32(tmp[:4], sym.Size)
	buf.Write(tmp[:4])
	putUint32(tmp[:4], sym.Module)
	buf.Write(tmp[:4])
	putUint32(tmp[:4], sym.File)
	buf.Write(tmp[:4])
	putUint32(tmp[:4], sym.Line)
	buf.Write(tmp[:4])
	putUint32(tmp[:4], sym.LineLast)
	buf.Write(tmp[:4])
}

func writeEntry(buf *bytes.Buffer, e Entry) {
	var tmp [4]byte
	putUint32(tmp[:], e.SymbolID)
	buf.Write(tmp[:])
	putUint32(tmp[:], e.Line)
	buf.Write(tmp[:])
	putUint32(tmp[:], e.Offset)
	buf.Write(tmp[:])
}

// WriteFile writes the full on-disk profile: magic, version, ptrSize,
// then the zlib-compressed inner blob, length-prefixed.
func WriteFile(w io.Writer, d *Decoded, ptrSize int) error {
	blob, err := EncodeBlob(d, ptrSize)
	if err != nil {
		return err
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(blob); err != nil {
		return fmt.Errorf("aggregate: compressing profile: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("aggregate: compressing profile: %w", err)
	}

	header := make([]byte, 0, 4+1+1+4)
	header = append(header, magic[:]...)
	header = append(header, formatVersion, byte(ptrSize))
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(compressed.Len()))
	header = append(header, lenBuf[:]...)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(compressed.Bytes())
	return err
}

// ReadFile reads a file written by WriteFile, returning the decompressed
// inner blob ready for Decode along with the ptrSize it was encoded with.
func ReadFile(r io.Reader) (ptrSize int, blob []byte, err error) {
	header := make([]byte, 10)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("aggregate: reading header: %w", err)
	}
	if !bytes.Equal(header[0:4], magic[:]) {
		return 0, nil, fmt.Errorf("aggregate: bad magic %q", header[0:4])
	}
	version := header[4]
	if version != formatVersion {
		return 0, nil, fmt.Errorf("aggregate: unsupported format version %d", version)
	}
	ptrSize = int(header[5])
	if ptrSize != 4 && ptrSize != 8 {
		return 0, nil, fmt.Errorf("aggregate: unsupported ptrSize %d", ptrSize)
	}
	n := getUint32(header[6:10])

	compressed := make([]byte, n)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return 0, nil, fmt.Errorf("aggregate: reading compressed body: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return 0, nil, fmt.Errorf("aggregate: opening compressed body: %w", err)
	}
	defer zr.Close()

	blob, err = io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("aggregate: decompressing body: %w", err)
	}
	return ptrSize, blob, nil
}
