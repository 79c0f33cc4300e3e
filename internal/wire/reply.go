package wire

import (
	"io"
)

// Writer serializes reply frames to an underlying io.Writer (the
// sampler's half of the control pipe). Each Write* method builds its
// frame in full before issuing a single Write call, so that concurrent
// writers sharing a pipe (there are none in this backend: only the
// sampler thread ever writes replies, see SPEC_FULL.md's concurrency
// section) would still see whole frames rather than interleaved bytes.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) write(op Opcode, payload []byte) error {
	frame := AppendFrame(make([]byte, 0, frameLen(len(payload))), op, payload)
	_, err := w.w.Write(frame)
	return err
}

func appendString(dst []byte, s string) []byte {
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(len(s)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, s...)
	return dst
}

// WriteMessage emits a MESSAGE reply: a human-readable description of an
// operation and, optionally, the system's localized error text.
func (w *Writer) WriteMessage(text, sysError string) error {
	payload := make([]byte, 0, 8+len(text)+len(sysError))
	payload = appendString(payload, text)
	payload = appendString(payload, sysError)
	return w.write(Message, payload)
}

// WriteStackSamples emits a STACK_SAMPLES reply for one completed,
// non-empty stack sample on thread tid.
func (w *Writer) WriteStackSamples(tid uint32, entries []CallStackEntry) error {
	payload := make([]byte, 8+len(entries)*12)
	putUint32(payload[0:4], tid)
	putUint32(payload[4:8], uint32(len(entries)))
	off := 8
	for _, e := range entries {
		putUint32(payload[off:off+4], e.Symbol)
		putUint32(payload[off+4:off+8], e.Line)
		putUint32(payload[off+8:off+12], e.Offset)
		off += 12
	}
	return w.write(StackSamples, payload)
}

// WriteNewString emits a NEW_STRING reply, announcing a freshly interned
// string before any other reply references its id.
func (w *Writer) WriteNewString(s string) error {
	payload := appendString(make([]byte, 0, 4+len(s)), s)
	return w.write(NewString, payload)
}

// NewSymbolFields carries one NEW_SYMBOL reply's payload. Name, File and
// Module are string ids and ID is the symbol id; every field is a u32 on
// the wire except Address (a full 64-bit instruction address).
type NewSymbolFields struct {
	ID       uint32
	Name     uint32
	File     uint32
	Size     uint32
	Address  uint64
	Module   uint32
	Line     uint32
	LineLast uint32
}

// WriteNewSymbol emits a NEW_SYMBOL reply.
func (w *Writer) WriteNewSymbol(f NewSymbolFields) error {
	payload := make([]byte, 36)
	putUint32(payload[0:4], f.ID)
	putUint32(payload[4:8], f.Name)
	putUint32(payload[8:12], f.File)
	putUint32(payload[12:16], f.Size)
	putUint64(payload[16:24], f.Address)
	putUint32(payload[24:28], f.Module)
	putUint32(payload[28:32], f.Line)
	putUint32(payload[32:36], f.LineLast)
	return w.write(NewSymbol, payload)
}

// WriteProcessStart emits a PROCESS_START reply.
func (w *Writer) WriteProcessStart(pid, ptrSize uint32) error {
	payload := make([]byte, 8)
	putUint32(payload[0:4], pid)
	putUint32(payload[4:8], ptrSize)
	return w.write(ProcessStart, payload)
}

// WriteProcessEnd emits a PROCESS_END reply.
func (w *Writer) WriteProcessEnd(exitCode uint32) error {
	payload := make([]byte, 4)
	putUint32(payload, exitCode)
	return w.write(ProcessEnd, payload)
}

// WriteThreadAdd emits a THREAD_ADD reply.
func (w *Writer) WriteThreadAdd(tid uint32, entry uint64) error {
	payload := make([]byte, 12)
	putUint32(payload[0:4], tid)
	putUint64(payload[4:12], entry)
	return w.write(ThreadAdd, payload)
}

// WriteThreadRemove emits a THREAD_REMOVE reply.
func (w *Writer) WriteThreadRemove(tid uint32) error {
	payload := make([]byte, 4)
	putUint32(payload, tid)
	return w.write(ThreadRemove, payload)
}

// WriteModuleLoad emits a MODULE_LOAD reply.
func (w *Writer) WriteModuleLoad(base uint64, name string) error {
	payload := make([]byte, 0, 12+len(name))
	var baseBuf [8]byte
	putUint64(baseBuf[:], base)
	payload = append(payload, baseBuf[:]...)
	payload = appendString(payload, name)
	return w.write(ModuleLoad, payload)
}

// WriteModuleUnload emits a MODULE_UNLOAD reply.
func (w *Writer) WriteModuleUnload(base uint64) error {
	payload := make([]byte, 8)
	putUint64(payload, base)
	return w.write(ModuleUnload, payload)
}

// WriteSymbolsStatus emits a SYMBOLS reply.
func (w *Writer) WriteSymbolsStatus(status SymbolStatus) error {
	payload := make([]byte, 4)
	putUint32(payload, uint32(status))
	return w.write(Symbols, payload)
}
