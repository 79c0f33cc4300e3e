// Package wire implements the length-prefixed framed command/reply
// protocol between the frontend and the profiling backend
// (SPEC_FULL.md §4.4, §6).
//
// Every frame, in both directions, has the same shape:
//
//	opcode: u8 || payload_size: u32 (little-endian) || payload[payload_size]
//
// Commands and replies share the wire opcode byte range but are never
// confused because they travel on distinct halves of the control pipe
// (the frontend only ever writes commands, the backend only ever writes
// replies).
package wire

import "encoding/binary"

// Opcode identifies the kind of a frame's payload.
type Opcode uint8

// Command opcodes (frontend -> backend).
const (
	SetOptions    Opcode = 0
	Stop          Opcode = 1
	CreateProcess Opcode = 2
	AttachProcess Opcode = 3
)

// IsCommand reports whether op is one of the defined command opcodes.
// The command and reply opcode spaces reuse the same byte range, so
// validity can only be checked against the direction a frame travels;
// the router uses this to recognize a frame that isn't a command at
// all (SPEC_FULL.md §4.4/§7: an unrecognized opcode on the command
// stream is a terminating protocol error, not a skippable frame).
func IsCommand(op Opcode) bool {
	switch op {
	case SetOptions, Stop, CreateProcess, AttachProcess:
		return true
	default:
		return false
	}
}

// Reply opcodes (backend -> frontend).
const (
	Message      Opcode = 0
	StackSamples Opcode = 1
	NewString    Opcode = 2
	NewSymbol    Opcode = 3
	ProcessStart Opcode = 4
	ProcessEnd   Opcode = 5
	ThreadAdd    Opcode = 6
	ThreadRemove Opcode = 7
	ModuleLoad   Opcode = 8
	ModuleUnload Opcode = 9
	Symbols      Opcode = 10
)

// SymbolStatus classifies a human-readable progress line from the
// platform's debug-output callback (SPEC_FULL.md §4.2 "Symbol-loading
// status").
type SymbolStatus uint32

const (
	Downloading   SymbolStatus = 0
	LoadedPrivate SymbolStatus = 1
	LoadedPublic  SymbolStatus = 2
	LoadedExport  SymbolStatus = 3
)

// CallStackEntry is one frame of a sampled stack, as it travels on the
// wire: a resolved symbol id, the call-site source line, and the
// instruction offset from the symbol's base address.
type CallStackEntry struct {
	Symbol uint32
	Line   uint32
	Offset uint32
}

// headerSize is the size in bytes of a frame's opcode+length header.
const headerSize = 1 + 4

// frameLen returns the total length on the wire of a frame carrying the
// given payload length.
func frameLen(payloadLen int) int { return headerSize + payloadLen }

func putUint32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func putUint64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func getUint32(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }
func getUint64(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }
