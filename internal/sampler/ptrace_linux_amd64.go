//go:build linux && amd64

package sampler

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// readRegisters returns the instruction pointer and frame-base pointer
// for tid, the register names the amd64 frame-pointer convention
// (`push rbp; mov rbp, rsp`) relies on.
func readRegisters(tid int) (pc, bp uint64, err error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return 0, 0, fmt.Errorf("sampler: PTRACE_GETREGS tid=%d: %w", tid, err)
	}
	return regs.Rip, regs.Rbp, nil
}

// ptraceMemory reads a tracee's memory word by word via PTRACE_PEEKDATA.
type ptraceMemory struct {
	pid int
}

func (m ptraceMemory) ReadWord(addr uint64) (uint64, error) {
	var buf [8]byte
	n, err := unix.PtracePeekData(m.pid, uintptr(addr), buf[:])
	if err != nil {
		return 0, fmt.Errorf("sampler: PTRACE_PEEKDATA pid=%d addr=%#x: %w", m.pid, addr, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("sampler: short PTRACE_PEEKDATA read: %d/%d bytes", n, len(buf))
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
