//go:build linux

package sampler

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nativeprof/profiler/internal/symbols"
	"github.com/nativeprof/profiler/internal/wire"
)

func TestSessionForwardsEventsOverTheWire(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(1234, 8, &buf, nil, DefaultOptions(), zerolog.Nop())

	s.ModuleLoad(0x1000, "app")
	s.NewSymbol(symbols.Symbol{ID: 1, Address: 0x1000, Size: 16, Name: 2, File: 3, Module: 4, Line: 10, LineLast: 20})
	s.ModuleUnload(0x1000)
	s.ThreadAdd(5, 0x2000)
	s.ThreadRemove(5)

	var ops []wire.Opcode
	data := buf.Bytes()
	for len(data) > 0 {
		op, _, consumed, ok := wire.TryReadFrame(data)
		if !ok {
			t.Fatalf("expected a complete frame, got %d trailing bytes", len(data))
		}
		ops = append(ops, op)
		data = data[consumed:]
	}

	want := []wire.Opcode{wire.ModuleLoad, wire.NewSymbol, wire.ModuleUnload, wire.ThreadAdd, wire.ThreadRemove}
	if len(ops) != len(want) {
		t.Fatalf("got %d frames, want %d: %v", len(ops), len(want), ops)
	}
	for i, op := range ops {
		if op != want[i] {
			t.Fatalf("frame %d = %v, want %v", i, op, want[i])
		}
	}
}

func TestScanModulesRegistersSelfOnceFromProcMaps(t *testing.T) {
	var buf bytes.Buffer
	resolverCalls := 0
	resolver := func(path string, base uint64) (symbols.Resolver, error) {
		resolverCalls++
		return nil, errors.New("no resolver needed for this test")
	}
	s := NewSession(os.Getpid(), 8, &buf, resolver, DefaultOptions(), zerolog.Nop())

	s.scanModules()
	firstCalls := resolverCalls
	if firstCalls == 0 {
		t.Fatal("expected at least one file-backed module to be discovered from /proc/self/maps")
	}

	s.scanModules()
	if resolverCalls != firstCalls {
		t.Fatalf("second scan must not re-register already-known modules: resolver called %d times, want %d", resolverCalls, firstCalls)
	}
}

func TestSessionTakeSamplesSkipsUnreadableThreads(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(1, 8, &buf, nil, DefaultOptions(), zerolog.Nop())
	// No real tracee is attached, so readRegisters() will fail for any tid;
	// takeSamples must tolerate that rather than panicking.
	s.threads.Add(999999, 0, nil)
	s.takeSamples()
	if buf.Len() != 0 {
		t.Fatalf("expected no STACK_SAMPLES to be written, got %d bytes", buf.Len())
	}
}
