//go:build linux

package sampler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/nativeprof/profiler/internal/arena"
	"github.com/nativeprof/profiler/internal/strtab"
	"github.com/nativeprof/profiler/internal/symbols"
	"github.com/nativeprof/profiler/internal/threads"
	"github.com/nativeprof/profiler/internal/wire"
)

// Session owns the single OS thread that drives one traced process: the
// thread registry, symbol store, string table, and the reply writer
// feeding the control pipe. It implements threads.Events and
// symbols.Events directly so that registry/store activity is announced
// on the wire as it happens, mirroring spec.md §4.3/§4.2's "emit an
// event for every transition" rule.
type Session struct {
	pid     int
	ptrSize int
	opts    Options
	logger  zerolog.Logger

	writer  *wire.Writer
	strings *strtab.Table
	arena   *arena.Arena
	threads *threads.Registry
	symbols *symbols.Store

	knownModules map[string]bool // paths already registered via symbols.Store.Load
}

// NewSession constructs a Session for a process already stopped at
// attach (or about to be created and immediately traced). w is the
// sampler thread's half of the control pipe; resolver builds a
// per-module symbol Resolver, typically symbols.NewELFResolverFactory().
func NewSession(pid, ptrSize int, w io.Writer, resolver symbols.ResolverFactory, opts Options, logger zerolog.Logger) *Session {
	s := &Session{
		pid:          pid,
		ptrSize:      ptrSize,
		opts:         opts,
		logger:       logger,
		writer:       wire.NewWriter(w),
		strings:      strtab.New(),
		arena:        arena.New(),
		knownModules: make(map[string]bool),
	}
	s.threads = threads.New(s)
	s.symbols = symbols.NewStore(s.strings, s, resolver)
	return s
}

// ThreadAdd implements threads.Events.
func (s *Session) ThreadAdd(id uint32, entry uint64) {
	if err := s.writer.WriteThreadAdd(id, entry); err != nil {
		s.logger.Warn().Err(err).Uint32("tid", id).Msg("failed to write THREAD_ADD")
	}
}

// ThreadRemove implements threads.Events.
func (s *Session) ThreadRemove(id uint32) {
	if err := s.writer.WriteThreadRemove(id); err != nil {
		s.logger.Warn().Err(err).Uint32("tid", id).Msg("failed to write THREAD_REMOVE")
	}
}

// NewSymbol implements symbols.Events.
func (s *Session) NewSymbol(sym symbols.Symbol) {
	err := s.writer.WriteNewSymbol(wire.NewSymbolFields{
		ID: sym.ID, Name: sym.Name, File: sym.File, Size: sym.Size,
		Address: sym.Address, Module: sym.Module, Line: sym.Line, LineLast: sym.LineLast,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint32("symbol", sym.ID).Msg("failed to write NEW_SYMBOL")
	}
}

// ModuleLoad implements symbols.Events.
func (s *Session) ModuleLoad(base uint64, name string) {
	if err := s.writer.WriteModuleLoad(base, name); err != nil {
		s.logger.Warn().Err(err).Str("module", name).Msg("failed to write MODULE_LOAD")
	}
}

// ModuleUnload implements symbols.Events.
func (s *Session) ModuleUnload(base uint64) {
	if err := s.writer.WriteModuleUnload(base); err != nil {
		s.logger.Warn().Err(err).Uint64("base", base).Msg("failed to write MODULE_UNLOAD")
	}
}

// SetOptions updates the sampling options, as applied by the command
// thread on a SET_OPTIONS command.
func (s *Session) SetOptions(o Options) {
	s.opts = o
}

// Run drives the ptrace event loop for the process (spec.md §4.5): it
// attaches, waits for debug events, and samples every thread on each
// tick of the sampling interval, until the tracee exits or ctx is
// cancelled.
func (s *Session) Run(ctx context.Context) error {
	if err := unix.PtraceAttach(s.pid); err != nil {
		return fmt.Errorf("sampler: ptrace attach %d: %w", s.pid, err)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(s.pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("sampler: initial wait4 %d: %w", s.pid, err)
	}

	if err := unix.PtraceSetOptions(s.pid, unix.PTRACE_O_TRACECLONE|unix.PTRACE_O_TRACEEXIT); err != nil {
		s.logger.Warn().Err(err).Msg("ptrace setoptions failed, thread creation events may be missed")
	}

	if err := s.writer.WriteProcessStart(uint32(s.pid), uint32(s.ptrSize)); err != nil {
		return err
	}
	s.threads.Add(uint32(s.pid), 0, nil)
	s.scanModules()

	if err := unix.PtraceCont(s.pid, 0); err != nil {
		return fmt.Errorf("sampler: initial ptrace cont: %w", err)
	}

	ticker := time.NewTicker(s.opts.SamplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.scanModules()
			s.takeSamples()
			continue
		default:
		}

		var status unix.WaitStatus
		wpid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil {
			return fmt.Errorf("sampler: wait4: %w", err)
		}
		if wpid <= 0 {
			continue
		}

		switch {
		case status.Exited():
			if wpid == s.pid {
				s.writer.WriteProcessEnd(uint32(status.ExitStatus()))
				return nil
			}
			s.threads.Remove(uint32(wpid))

		case status.Signaled():
			if wpid == s.pid {
				s.writer.WriteProcessEnd(uint32(128 + int(status.Signal())))
				return nil
			}

		case status.Stopped():
			s.handleStop(wpid, status)
		}
	}
}

func (s *Session) handleStop(tid int, status unix.WaitStatus) {
	if status.TrapCause() == unix.PTRACE_EVENT_CLONE {
		if newTid, err := unix.PtraceGetEventMsg(tid); err == nil {
			s.threads.Add(uint32(newTid), 0, nil)
		}
		unix.PtraceCont(tid, 0)
		return
	}

	sig := status.StopSignal()
	if sig == unix.SIGTRAP {
		unix.PtraceCont(tid, 0)
		return
	}

	// Second-chance exception: forward the signal unhandled rather than
	// swallowing it (§9 open question #2).
	unix.PtraceCont(tid, int(sig))
}

// takeSamples implements spec.md §4.5 points 1-7: read every thread's
// PC/BP, walk its frame-pointer chain, resolve each return address to a
// symbol, and emit one STACK_SAMPLES reply per non-empty stack.
func (s *Session) takeSamples() {
	s.threads.Each(func(id uint32, _ threads.Handle) bool {
		pc, bp, err := readRegisters(int(id))
		if err != nil {
			return true
		}

		frames := Unwind(ptraceMemory{pid: int(id)}, pc, bp, s.opts.MaxStackDepth)
		if len(frames) == 0 {
			return true
		}

		entries := make([]wire.CallStackEntry, 0, len(frames))
		for i, f := range frames {
			// Every frame but the leaf is a return address, which points
			// one instruction past the call; resolving it as-is can walk
			// off the end of the calling symbol's range (e.g. a call as
			// the very last instruction before a tail-jump). Back it up by
			// one byte before symbol/line lookup (spec.md §4.5 point 5).
			pc := f.PC
			if i > 0 {
				pc--
			}

			sym, ok := s.symbols.Get(pc)
			if !ok {
				continue
			}
			line, _ := s.symbols.LineAt(pc)
			entries = append(entries, wire.CallStackEntry{
				Symbol: sym.ID,
				Line:   line,
				Offset: uint32(pc - sym.Address),
			})
		}
		if len(entries) == 0 {
			return true
		}
		if err := s.writer.WriteStackSamples(id, entries); err != nil {
			s.logger.Warn().Err(err).Uint32("tid", id).Msg("failed to write STACK_SAMPLES")
		}
		return true
	})
}
