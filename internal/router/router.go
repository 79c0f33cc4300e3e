// Package router implements the command thread's dispatch loop
// (SPEC_FULL.md §4.6): decode length-prefixed command frames off the
// control pipe and invoke the matching handler.
package router

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nativeprof/profiler/internal/wire"
)

// Handlers holds one callback per command opcode. A nil handler means
// the command is accepted and decoded but otherwise ignored — useful
// for a command thread that hasn't wired every feature yet.
type Handlers struct {
	SetOptions    func(wire.SetOptionsCommand)
	Stop          func()
	CreateProcess func(wire.CreateProcessCommand)
	AttachProcess func(pid uint32)
}

// Router decodes frames and dispatches them to Handlers.
type Router struct {
	handlers Handlers
	logger   zerolog.Logger
}

// New builds a Router. logger is used to report malformed or unknown
// frames. A malformed payload on a known opcode is logged and skipped;
// an unknown opcode is logged and ends Feed with an error (see Feed).
func New(handlers Handlers, logger zerolog.Logger) *Router {
	return &Router{handlers: handlers, logger: logger}
}

// Feed parses as many complete frames as buf holds and dispatches each
// in order, returning the number of bytes consumed. The caller is
// expected to keep any unconsumed suffix and append the next read to
// it, exactly mirroring internal/wire.TryReadFrame's incremental
// contract.
//
// An unrecognized opcode is a terminating protocol error (SPEC_FULL.md
// §4.4/§7): that frame is left entirely unconsumed (it is not skipped
// as dead bytes) and Feed returns a non-nil err. A known opcode with a
// malformed payload is logged and skipped instead — only the framing
// byte itself desyncs the stream.
func (r *Router) Feed(buf []byte) (consumed int, err error) {
	for {
		op, payload, n, ok := wire.TryReadFrame(buf[consumed:])
		if !ok {
			return consumed, nil
		}
		if !wire.IsCommand(op) {
			r.logger.Warn().Uint8("opcode", uint8(op)).Msg("unknown command opcode, terminating stream")
			return consumed, fmt.Errorf("router: unknown command opcode %d", op)
		}
		r.dispatch(op, payload)
		consumed += n
	}
}

func (r *Router) dispatch(op wire.Opcode, payload []byte) {
	switch op {
	case wire.SetOptions:
		cmd, err := wire.DecodeSetOptions(payload)
		if err != nil {
			r.logger.Warn().Err(err).Msg("malformed SET_OPTIONS command")
			return
		}
		if r.handlers.SetOptions != nil {
			r.handlers.SetOptions(cmd)
		}

	case wire.Stop:
		if r.handlers.Stop != nil {
			r.handlers.Stop()
		}

	case wire.CreateProcess:
		cmd, err := wire.DecodeCreateProcess(payload)
		if err != nil {
			r.logger.Warn().Err(err).Msg("malformed CREATE_PROCESS command")
			return
		}
		if r.handlers.CreateProcess != nil {
			r.handlers.CreateProcess(cmd)
		}

	case wire.AttachProcess:
		pid, err := wire.DecodeAttachProcess(payload)
		if err != nil {
			r.logger.Warn().Err(err).Msg("malformed ATTACH_PROCESS command")
			return
		}
		if r.handlers.AttachProcess != nil {
			r.handlers.AttachProcess(pid)
		}
	}
}
