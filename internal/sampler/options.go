package sampler

import (
	"time"

	"github.com/nativeprof/profiler/internal/wire"
)

// Options holds the tunables set by a SET_OPTIONS command (spec.md §6).
type Options struct {
	SamplingInterval time.Duration
	DownloadSymbols  bool
	MaxStackDepth    int
}

// DefaultOptions matches spec.md §4.5's "request 1-ms timer resolution"
// starting point, applied until a SET_OPTIONS command overrides it.
func DefaultOptions() Options {
	return Options{
		SamplingInterval: time.Millisecond,
		DownloadSymbols:  false,
		MaxStackDepth:    128,
	}
}

// WithCommand applies a decoded SET_OPTIONS command on top of o.
func (o Options) WithCommand(cmd wire.SetOptionsCommand) Options {
	if cmd.SamplingUsec > 0 {
		o.SamplingInterval = time.Duration(cmd.SamplingUsec) * time.Microsecond
	}
	o.DownloadSymbols = cmd.DownloadSymbols != 0
	return o
}
