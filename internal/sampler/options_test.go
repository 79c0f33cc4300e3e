package sampler

import (
	"testing"
	"time"

	"github.com/nativeprof/profiler/internal/wire"
)

func TestWithCommandOverridesInterval(t *testing.T) {
	o := DefaultOptions().WithCommand(wire.SetOptionsCommand{SamplingUsec: 2000, DownloadSymbols: 1})
	if o.SamplingInterval != 2*time.Millisecond {
		t.Fatalf("interval = %v, want 2ms", o.SamplingInterval)
	}
	if !o.DownloadSymbols {
		t.Fatal("expected DownloadSymbols to be enabled")
	}
}

func TestWithCommandKeepsDefaultIntervalWhenZero(t *testing.T) {
	o := DefaultOptions().WithCommand(wire.SetOptionsCommand{SamplingUsec: 0})
	if o.SamplingInterval != time.Millisecond {
		t.Fatalf("interval = %v, want default 1ms", o.SamplingInterval)
	}
}
