package device

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestProbeOverride(t *testing.T) {
	tests := []struct {
		override string
		want     Capability
	}{
		{"gsplat-cuda", GsplatCuda},
		{"cuda", CudaNoGsplat},
		{"fallback", FallbackOnly},
		{"GSPLAT-CUDA", GsplatCuda}, // case-insensitive
		{"  fallback  ", FallbackOnly},
	}
	for _, tt := range tests {
		p := NewProbe(Options{
			Override: tt.override,
			// Checks must not run when the override matches.
			CudaCheck:   func(context.Context) bool { t.Fatal("cuda check ran"); return false },
			GsplatCheck: func(context.Context) bool { t.Fatal("gsplat check ran"); return false },
			Logger:      testLogger(),
		})
		if got := p.Capability(); got != tt.want {
			t.Errorf("override %q: got %s, want %s", tt.override, got, tt.want)
		}
	}
}

func TestProbeUnknownOverrideFallsThrough(t *testing.T) {
	p := NewProbe(Options{
		Override:  "tpu",
		CudaCheck: func(context.Context) bool { return false },
		Logger:    testLogger(),
	})
	if got := p.Capability(); got != FallbackOnly {
		t.Fatalf("got %s, want fallback", got)
	}
}

func TestProbeDetection(t *testing.T) {
	tests := []struct {
		name   string
		cuda   bool
		gsplat bool
		want   Capability
	}{
		{"no cuda", false, true, FallbackOnly},
		{"cuda without gsplat", true, false, CudaNoGsplat},
		{"full stack", true, true, GsplatCuda},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProbe(Options{
				CudaCheck:   func(context.Context) bool { return tt.cuda },
				GsplatCheck: func(context.Context) bool { return tt.gsplat },
				Logger:      testLogger(),
			})
			if got := p.Capability(); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProbeMemoized(t *testing.T) {
	calls := 0
	p := NewProbe(Options{
		CudaCheck: func(context.Context) bool { calls++; return true },
		Logger:    testLogger(),
	})
	first := p.Capability()
	for i := 0; i < 5; i++ {
		if got := p.Capability(); got != first {
			t.Fatal("capability changed between calls")
		}
	}
	if calls != 1 {
		t.Fatalf("probe ran %d times, want 1", calls)
	}
}

func TestProbeNilGsplatCheck(t *testing.T) {
	p := NewProbe(Options{
		CudaCheck: func(context.Context) bool { return true },
		Logger:    testLogger(),
	})
	if got := p.Capability(); got != CudaNoGsplat {
		t.Fatalf("nil gsplat check should yield cuda-only, got %s", got)
	}
}
