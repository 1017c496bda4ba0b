// Package device detects the compute capability available to the render
// pipeline. The probe runs once per process; every later call returns the
// memoized result so backend selection stays deterministic for the process
// lifetime.
package device

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"motiond/internal/infra"
)

// Capability describes which rendering backends the host can run.
type Capability string

const (
	// GsplatCuda means CUDA plus the gsplat trajectory renderer: the full
	// gaussian pipeline is eligible.
	GsplatCuda Capability = "gsplat-cuda"
	// CudaNoGsplat means a CUDA device exists but the trajectory renderer
	// does not; only the depth-parallax path runs.
	CudaNoGsplat Capability = "cuda"
	// FallbackOnly covers MPS/CPU hosts and any probe failure.
	FallbackOnly Capability = "fallback"
)

// Probe computes the host capability once and memoizes it. A probe failure is
// never fatal; it degrades to FallbackOnly.
type Probe struct {
	override     string
	gsplatCheck  func(context.Context) bool
	cudaCheck    func(context.Context) bool
	logger       infra.Logger
	once         sync.Once
	capability   Capability
}

// Options configures a Probe. GsplatCheck reports whether the trajectory
// renderer is available (typically the inference engine's advertised
// support); nil means no gsplat. CudaCheck overrides CUDA detection in tests.
type Options struct {
	Override    string
	GsplatCheck func(context.Context) bool
	CudaCheck   func(context.Context) bool
	Logger      infra.Logger
}

// NewProbe constructs an unprobed Probe.
func NewProbe(opts Options) *Probe {
	p := &Probe{
		override:    strings.TrimSpace(strings.ToLower(opts.Override)),
		gsplatCheck: opts.GsplatCheck,
		cudaCheck:   opts.CudaCheck,
		logger:      opts.Logger,
	}
	if p.cudaCheck == nil {
		p.cudaCheck = detectCUDA
	}
	return p
}

// Capability returns the detected capability, probing on first use.
func (p *Probe) Capability() Capability {
	p.once.Do(func() {
		p.capability = p.detect()
		p.logger.Info().Str("capability", string(p.capability)).Msg("device: probe complete")
	})
	return p.capability
}

func (p *Probe) detect() Capability {
	switch p.override {
	case string(GsplatCuda):
		return GsplatCuda
	case string(CudaNoGsplat):
		return CudaNoGsplat
	case string(FallbackOnly):
		return FallbackOnly
	case "":
	default:
		p.logger.Warn().Str("override", p.override).Msg("device: unknown DEVICE_OVERRIDE ignored")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !p.cudaCheck(ctx) {
		return FallbackOnly
	}
	if p.gsplatCheck != nil && p.gsplatCheck(ctx) {
		return GsplatCuda
	}
	return CudaNoGsplat
}

// detectCUDA shells out to nvidia-smi; a zero exit with at least one device
// listed counts as CUDA-capable. Any error means no CUDA.
func detectCUDA(ctx context.Context) bool {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}
