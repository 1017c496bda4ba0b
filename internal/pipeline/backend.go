// Package pipeline implements the two rendering backends and the stage
// machinery shared between them. A backend runs a fixed, ordered list of
// weighted stages; progress is reported per stage and cancellation is honored
// at stage boundaries and inside frame loops.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"motiond/internal/device"
	"motiond/internal/domain"
	"motiond/internal/engine"
)

// Stage pairs a stage name with its share of overall progress. Weights per
// backend sum to 1.
type Stage struct {
	Name   string
	Weight float64
}

// ProgressFunc receives per-stage progress in [0, 1]. Implementations must be
// safe to call from the worker goroutine only.
type ProgressFunc func(stage string, frac float64)

// RunRequest carries everything a backend needs to render one job.
type RunRequest struct {
	ImageBytes  []byte
	ImageFormat string
	Preset      domain.Preset
	Motion      domain.MotionParams
}

// Result is the output of a completed render.
type Result struct {
	Video      []byte
	Ext        string
	Megapixels float64
	FrameCount int
}

// Backend is a rendering strategy. Run blocks until the render finishes,
// fails, or the context is cancelled.
type Backend interface {
	Kind() domain.BackendKind
	Stages() []Stage
	Run(ctx context.Context, req *RunRequest, progress ProgressFunc) (*Result, error)
}

// Deps are the collaborators shared by all backends.
type Deps struct {
	Engine       *engine.Client
	Encoder      engine.Encoder
	StageTimeout time.Duration
}

// Select picks the backend for the probed capability, evaluated once per job
// at dequeue time. The gaussian path needs the full gsplat-cuda stack;
// everything else, and any explicit fallback request, runs depth parallax.
func Select(capability device.Capability, forceFallback bool, deps Deps) (Backend, error) {
	switch capability {
	case device.GsplatCuda:
		if forceFallback {
			return &ParallaxBackend{deps: deps}, nil
		}
		return &GaussianBackend{deps: deps}, nil
	case device.CudaNoGsplat, device.FallbackOnly:
		return &ParallaxBackend{deps: deps}, nil
	default:
		return nil, fmt.Errorf("%w: capability %q", domain.ErrDeviceUnavailable, capability)
	}
}

// stageExec is one stage's body. report forwards fractional progress for the
// stage; the passed context carries the stage deadline when one is set.
type stageExec struct {
	name string
	fn   func(ctx context.Context, report func(frac float64)) error
}

// runStages executes stages in order. Between stages the parent context is
// checked so a cancel lands at the next boundary at the latest. A stage that
// outlives the configured timeout fails with ErrStageTimeout; every other
// stage failure is wrapped in a StageError naming the stage.
func runStages(ctx context.Context, timeout time.Duration, progress ProgressFunc, stages []stageExec) error {
	for _, s := range stages {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}

		stageCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		report := func(frac float64) {
			if frac < 0 {
				frac = 0
			} else if frac > 1 {
				frac = 1
			}
			progress(s.name, frac)
		}

		progress(s.name, 0)
		err := s.fn(stageCtx, report)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return domain.ErrCancelled
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return &domain.StageError{Stage: s.name, Cause: domain.ErrStageTimeout}
			}
			return &domain.StageError{Stage: s.name, Cause: err}
		}
		progress(s.name, 1)
	}
	return nil
}

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// StageNames returns the ordered stage names for a backend kind, for job
// bookkeeping before a backend instance exists.
func StageNames(b Backend) []string {
	return stageNames(b.Stages())
}
