package pipeline

import (
	"context"
	"fmt"
	"image"

	"motiond/internal/domain"
	"motiond/internal/engine"
)

// Gaussian pipeline stage names.
const (
	StagePredictGaussians = "predict_gaussians"
	StageRenderTrajectory = "render_trajectory"
	StageEncodeVideo      = "encode_video"
)

var gaussianStages = []Stage{
	{Name: StagePredictGaussians, Weight: 0.35},
	{Name: StageRenderTrajectory, Weight: 0.50},
	{Name: StageEncodeVideo, Weight: 0.15},
}

// GaussianBackend is the full-quality path: predict a 3D gaussian scene from
// the image, render it along the camera trajectory, encode the frames.
type GaussianBackend struct {
	deps Deps
}

func (b *GaussianBackend) Kind() domain.BackendKind { return domain.BackendGaussianTrajectory }

func (b *GaussianBackend) Stages() []Stage { return gaussianStages }

func (b *GaussianBackend) Run(ctx context.Context, req *RunRequest, progress ProgressFunc) (*Result, error) {
	var (
		gaussians *engine.Gaussians
		frames    []*image.RGBA
		video     []byte
		ext       string
	)

	spec := engine.TrajectorySpec{
		Kind:          string(req.Motion.Kind),
		FrameCount:    req.Motion.FrameCount(),
		NumRepeats:    req.Motion.NumRepeats,
		MotionScale:   req.Motion.MotionScale,
		WobbleScale:   req.Motion.WobbleScale,
		MaxDisparity:  req.Motion.MaxDisparity,
		MaxZoom:       req.Motion.MaxZoom,
		MaxOutputSide: req.Preset.MaxOutputSide,
	}

	err := runStages(ctx, b.deps.StageTimeout, progress, []stageExec{
		{name: StagePredictGaussians, fn: func(ctx context.Context, report func(float64)) error {
			g, err := b.deps.Engine.PredictGaussians(ctx, req.ImageBytes)
			if err != nil {
				return err
			}
			gaussians = g
			return nil
		}},
		{name: StageRenderTrajectory, fn: func(ctx context.Context, report func(float64)) error {
			fs, err := b.deps.Engine.RenderTrajectory(ctx, gaussians, spec, func(done, total int) {
				report(float64(done) / float64(total))
			})
			if err != nil {
				return err
			}
			frames = fs
			return nil
		}},
		{name: StageEncodeVideo, fn: func(ctx context.Context, report func(float64)) error {
			v, e, err := b.deps.Encoder.Encode(ctx, frames, req.Motion.FPS)
			if err != nil {
				return err
			}
			video, ext = v, e
			return nil
		}},
	})
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("gaussian backend produced no frames")
	}

	fb := frames[0].Bounds()
	return &Result{
		Video:      video,
		Ext:        ext,
		Megapixels: float64(fb.Dx()*fb.Dy()) / 1e6,
		FrameCount: len(frames),
	}, nil
}
