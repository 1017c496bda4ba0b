package pipeline

import (
	"context"
	"image"

	"motiond/internal/domain"
	"motiond/internal/engine"
	"motiond/internal/imageio"
)

// Parallax pipeline stage names. encode_video is shared with the gaussian
// path.
const (
	StageDownscaleInput = "downscale_input"
	StageEstimateDepth  = "estimate_depth"
	StageParallaxWarp   = "parallax_warp"
)

var parallaxStages = []Stage{
	{Name: StageDownscaleInput, Weight: 0.05},
	{Name: StageEstimateDepth, Weight: 0.40},
	{Name: StageParallaxWarp, Weight: 0.35},
	{Name: StageEncodeVideo, Weight: 0.20},
}

// ParallaxBackend is the fallback path: estimate an inverse-depth map and
// warp the source image along the camera path. It runs on any host.
type ParallaxBackend struct {
	deps Deps
}

func (b *ParallaxBackend) Kind() domain.BackendKind { return domain.BackendDepthParallax }

func (b *ParallaxBackend) Stages() []Stage { return parallaxStages }

func (b *ParallaxBackend) Run(ctx context.Context, req *RunRequest, progress ProgressFunc) (*Result, error) {
	var (
		src    *image.RGBA
		depth  *engine.DepthMap
		frames []*image.RGBA
		video  []byte
		ext    string
	)

	spec := engine.TrajectorySpec{
		Kind:         string(req.Motion.Kind),
		FrameCount:   req.Motion.FrameCount(),
		NumRepeats:   req.Motion.NumRepeats,
		MotionScale:  req.Motion.MotionScale,
		WobbleScale:  req.Motion.WobbleScale,
		MaxDisparity: req.Motion.MaxDisparity,
		MaxZoom:      req.Motion.MaxZoom,
	}

	err := runStages(ctx, b.deps.StageTimeout, progress, []stageExec{
		{name: StageDownscaleInput, fn: func(ctx context.Context, report func(float64)) error {
			var (
				img image.Image
				err error
			)
			// HEIC has no in-process codec; submission only admits it
			// when a remote engine can decode it.
			if req.ImageFormat == imageio.FormatHEIC {
				img, err = b.deps.Engine.DecodeImage(ctx, req.ImageBytes)
			} else {
				img, err = imageio.Decode(req.ImageBytes)
			}
			if err != nil {
				return err
			}
			// The fallback cap is tighter than the preset output side: the
			// warp is O(frames x pixels) on the CPU.
			src = imageio.ResizeMaxSide(img, req.Preset.MaxFallbackInputSide)
			return nil
		}},
		{name: StageEstimateDepth, fn: func(ctx context.Context, report func(float64)) error {
			d, err := b.deps.Engine.EstimateDepth(ctx, src)
			if err != nil {
				return err
			}
			depth = d
			return nil
		}},
		{name: StageParallaxWarp, fn: func(ctx context.Context, report func(float64)) error {
			fs, err := engine.ParallaxWarp(ctx, src, depth, spec, func(done, total int) {
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

	fb := frames[0].Bounds()
	return &Result{
		Video:      video,
		Ext:        ext,
		Megapixels: float64(fb.Dx()*fb.Dy()) / 1e6,
		FrameCount: len(frames),
	}, nil
}
