package engine

import (
	"context"
	"fmt"
	"image"
	"math"
)

// frameOffset returns the normalized camera offset for frame i of total.
// dx/dy are in [-1, 1]; zoom is an extra scale factor in [0, MaxZoom].
func frameOffset(kind string, i, total int, wobble, maxZoom float64) (dx, dy, zoom float64) {
	if total <= 1 {
		return 0, 0, 0
	}
	t := float64(i) / float64(total-1)
	phase := 2 * math.Pi * t

	switch kind {
	case "shake":
		// First half sweeps horizontally, second half vertically.
		if t < 0.5 {
			dx = math.Sin(2 * phase)
		} else {
			dy = math.Sin(2 * phase)
		}
	case "rotate":
		dx = math.Sin(phase)
		dy = -math.Cos(phase) + 1 // start at the origin, orbit once
		dy /= 2
	case "rotate_push":
		dx = math.Sin(phase)
		dy = (-math.Cos(phase) + 1) / 2
		zoom = maxZoom * (1 - math.Cos(phase)) / 2
	default: // swipe
		dx = math.Sin(phase)
		dy = wobble * math.Sin(2*phase) * 0.25
	}
	return dx, dy, zoom
}

// ParallaxWarp renders frames by shifting each pixel along the camera offset
// proportionally to its inverse depth. The displacement budget is
// MaxDisparity x MotionScale of the image width, the same cap the gaussian
// renderer applies to its camera baseline. onFrame, when non-nil, is called
// after each frame; the context is checked per frame so cancellation cannot
// stall longer than one frame's work.
func ParallaxWarp(ctx context.Context, src *image.RGBA, depth *DepthMap, spec TrajectorySpec, onFrame func(done, total int)) ([]*image.RGBA, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if depth.Width != w || depth.Height != h {
		return nil, fmt.Errorf("engine: depth %dx%d does not match image %dx%d", depth.Width, depth.Height, w, h)
	}
	if spec.FrameCount < 2 {
		return nil, fmt.Errorf("engine: need at least 2 frames, got %d", spec.FrameCount)
	}

	repeats := spec.NumRepeats
	if repeats < 1 {
		repeats = 1
	}
	perCycle := spec.FrameCount / repeats
	if perCycle < 2 {
		perCycle = 2
	}

	maxShiftPx := spec.MaxDisparity * spec.MotionScale * float64(w)

	frames := make([]*image.RGBA, 0, spec.FrameCount)
	for i := 0; i < spec.FrameCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dx, dy, zoom := frameOffset(spec.Kind, i%perCycle, perCycle, spec.WobbleScale, spec.MaxZoom)
		frames = append(frames, warpFrame(src, depth, dx*maxShiftPx, dy*maxShiftPx, zoom))
		if onFrame != nil {
			onFrame(i+1, spec.FrameCount)
		}
	}
	return frames, nil
}

// warpFrame inverse-samples the source: for every output pixel it looks up
// where that pixel came from given the depth-scaled shift, bilinearly
// interpolating and clamping to the image border.
func warpFrame(src *image.RGBA, depth *DepthMap, shiftX, shiftY, zoom float64) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	scale := 1 / (1 + zoom)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inv := float64(depth.At(x, y))

			sx := cx + (float64(x)-cx)*scale - inv*shiftX
			sy := cy + (float64(y)-cy)*scale - inv*shiftY

			r, g, bl, a := bilinear(src, sx, sy)
			o := dst.PixOffset(x, y)
			dst.Pix[o] = r
			dst.Pix[o+1] = g
			dst.Pix[o+2] = bl
			dst.Pix[o+3] = a
		}
	}
	return dst
}

func bilinear(img *image.RGBA, x, y float64) (r, g, b, a uint8) {
	bounds := img.Bounds()
	maxX := float64(bounds.Dx() - 1)
	maxY := float64(bounds.Dy() - 1)

	x = math.Min(math.Max(x, 0), maxX)
	y = math.Min(math.Max(y, 0), maxY)

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > int(maxX) {
		x1 = x0
	}
	if y1 > int(maxY) {
		y1 = y0
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	o00 := img.PixOffset(bounds.Min.X+x0, bounds.Min.Y+y0)
	o10 := img.PixOffset(bounds.Min.X+x1, bounds.Min.Y+y0)
	o01 := img.PixOffset(bounds.Min.X+x0, bounds.Min.Y+y1)
	o11 := img.PixOffset(bounds.Min.X+x1, bounds.Min.Y+y1)

	lerp := func(c int) uint8 {
		top := float64(img.Pix[o00+c])*(1-fx) + float64(img.Pix[o10+c])*fx
		bot := float64(img.Pix[o01+c])*(1-fx) + float64(img.Pix[o11+c])*fx
		return uint8(top*(1-fy) + bot*fy + 0.5)
	}
	return lerp(0), lerp(1), lerp(2), lerp(3)
}
