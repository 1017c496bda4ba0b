package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sort"

	"motiond/internal/imageio"
)

// deterministicSeed derives a stable seed from the input so repeated runs on
// the same image produce identical synthetic output.
func deterministicSeed(data []byte) uint64 {
	sum := sha256.Sum256(data)
	return binary.BigEndian.Uint64(sum[:8])
}

// syntheticGaussians builds a stand-in gaussian scene from the decoded image.
// The payload is just the seed; Source carries the pixels the synthetic
// renderer warps.
func (c *Client) syntheticGaussians(imageBytes []byte) (*Gaussians, error) {
	img, err := imageio.Decode(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("engine: synthetic gaussians: %w", err)
	}
	src := imageio.ResizeMaxSide(img, 0)

	seed := deterministicSeed(imageBytes)
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, seed)

	b := src.Bounds()
	return &Gaussians{
		Count:   b.Dx() * b.Dy() / 64,
		Payload: payload,
		Source:  src,
		FocalPx: 1.2 * float64(max(b.Dx(), b.Dy())),
	}, nil
}

// syntheticTrajectory approximates the renderer by depth-warping the source
// image along the requested camera path. Output quality is placeholder grade
// but the frame count, timing, and progress behavior match the real renderer.
func (c *Client) syntheticTrajectory(ctx context.Context, g *Gaussians, spec TrajectorySpec, onFrame func(done, total int)) ([]*image.RGBA, error) {
	if g.Source == nil {
		return nil, fmt.Errorf("engine: synthetic trajectory: gaussians carry no source image")
	}
	src := imageio.ResizeMaxSide(g.Source, spec.MaxOutputSide)
	depth := syntheticDepth(src)

	frames, err := ParallaxWarp(ctx, src, depth, spec, onFrame)
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// syntheticDepth produces a plausible inverse-depth field from luminance and
// a radial falloff: bright, central regions read as near. Good enough to make
// the warp visibly parallax without a depth network.
func syntheticDepth(img *image.RGBA) *DepthMap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	d := &DepthMap{Width: w, Height: h, Inv: make([]float32, w*h)}

	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	maxR := math.Hypot(cx, cy)
	if maxR == 0 {
		maxR = 1
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r := float64(img.Pix[o])
			gr := float64(img.Pix[o+1])
			bl := float64(img.Pix[o+2])
			luma := (0.299*r + 0.587*gr + 0.114*bl) / 255

			radial := 1 - math.Hypot(float64(x)-cx, float64(y)-cy)/maxR
			d.Inv[y*w+x] = float32(0.6*luma + 0.4*radial)
		}
	}
	normalizeDepth(d)
	return d
}

// normalizeDepth rescales inverse depth robustly: the 5th..95th percentile
// span maps to roughly [-1, 1] around the median, then values are clamped.
// Outlier depths therefore cannot blow up the warp displacement.
func normalizeDepth(d *DepthMap) {
	n := len(d.Inv)
	if n == 0 {
		return
	}
	sorted := make([]float32, n)
	copy(sorted, d.Inv)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	q := func(p float64) float32 {
		idx := int(p * float64(n-1))
		return sorted[idx]
	}
	q05, q50, q95 := q(0.05), q(0.50), q(0.95)

	halfSpan := float64(q95-q05) / 2
	if halfSpan < 1e-6 {
		for i := range d.Inv {
			d.Inv[i] = 0
		}
		return
	}
	for i, v := range d.Inv {
		nv := float64(v-q50) / halfSpan
		if nv > 1 {
			nv = 1
		} else if nv < -1 {
			nv = -1
		}
		d.Inv[i] = float32(nv)
	}
}

func encodePNG(w io.Writer, img *image.RGBA) error {
	return png.Encode(w, img)
}
