// Package engine wraps the external inference and rendering collaborators:
// gaussian prediction, trajectory rendering, monodepth estimation, the
// in-process parallax warp, and video encoding. The orchestration core treats
// every operation here as an opaque stage function.
package engine

import "image"

// Gaussians is the predicted 3D gaussian scene representation. Payload is
// opaque to the core; Source is retained so the synthetic path can render
// without a remote renderer.
type Gaussians struct {
	Count   int
	Payload []byte
	Source  *image.RGBA
	FocalPx float64
}

// DepthMap carries a normalized inverse-depth field for parallax warping.
// Values are centered on the median and clamped to [-1, 1]: near objects are
// positive, far ones negative.
type DepthMap struct {
	Width  int
	Height int
	Inv    []float32
}

// At returns the normalized inverse depth at (x, y).
func (d *DepthMap) At(x, y int) float32 {
	return d.Inv[y*d.Width+x]
}

// TrajectorySpec describes the camera path the renderer should follow.
type TrajectorySpec struct {
	Kind          string
	FrameCount    int
	NumRepeats    int
	MotionScale   float64
	WobbleScale   float64
	MaxDisparity  float64
	MaxZoom       float64
	MaxOutputSide int
}
