package domain

import "fmt"

// MotionKind names a synthetic camera movement pattern.
type MotionKind string

const (
	MotionSwipe      MotionKind = "swipe"
	MotionShake      MotionKind = "shake"
	MotionRotate     MotionKind = "rotate"
	MotionRotatePush MotionKind = "rotate_push"
)

// ParseMotionKind validates a submitted motion kind. The legacy
// "rotate_forward" spelling is accepted as an alias for rotate_push.
func ParseMotionKind(raw string) (MotionKind, error) {
	switch MotionKind(raw) {
	case MotionSwipe, MotionShake, MotionRotate, MotionRotatePush:
		return MotionKind(raw), nil
	case "rotate_forward":
		return MotionRotatePush, nil
	case "":
		return MotionSwipe, nil
	default:
		return "", fmt.Errorf("%w: unknown motion kind %q", ErrInvalidInput, raw)
	}
}

// MotionParams holds the camera-motion controls for a render. All slider
// fields are clamped into their declared ranges at submission time.
type MotionParams struct {
	Kind         MotionKind `json:"kind"`
	DurationS    float64    `json:"duration_s"`
	FPS          int        `json:"fps"`
	MotionScale  float64    `json:"motion_scale"`
	WobbleScale  float64    `json:"wobble_scale"`
	MaxDisparity float64    `json:"max_disparity"`
	MaxZoom      float64    `json:"max_zoom"`
	NumRepeats   int        `json:"num_repeats"`
}

// DefaultMotionParams mirrors the defaults of the render form.
func DefaultMotionParams() MotionParams {
	return MotionParams{
		Kind:         MotionSwipe,
		DurationS:    4.0,
		FPS:          30,
		MotionScale:  0.20,
		WobbleScale:  0.25,
		MaxDisparity: 0.08,
		MaxZoom:      0.15,
		NumRepeats:   1,
	}
}

// Clamp forces every slider into its declared range. Zero values fall back to
// the field's default rather than the range minimum so that partially
// populated submissions behave like the form with untouched sliders.
func (m *MotionParams) Clamp() {
	def := DefaultMotionParams()
	if m.DurationS == 0 {
		m.DurationS = def.DurationS
	}
	if m.FPS == 0 {
		m.FPS = def.FPS
	}
	if m.MotionScale == 0 {
		m.MotionScale = def.MotionScale
	}
	if m.NumRepeats == 0 {
		m.NumRepeats = def.NumRepeats
	}
	m.DurationS = clampFloat(m.DurationS, 0.2, 20)
	m.FPS = clampInt(m.FPS, 6, 60)
	m.MotionScale = clampFloat(m.MotionScale, 0.05, 1.0)
	m.WobbleScale = clampFloat(m.WobbleScale, 0, 1.0)
	m.MaxDisparity = clampFloat(m.MaxDisparity, 0.01, 0.20)
	m.MaxZoom = clampFloat(m.MaxZoom, 0, 0.40)
	m.NumRepeats = clampInt(m.NumRepeats, 1, 4)
}

// FrameCount returns the number of frames a render of these params produces.
func (m MotionParams) FrameCount() int {
	n := int(m.DurationS*float64(m.FPS) + 0.5)
	if n < 2 {
		n = 2
	}
	return n
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
