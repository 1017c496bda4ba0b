package engine

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func TestFrameOffsetBounds(t *testing.T) {
	kinds := []string{"swipe", "shake", "rotate", "rotate_push"}
	for _, kind := range kinds {
		for i := 0; i < 60; i++ {
			dx, dy, zoom := frameOffset(kind, i, 60, 1.0, 0.4)
			if math.Abs(dx) > 1.0001 || math.Abs(dy) > 1.0001 {
				t.Fatalf("%s frame %d: offset (%f, %f) out of range", kind, i, dx, dy)
			}
			if zoom < 0 || zoom > 0.4001 {
				t.Fatalf("%s frame %d: zoom %f out of range", kind, i, zoom)
			}
		}
	}
}

func TestFrameOffsetStartsAtOrigin(t *testing.T) {
	for _, kind := range []string{"swipe", "shake", "rotate", "rotate_push"} {
		dx, dy, _ := frameOffset(kind, 0, 60, 1.0, 0.4)
		if math.Abs(dx) > 1e-9 || math.Abs(dy) > 1e-9 {
			t.Errorf("%s: first frame offset (%f, %f), want origin", kind, dx, dy)
		}
	}
}

func TestParallaxWarpFrameCount(t *testing.T) {
	src := testImage(16, 12)
	depth := syntheticDepth(src)
	spec := TrajectorySpec{
		Kind:         "swipe",
		FrameCount:   8,
		NumRepeats:   1,
		MotionScale:  0.2,
		MaxDisparity: 0.08,
	}
	frames, err := ParallaxWarp(context.Background(), src, depth, spec, nil)
	if err != nil {
		t.Fatalf("ParallaxWarp: %v", err)
	}
	if len(frames) != 8 {
		t.Fatalf("got %d frames, want 8", len(frames))
	}
	for i, f := range frames {
		if b := f.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
			t.Fatalf("frame %d has bounds %v", i, b)
		}
	}
}

func TestParallaxWarpProgress(t *testing.T) {
	src := testImage(8, 8)
	depth := syntheticDepth(src)
	spec := TrajectorySpec{Kind: "rotate", FrameCount: 5, MotionScale: 0.2, MaxDisparity: 0.08}

	var calls []int
	_, err := ParallaxWarp(context.Background(), src, depth, spec, func(done, total int) {
		if total != 5 {
			t.Fatalf("total = %d, want 5", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 5 {
		t.Fatalf("progress called %d times, want 5", len(calls))
	}
	for i, done := range calls {
		if done != i+1 {
			t.Fatalf("progress out of order: %v", calls)
		}
	}
}

func TestParallaxWarpCancellation(t *testing.T) {
	src := testImage(8, 8)
	depth := syntheticDepth(src)
	spec := TrajectorySpec{Kind: "swipe", FrameCount: 100, MotionScale: 0.2, MaxDisparity: 0.08}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := ParallaxWarp(ctx, src, depth, spec, func(done, total int) {
		if done == 3 {
			cancel()
		}
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if ctx.Err() == nil {
		t.Fatal("context should be cancelled")
	}
}

func TestParallaxWarpShapeMismatch(t *testing.T) {
	src := testImage(8, 8)
	depth := &DepthMap{Width: 4, Height: 4, Inv: make([]float32, 16)}
	spec := TrajectorySpec{Kind: "swipe", FrameCount: 4, MotionScale: 0.2, MaxDisparity: 0.08}
	if _, err := ParallaxWarp(context.Background(), src, depth, spec, nil); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestWarpFrameIdentityAtZeroShift(t *testing.T) {
	src := testImage(10, 10)
	depth := syntheticDepth(src)
	out := warpFrame(src, depth, 0, 0, 0)
	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatal("zero shift should reproduce the source exactly")
		}
	}
}
