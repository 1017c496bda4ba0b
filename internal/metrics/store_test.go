package metrics

import (
	"context"
	"math"
	"testing"
)

func TestFitNoSamples(t *testing.T) {
	est := fit(nil, nil)
	if est.Slope != 0 || est.Intercept != 12 || est.SampleCount != 0 {
		t.Fatalf("empty fit should be the flat default: %+v", est)
	}
}

func TestFitSingleSample(t *testing.T) {
	est := fit([]float64{2.0}, []float64{7.5})
	if est.Slope != 0 || est.Intercept != 7.5 || est.SampleCount != 1 {
		t.Fatalf("single-sample fit should return its duration: %+v", est)
	}
}

func TestFitDegenerateVariance(t *testing.T) {
	est := fit([]float64{1.0, 1.0, 1.0}, []float64{4, 6, 8})
	if est.Slope != 0 || est.Intercept != 6 || est.SampleCount != 3 {
		t.Fatalf("constant-x fit should return the mean duration: %+v", est)
	}
}

func TestFitLinear(t *testing.T) {
	// duration = 3*mp + 2, exactly.
	xs := []float64{1, 2, 3, 4}
	ys := []float64{5, 8, 11, 14}
	est := fit(xs, ys)
	if math.Abs(est.Slope-3) > 1e-9 || math.Abs(est.Intercept-2) > 1e-9 {
		t.Fatalf("fit = %+v, want slope 3 intercept 2", est)
	}
	if est.SampleCount != 4 {
		t.Fatalf("sample count %d", est.SampleCount)
	}
}

func TestRecordAndEstimate(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	est, err := s.Estimate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if est.SampleCount != 0 || est.Intercept != 12 {
		t.Fatalf("fresh store should return the default estimate: %+v", est)
	}

	samples := []Sample{
		{Megapixels: 1, DurationS: 5, Backend: "depth_parallax", Preset: "Small"},
		{Megapixels: 2, DurationS: 8, Backend: "depth_parallax", Preset: "Small"},
		{Megapixels: 3, DurationS: 11, Backend: "depth_parallax", Preset: "Medium"},
	}
	for _, sm := range samples {
		if err := s.Record(ctx, sm); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	est, err = s.Estimate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if est.SampleCount != 3 {
		t.Fatalf("sample count %d, want 3", est.SampleCount)
	}
	if math.Abs(est.Slope-3) > 1e-9 || math.Abs(est.Intercept-2) > 1e-9 {
		t.Fatalf("estimate %+v, want slope 3 intercept 2", est)
	}
}
