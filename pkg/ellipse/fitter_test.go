package ellipse

import (
	"errors"
	"math"
	"testing"

	"frbsearch/internal/models"
)

// TestFitConstantPatch verifies that a patch with a single intensity
// level has no usable signal.
func TestFitConstantPatch(t *testing.T) {
	patch := models.NewImage(5, 5)
	for i := range patch.Data {
		patch.Data[i] = 3
	}

	_, err := Fit(patch)
	if !errors.Is(err, ErrNoIntensityRegion) {
		t.Fatalf("Expected ErrNoIntensityRegion, got %v", err)
	}
}

// TestFitBackgroundOnlyPatch verifies the error when background
// subtraction removes everything: with exactly two intensity levels the
// higher one is treated as background.
func TestFitBackgroundOnlyPatch(t *testing.T) {
	patch := models.NewImage(4, 4)
	patch.Set(1, 1, 5)
	patch.Set(2, 2, 5)

	_, err := Fit(patch)
	if !errors.Is(err, ErrNoIntensityRegion) {
		t.Fatalf("Expected ErrNoIntensityRegion, got %v", err)
	}
}

// synthetic renders a Gaussian model on a patch, zeroing values below
// floor so the blob has compact support like a segmented region.
func synthetic(rows, cols int, g Gaussian2D, floor float64) *models.Image {
	patch := models.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := g.Eval(float64(r), float64(c))
			if v < floor {
				v = 0
			}
			patch.Set(r, c, v)
		}
	}
	return patch
}

// TestFitRecoversGaussian verifies parameter recovery on a clean
// synthetic blob.
func TestFitRecoversGaussian(t *testing.T) {
	truth := Gaussian2D{
		Amplitude: 8,
		XMean:     10, YMean: 11,
		XStddev: 2.5, YStddev: 1.2,
		Theta: 0,
	}
	patch := synthetic(21, 23, truth, 1e-4)

	result, err := Fit(patch)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	g := result.Model

	if math.Abs(g.Amplitude-truth.Amplitude) > 0.5 {
		t.Errorf("Amplitude %v, want ~%v", g.Amplitude, truth.Amplitude)
	}
	if math.Abs(g.XMean-truth.XMean) > 0.5 {
		t.Errorf("XMean %v, want ~%v", g.XMean, truth.XMean)
	}
	if math.Abs(g.YMean-truth.YMean) > 0.5 {
		t.Errorf("YMean %v, want ~%v", g.YMean, truth.YMean)
	}
	if math.Abs(math.Abs(g.XStddev)-truth.XStddev) > 0.5 {
		t.Errorf("XStddev %v, want ~%v", g.XStddev, truth.XStddev)
	}
	if math.Abs(math.Abs(g.YStddev)-truth.YStddev) > 0.4 {
		t.Errorf("YStddev %v, want ~%v", g.YStddev, truth.YStddev)
	}
	if result.Cost > 1 {
		t.Errorf("Residual cost %v unexpectedly high", result.Cost)
	}
}

// TestFitAxisAssignment verifies the fitter lands in the mode where
// XStddev spans rows: for a row-elongated blob the larger spread must
// come back on the X axis with the angle near zero, not the equivalent
// swapped solution rotated a quarter turn.
func TestFitAxisAssignment(t *testing.T) {
	truth := Gaussian2D{
		Amplitude: 8,
		XMean:     10, YMean: 11,
		XStddev: 2.5, YStddev: 1.2,
		Theta: 0,
	}
	patch := synthetic(21, 23, truth, 1e-4)

	result, err := Fit(patch)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	g := result.Model

	if math.Abs(g.XStddev) <= math.Abs(g.YStddev) {
		t.Errorf("Row spread %v not larger than column spread %v", g.XStddev, g.YStddev)
	}
	if math.Abs(g.Theta) > math.Pi {
		t.Errorf("Angle %v left unwrapped", g.Theta)
	}
	// An axis-aligned blob must fold near 0 or 180 degrees
	if deg := g.ThetaDegrees(); deg > 20 && deg < 160 {
		t.Errorf("Angle %v degrees, want near the row axis", deg)
	}
}

// TestFitSinglePixelSignal verifies a patch whose signal is one pixel
// above half max still fits with usable spreads.
func TestFitSinglePixelSignal(t *testing.T) {
	patch := models.NewImage(3, 3)
	patch.Set(0, 0, 1)
	patch.Set(1, 1, 5)

	result, err := Fit(patch)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	g := result.Model

	if g.Amplitude <= 0 {
		t.Errorf("Amplitude %v, want positive", g.Amplitude)
	}
	if math.Abs(g.XStddev) < 1e-6 || math.Abs(g.YStddev) < 1e-6 {
		t.Errorf("Degenerate spreads (%v, %v)", g.XStddev, g.YStddev)
	}
}

// TestFitMeanStaysInPatch verifies the mean-position bound: even for a
// blob peaking at the patch edge the fitted center stays inside.
func TestFitMeanStaysInPatch(t *testing.T) {
	truth := Gaussian2D{
		Amplitude: 5,
		XMean:     0, YMean: 0,
		XStddev: 2, YStddev: 2,
	}
	patch := synthetic(9, 9, truth, 1e-4)

	result, err := Fit(patch)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	g := result.Model

	if g.XMean < 0 || g.XMean > 9 || g.YMean < 0 || g.YMean > 9 {
		t.Errorf("Fitted mean (%v, %v) escaped the patch", g.XMean, g.YMean)
	}
}

// TestGaussian2DEval checks the model against hand-computed values.
func TestGaussian2DEval(t *testing.T) {
	g := Gaussian2D{Amplitude: 4, XMean: 2, YMean: 3, XStddev: 1, YStddev: 2, Theta: 0}

	if v := g.Eval(2, 3); math.Abs(v-4) > 1e-12 {
		t.Errorf("Peak value %v, want 4", v)
	}
	// One x-sigma off the peak along the row axis
	want := 4 * math.Exp(-0.5)
	if v := g.Eval(3, 3); math.Abs(v-want) > 1e-12 {
		t.Errorf("Value at one sigma %v, want %v", v, want)
	}
}

// TestDerivedQuantities checks axis ratio, projected extent and the
// angle folding used by the shape classifier.
func TestDerivedQuantities(t *testing.T) {
	g := Gaussian2D{XStddev: 4, YStddev: 1, Theta: 7 * math.Pi / 4}

	if ratio := g.AxisRatio(); math.Abs(ratio-0.25) > 1e-12 {
		t.Errorf("AxisRatio %v, want 0.25", ratio)
	}
	want := 4 * math.Cos(7*math.Pi/4)
	if ext := g.ProjectedExtent(); math.Abs(ext-want) > 1e-12 {
		t.Errorf("ProjectedExtent %v, want %v", ext, want)
	}
	// 315 degrees folds to 135
	if deg := g.ThetaDegrees(); math.Abs(deg-135) > 1e-9 {
		t.Errorf("ThetaDegrees %v, want 135", deg)
	}

	neg := Gaussian2D{Theta: -math.Pi / 4}
	if deg := neg.ThetaDegrees(); math.Abs(deg-135) > 1e-9 {
		t.Errorf("ThetaDegrees for -45 %v, want 135", deg)
	}
}

// BenchmarkFit measures the fitter on a typical region-sized patch.
func BenchmarkFit(b *testing.B) {
	truth := Gaussian2D{
		Amplitude: 8, XMean: 10, YMean: 10,
		XStddev: 3, YStddev: 1.5,
	}
	patch := synthetic(21, 21, truth, 1e-4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Fit(patch); err != nil {
			b.Fatalf("Fit failed: %v", err)
		}
	}
}
