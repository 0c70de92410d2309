package preprocess

import (
	"math"
	"testing"

	"frbsearch/internal/models"
	"frbsearch/pkg/segment"
)

// testPattern builds a deterministic structured image so runs are
// reproducible.
func testPattern(rows, cols int) *models.Image {
	img := models.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.Set(r, c, 0.5+0.4*math.Sin(float64(r)*0.7)*math.Cos(float64(c)*0.3))
		}
	}
	return img
}

// TestRunDeterminism verifies that preprocessing twice with identical
// parameters yields identical output and leaves the input untouched.
func TestRunDeterminism(t *testing.T) {
	img := testPattern(40, 60)
	img.Set(20, 30, 25)
	original := img.Clone()

	opts := DefaultOptions()
	first, err := Run(img, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := Run(img, opts)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("Output differs at pixel %d: %v vs %v", i, first.Data[i], second.Data[i])
		}
	}
	for i := range img.Data {
		if img.Data[i] != original.Data[i] {
			t.Fatalf("Input image was modified at pixel %d", i)
		}
	}
}

// TestRunRejectsUnknownStatistic verifies the configuration error fires
// before any processing.
func TestRunRejectsUnknownStatistic(t *testing.T) {
	opts := DefaultOptions()
	opts.Statistic = "mode"

	if _, err := Run(testPattern(10, 10), opts); err == nil {
		t.Fatal("Expected an error for unknown statistic")
	}
}

// TestRunAllStatistics verifies the three recognized statistics all
// process without error.
func TestRunAllStatistics(t *testing.T) {
	img := testPattern(30, 30)
	for _, statistic := range []Statistic{StatMean, StatMedian, StatGauss} {
		opts := DefaultOptions()
		opts.Statistic = statistic
		if _, err := Run(img, opts); err != nil {
			t.Errorf("Run with %s failed: %v", statistic, err)
		}
	}
}

// TestRunBlanksOversizedRegions verifies that a dominating
// high-intensity block is suppressed rather than surviving as the
// brightest structure.
func TestRunBlanksOversizedRegions(t *testing.T) {
	img := testPattern(100, 100)
	img.FillRect(10, 10, 40, 40, 100)

	opts := DefaultOptions()
	opts.ThresholdBigPercentile = 80
	opts.MaxRegionSize = 100

	filtered, err := Run(img, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	max, _, _ := filtered.Max()
	if max > 50 {
		t.Errorf("Oversized block survived with intensity %v", max)
	}
}

// TestBlankOversizedSequentialMeans verifies each blank uses the mean
// of the image as mutated by the blanks before it.
func TestBlankOversizedSequentialMeans(t *testing.T) {
	img := models.NewImage(4, 4)
	img.FillRect(0, 0, 4, 2, 40)
	img.FillRect(0, 3, 4, 4, 8)

	regions := segment.Segment(img, img)
	if len(regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(regions))
	}

	blankOversized(img, regions, 3)

	// First blank: mean of (8*40 + 4*8)/16 = 22 fills the left block.
	if img.At(0, 0) != 22 {
		t.Errorf("First fill %v, want 22", img.At(0, 0))
	}
	// Second blank sees the first: (8*22 + 4*8)/16 = 13.
	if img.At(0, 3) != 13 {
		t.Errorf("Second fill %v, want 13", img.At(0, 3))
	}
}

// TestOpeningRemovesIsolatedPixels verifies morphological opening
// erases structures smaller than the kernel but keeps solid blocks.
func TestOpeningRemovesIsolatedPixels(t *testing.T) {
	img := models.NewImage(12, 12)
	img.Set(2, 2, 5)
	img.FillRect(6, 6, 10, 10, 5)

	kernel := [][]int{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	opened := Opening(img, kernel)

	if opened.At(2, 2) != 0 {
		t.Errorf("Isolated pixel survived opening: %v", opened.At(2, 2))
	}
	if opened.At(7, 7) != 5 {
		t.Errorf("Block interior lost in opening: %v", opened.At(7, 7))
	}
}

// TestDiskFilterConstant verifies disk statistics preserve a constant
// image.
func TestDiskFilterConstant(t *testing.T) {
	img := models.NewImage(10, 10)
	for i := range img.Data {
		img.Data[i] = 3
	}

	for name, f := range map[string]func(*models.Image, int) *models.Image{
		"mean":   diskMean,
		"median": diskMedian,
	} {
		out := f(img, 2)
		for i, v := range out.Data {
			if math.Abs(v-3) > 1e-12 {
				t.Fatalf("%s filter broke constant image at %d: %v", name, i, v)
			}
		}
	}
}

// TestGaussianSmoothPreservesMass verifies the FFT convolution keeps a
// constant image constant, which pins the kernel normalization.
func TestGaussianSmoothPreservesMass(t *testing.T) {
	img := models.NewImage(16, 24)
	for i := range img.Data {
		img.Data[i] = 2
	}

	out := gaussianSmooth2D(img, 2)
	for i, v := range out.Data {
		if math.Abs(v-2) > 1e-9 {
			t.Fatalf("Constant image changed at %d: %v", i, v)
		}
	}
}

// TestGaussianSmoothSpreadsImpulse verifies the blur actually spreads
// energy away from a point source.
func TestGaussianSmoothSpreadsImpulse(t *testing.T) {
	img := models.NewImage(21, 21)
	img.Set(10, 10, 1)

	out := gaussianSmooth2D(img, 2)

	if out.At(10, 10) >= 1 {
		t.Errorf("Peak not reduced: %v", out.At(10, 10))
	}
	if out.At(10, 12) <= 0 {
		t.Errorf("Energy did not spread: %v", out.At(10, 12))
	}

	var sum float64
	for _, v := range out.Data {
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("Total mass %v, want 1", sum)
	}
}

// BenchmarkRun measures the full preprocessing pipeline.
func BenchmarkRun(b *testing.B) {
	img := testPattern(128, 256)
	opts := DefaultOptions()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Run(img, opts); err != nil {
			b.Fatalf("Run failed: %v", err)
		}
	}
}
