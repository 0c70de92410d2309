package stats

import (
	"math"
	"testing"
)

// TestPercentile verifies the linear interpolation between order
// statistics and the clamping at the ends.
func TestPercentile(t *testing.T) {
	values := []float64{3, 1, 4, 2}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{100, 4},
		{50, 2.5},
		{25, 1.75},
		{75, 3.25},
	}
	for _, tc := range tests {
		if got := Percentile(values, tc.p); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}

	// The input order must be preserved.
	if values[0] != 3 {
		t.Error("Percentile sorted its input in place")
	}

	if got := Percentile(nil, 50); !math.IsNaN(got) {
		t.Errorf("Percentile of empty slice = %v, want NaN", got)
	}
}

// TestMedian verifies odd and even length samples.
func TestMedian(t *testing.T) {
	if got := Median([]float64{5, 1, 3}); got != 3 {
		t.Errorf("Odd median = %v, want 3", got)
	}
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("Even median = %v, want 2.5", got)
	}
}

// TestMADStd verifies the Gaussian consistency factor and the
// insensitivity to a gross outlier.
func TestMADStd(t *testing.T) {
	values := []float64{-2, -1, 0, 1, 2}
	// Median 0, absolute deviations {2,1,0,1,2}, MAD 1.
	if got := MADStd(values); math.Abs(got-1.482602218505602) > 1e-12 {
		t.Errorf("MADStd = %v, want 1.4826...", got)
	}

	clean := MADStd(values)
	polluted := MADStd(append([]float64{1000}, values...))
	if polluted > 3*clean {
		t.Errorf("MADStd jumped from %v to %v on one outlier", clean, polluted)
	}
}

// TestBiweightLocation verifies the estimate stays near the bulk of the
// sample when an outlier would drag the plain mean away.
func TestBiweightLocation(t *testing.T) {
	values := []float64{9.8, 9.9, 10.0, 10.1, 10.2, 100}

	got := BiweightLocation(values)
	if math.Abs(got-10) > 0.2 {
		t.Errorf("BiweightLocation = %v, want near 10", got)
	}

	// Degenerate sample collapses to the median.
	if got := BiweightLocation([]float64{7, 7, 7}); got != 7 {
		t.Errorf("Constant sample = %v, want 7", got)
	}
}

// TestMovingAverage verifies the flat window and edge shrinking.
func TestMovingAverage(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	out := MovingAverage(data, 3)
	want := []float64{1.5, 2, 3, 4, 4.5}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("MovingAverage[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	out = MovingAverage(data, 1)
	for i := range data {
		if out[i] != data[i] {
			t.Errorf("Window 1 changed data at %d", i)
		}
	}
}

// TestMedianFilter verifies spike removal and the zero padding at the
// edges.
func TestMedianFilter(t *testing.T) {
	data := []float64{1, 1, 9, 1, 1}

	out := MedianFilter(data, 3)
	if out[2] != 1 {
		t.Errorf("Spike survived: %v", out[2])
	}
	// Edge windows include a zero pad value.
	if out[0] != 1 {
		t.Errorf("Left edge = %v, want 1", out[0])
	}

	// Even widths round up to the next odd width.
	a := MedianFilter(data, 3)
	b := MedianFilter(data, 2)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Width 2 and 3 differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

// TestGaussianSmooth verifies normalization on a constant signal and
// the non-positive sigma passthrough.
func TestGaussianSmooth(t *testing.T) {
	constant := []float64{4, 4, 4, 4, 4, 4, 4, 4}
	out := GaussianSmooth(constant, 1.5)
	for i, v := range out {
		if math.Abs(v-4) > 1e-12 {
			t.Errorf("Constant signal changed at %d: %v", i, v)
		}
	}

	data := []float64{1, 2, 3}
	out = GaussianSmooth(data, 0)
	for i := range data {
		if out[i] != data[i] {
			t.Errorf("Sigma 0 changed data at %d", i)
		}
	}
}

// TestFindPeaks verifies a clear peak is found near its true location
// and a flat profile yields none.
func TestFindPeaks(t *testing.T) {
	data := make([]float64, 200)
	for i := range data {
		data[i] = 1 + 0.01*math.Sin(float64(i))
	}
	for i := 95; i <= 105; i++ {
		d := float64(i - 100)
		data[i] += 10 * math.Exp(-d*d/8)
	}

	peaks := FindPeaks(data, 3, 3, 2)
	if len(peaks) == 0 {
		t.Fatal("No peaks found")
	}
	for _, p := range peaks {
		if p < 90 || p > 110 {
			t.Errorf("Spurious peak at %d", p)
		}
	}

	if peaks := FindPeaks(make([]float64, 100), 3, 3, 2); len(peaks) != 0 {
		t.Errorf("Flat profile produced peaks at %v", peaks)
	}
}
