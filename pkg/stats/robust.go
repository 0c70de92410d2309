// Package stats provides the robust statistics and 1D signal helpers
// shared across the detection pipeline.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between order statistics.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// Median returns the middle order statistic of values.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// MADStd estimates the standard deviation of a distribution from the
// median absolute deviation, which is insensitive to outliers.
func MADStd(values []float64) float64 {
	med := Median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	// Scale factor for consistency with a Gaussian sigma
	return 1.482602218505602 * Median(dev)
}

// BiweightLocation estimates the center of a distribution in the
// presence of outliers using Tukey's biweight.
func BiweightLocation(values []float64) float64 {
	med := Median(values)
	madScale := 6 * Median(absDeviations(values, med))
	if madScale == 0 {
		return med
	}

	var num, den float64
	for _, v := range values {
		u := (v - med) / madScale
		if u*u >= 1 {
			continue
		}
		w := (1 - u*u) * (1 - u*u)
		num += (v - med) * w
		den += w
	}
	if den == 0 {
		return med
	}
	return med + num/den
}

// RobustGaussianParams returns outlier-insensitive estimates of the mean
// and standard deviation of a roughly Gaussian sample.
func RobustGaussianParams(values []float64) (mean, std float64) {
	return BiweightLocation(values), MADStd(values)
}

func absDeviations(values []float64, center float64) []float64 {
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - center)
	}
	return dev
}

// MovingAverage smooths data with a flat window of the given size,
// producing an output of the same length.
func MovingAverage(data []float64, windowSize int) []float64 {
	if windowSize < 1 {
		windowSize = 1
	}
	out := make([]float64, len(data))
	half := windowSize / 2
	for i := range data {
		lo := i - half
		hi := lo + windowSize
		if lo < 0 {
			lo = 0
		}
		if hi > len(data) {
			hi = len(data)
		}
		out[i] = stat.Mean(data[lo:hi], nil)
	}
	return out
}

// MedianFilter applies a sliding median of odd width to data, padding
// the edges with zeros so the output has the same length.
func MedianFilter(data []float64, width int) []float64 {
	if width < 1 {
		width = 1
	}
	if width%2 == 0 {
		width++
	}
	half := width / 2
	out := make([]float64, len(data))
	window := make([]float64, 0, width)

	for i := range data {
		window = window[:0]
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= len(data) {
				window = append(window, 0)
			} else {
				window = append(window, data[j])
			}
		}
		out[i] = Median(window)
	}
	return out
}

// GaussianSmooth convolves data with a Gaussian kernel of the given
// sigma, reflecting the signal at the boundaries.
func GaussianSmooth(data []float64, sigma float64) []float64 {
	if sigma <= 0 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	out := make([]float64, len(data))
	n := len(data)
	for i := range data {
		acc := 0.0
		for k, w := range kernel {
			j := i + k - radius
			// reflect at the boundaries
			for j < 0 || j >= n {
				if j < 0 {
					j = -j - 1
				}
				if j >= n {
					j = 2*n - j - 1
				}
			}
			acc += w * data[j]
		}
		out[i] = acc
	}
	return out
}

// FindPeaks locates significant peaks in a 1D profile. The data is
// median filtered with window medWidth, smoothed with a Gaussian of
// width gaussWidth, and indexes where the smoothed value exceeds the
// smoothed mean by more than nStd standard deviations are returned.
func FindPeaks(data []float64, nStd float64, medWidth int, gaussWidth float64) []int {
	filtered := MedianFilter(data, medWidth)
	smoothed := GaussianSmooth(filtered, gaussWidth)

	mean := stat.Mean(smoothed, nil)
	std := math.Sqrt(stat.Variance(smoothed, nil))

	var peaks []int
	for i, v := range smoothed {
		if v-mean > nStd*std {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
