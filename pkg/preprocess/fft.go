package preprocess

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"frbsearch/internal/models"
)

// gaussianKernel builds a normalized 1D Gaussian kernel truncated at
// four standard deviations.
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
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
	return kernel
}

// fftConvolve1D convolves data with a centered kernel in the frequency
// domain. The signal is reflected at both ends so the output keeps the
// input length without wrap-around artifacts.
func fftConvolve1D(data, kernel []float64) []float64 {
	radius := len(kernel) / 2
	n := len(data) + 2*radius

	// Reflect-pad the signal
	padded := make([]float64, n)
	for i := 0; i < n; i++ {
		j := i - radius
		for j < 0 || j >= len(data) {
			if j < 0 {
				j = -j - 1
			}
			if j >= len(data) {
				j = 2*len(data) - j - 1
			}
		}
		padded[i] = data[j]
	}

	// Wrap the kernel so its center sits at index zero
	kpad := make([]float64, n)
	for i, w := range kernel {
		idx := i - radius
		if idx < 0 {
			idx += n
		}
		kpad[idx] = w
	}

	fft := fourier.NewFFT(n)
	dataCoeffs := fft.Coefficients(nil, padded)
	kernCoeffs := fft.Coefficients(nil, kpad)
	for i := range dataCoeffs {
		dataCoeffs[i] *= kernCoeffs[i]
	}

	out := fft.Sequence(nil, dataCoeffs)
	result := make([]float64, len(data))
	scale := 1 / float64(n)
	for i := range result {
		result[i] = out[i+radius] * scale
	}
	return result
}

// gaussianSmooth2D applies a separable Gaussian blur of the given sigma
// to the image, convolving rows then columns in the frequency domain.
func gaussianSmooth2D(img *models.Image, sigma float64) *models.Image {
	if sigma <= 0 {
		return img.Clone()
	}
	kernel := gaussianKernel(sigma)
	out := models.NewImage(img.Rows, img.Cols)

	row := make([]float64, img.Cols)
	for r := 0; r < img.Rows; r++ {
		copy(row, img.Data[r*img.Cols:(r+1)*img.Cols])
		smoothed := fftConvolve1D(row, kernel)
		copy(out.Data[r*img.Cols:(r+1)*img.Cols], smoothed)
	}

	col := make([]float64, img.Rows)
	for c := 0; c < img.Cols; c++ {
		for r := 0; r < img.Rows; r++ {
			col[r] = out.At(r, c)
		}
		smoothed := fftConvolve1D(col, kernel)
		for r := 0; r < img.Rows; r++ {
			out.Set(r, c, smoothed[r])
		}
	}
	return out
}
