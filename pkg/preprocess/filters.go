package preprocess

import (
	"gonum.org/v1/gonum/stat"

	"frbsearch/internal/models"
	"frbsearch/pkg/stats"
)

// diskOffsets returns the relative coordinates of a disk-shaped
// neighborhood of the given radius.
func diskOffsets(radius int) [][2]int {
	var offsets [][2]int
	r2 := radius * radius
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			if dr*dr+dc*dc <= r2 {
				offsets = append(offsets, [2]int{dr, dc})
			}
		}
	}
	return offsets
}

// reflectIndex folds an out-of-range index back into [0, n).
func reflectIndex(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// diskFilter computes a local statistic over a disk neighborhood of
// every pixel, reflecting the image at its borders.
func diskFilter(img *models.Image, radius int, reduce func([]float64) float64) *models.Image {
	offsets := diskOffsets(radius)
	out := models.NewImage(img.Rows, img.Cols)
	window := make([]float64, len(offsets))

	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			for i, d := range offsets {
				rr := reflectIndex(r+d[0], img.Rows)
				cc := reflectIndex(c+d[1], img.Cols)
				window[i] = img.At(rr, cc)
			}
			out.Set(r, c, reduce(window))
		}
	}
	return out
}

// diskMean smooths the image with the mean over a disk neighborhood.
func diskMean(img *models.Image, radius int) *models.Image {
	return diskFilter(img, radius, func(w []float64) float64 {
		return stat.Mean(w, nil)
	})
}

// diskMedian smooths the image with the median over a disk neighborhood.
func diskMedian(img *models.Image, radius int) *models.Image {
	return diskFilter(img, radius, stats.Median)
}

// erode replaces every pixel with the minimum over the structuring
// kernel footprint; dilate uses the maximum. Opening is erosion followed
// by dilation and removes structures smaller than the kernel.
func erode(img *models.Image, kernel [][]int) *models.Image {
	return morph(img, kernel, func(a, b float64) bool { return b < a })
}

func dilate(img *models.Image, kernel [][]int) *models.Image {
	return morph(img, kernel, func(a, b float64) bool { return b > a })
}

// Opening applies grayscale morphological opening with the given
// structuring kernel of ones and zeros.
func Opening(img *models.Image, kernel [][]int) *models.Image {
	return dilate(erode(img, kernel), kernel)
}

func morph(img *models.Image, kernel [][]int, better func(cur, candidate float64) bool) *models.Image {
	kh := len(kernel)
	kw := 0
	if kh > 0 {
		kw = len(kernel[0])
	}
	if kh == 0 || kw == 0 {
		return img.Clone()
	}
	ch, cw := kh/2, kw/2

	out := models.NewImage(img.Rows, img.Cols)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			first := true
			extreme := 0.0
			for kr := 0; kr < kh; kr++ {
				for kc := 0; kc < kw; kc++ {
					if kernel[kr][kc] == 0 {
						continue
					}
					rr := reflectIndex(r+kr-ch, img.Rows)
					cc := reflectIndex(c+kc-cw, img.Cols)
					v := img.At(rr, cc)
					if first || better(extreme, v) {
						extreme = v
						first = false
					}
				}
			}
			out.Set(r, c, extreme)
		}
	}
	return out
}
