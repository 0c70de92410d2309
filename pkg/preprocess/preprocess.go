// Package preprocess filters a raw time-DM image before segmentation.
// Oversized high-intensity artifacts (broadband RFI) are blanked out of
// the working image, and sub-threshold noise is suppressed by local
// smoothing, percentile thresholding and morphological opening.
package preprocess

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"frbsearch/internal/models"
	"frbsearch/pkg/segment"
	"frbsearch/pkg/stats"
)

// Statistic selects the local smoothing statistic.
type Statistic string

const (
	// StatMean smooths with the mean over a disk neighborhood
	StatMean Statistic = "mean"

	// StatMedian smooths with the median over a disk neighborhood
	StatMedian Statistic = "median"

	// StatGauss smooths with a Gaussian blur of sigma DiskSize
	StatGauss Statistic = "gauss"
)

// Options configures the preprocessing passes.
type Options struct {
	// DiskSize is the smoothing neighborhood radius (or Gaussian
	// sigma for StatGauss)
	DiskSize int

	// ThresholdBigPercentile thresholds the first smoothing pass that
	// locates oversized artifacts, in [0, 100]
	ThresholdBigPercentile float64

	// ThresholdPercentile thresholds the final pass; zero means use
	// ThresholdBigPercentile
	ThresholdPercentile float64

	// Statistic is one of mean, median or gauss
	Statistic Statistic

	// OpeningKernel is the structuring element for morphological
	// opening, as rows of ones and zeros
	OpeningKernel [][]int

	// MaxRegionSize is the pixel count above which a connected region
	// found in the first pass is blanked from the working image
	MaxRegionSize int
}

// DefaultOptions returns the preprocessing defaults.
func DefaultOptions() Options {
	return Options{
		DiskSize:               3,
		ThresholdBigPercentile: 97.5,
		Statistic:              StatMean,
		OpeningKernel: [][]int{
			{1, 1, 1},
			{1, 1, 1},
			{1, 1, 1},
		},
		MaxRegionSize: 25000,
	}
}

// Validate rejects unrecognized statistic keys and malformed threshold
// bounds before any processing begins.
func (o Options) Validate() error {
	switch o.Statistic {
	case StatMean, StatMedian, StatGauss:
	default:
		return fmt.Errorf("unrecognized statistic %q: must be mean, median or gauss", o.Statistic)
	}
	if o.ThresholdBigPercentile < 0 || o.ThresholdBigPercentile > 100 {
		return fmt.Errorf("thresholdBigPercentile %v out of range [0, 100]", o.ThresholdBigPercentile)
	}
	if o.ThresholdPercentile < 0 || o.ThresholdPercentile > 100 {
		return fmt.Errorf("thresholdPercentile %v out of range [0, 100]", o.ThresholdPercentile)
	}
	return nil
}

// Run filters the image in two passes. The first pass smooths,
// thresholds at ThresholdBigPercentile and opens the image, then blanks
// the bounding box of every connected region larger than MaxRegionSize
// out of the working copy using the global mean. The second pass repeats
// smoothing, thresholding (at ThresholdPercentile) and opening on the
// cleaned image and returns the result. The input image itself is never
// modified.
func Run(img *models.Image, opts Options) (*models.Image, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(opts.OpeningKernel) == 0 {
		opts.OpeningKernel = DefaultOptions().OpeningKernel
	}

	work := img.Clone()

	// First pass: locate and blank oversized artifacts
	smoothed := smooth(work, opts)
	applyPercentileFloor(smoothed, opts.ThresholdBigPercentile)
	opened := Opening(smoothed, opts.OpeningKernel)

	regions := segment.Segment(opened, opened)
	blankOversized(work, regions, opts.MaxRegionSize)

	// Second pass: final smoothing, threshold and opening
	pct := opts.ThresholdPercentile
	if pct == 0 {
		pct = opts.ThresholdBigPercentile
	}
	smoothed = smooth(work, opts)
	applyPercentileFloor(smoothed, pct)
	return Opening(smoothed, opts.OpeningKernel), nil
}

// blankOversized overwrites the bounding box of every region larger
// than maxSize with the global mean of the working image. The mean is
// recomputed after each blank, so later fills reflect earlier ones.
func blankOversized(work *models.Image, regions []*segment.Region, maxSize int) {
	for _, reg := range regions {
		if reg.Area <= maxSize {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"area": reg.Area,
			"bbox": fmt.Sprintf("[%d:%d, %d:%d]", reg.BBox.MinRow, reg.BBox.MaxRow, reg.BBox.MinCol, reg.BBox.MaxCol),
		}).Info("blanking oversized region")
		work.FillRect(reg.BBox.MinRow, reg.BBox.MinCol, reg.BBox.MaxRow, reg.BBox.MaxCol, work.Mean())
	}
}

// smooth dispatches on the configured statistic.
func smooth(img *models.Image, opts Options) *models.Image {
	switch opts.Statistic {
	case StatMedian:
		return diskMedian(img, opts.DiskSize)
	case StatGauss:
		return gaussianSmooth2D(img, float64(opts.DiskSize))
	default:
		return diskMean(img, opts.DiskSize)
	}
}

// applyPercentileFloor zeroes every pixel below the given percentile of
// the image value distribution, in place.
func applyPercentileFloor(img *models.Image, percentile float64) {
	threshold := stats.Percentile(img.Data, percentile)
	for i, v := range img.Data {
		if v < threshold {
			img.Data[i] = 0
		}
	}
}
