// Package segment labels connected regions of non-zero intensity in a
// time-DM image and measures per-region geometric and intensity
// statistics used by the candidate classifiers.
package segment

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"frbsearch/internal/models"
	"frbsearch/pkg/stats"
)

// BBox is a half-open bounding box: rows in [MinRow, MaxRow), columns in
// [MinCol, MaxCol).
type BBox struct {
	MinRow, MinCol int
	MaxRow, MaxCol int
}

// Height returns the row extent of the box.
func (b BBox) Height() int { return b.MaxRow - b.MinRow }

// Width returns the column extent of the box.
func (b BBox) Width() int { return b.MaxCol - b.MinCol }

// Region is one maximal 8-connected set of non-zero pixels. It is
// immutable after segmentation and owned by the pass that produced it.
type Region struct {
	// Label is unique within one segmentation pass
	Label int

	// BBox is the bounding box of the region in image coordinates
	BBox BBox

	// Area is the number of pixels in the region
	Area int

	// MaxIntensity and MeanIntensity are taken from the original
	// intensity values restricted to the region mask
	MaxIntensity  float64
	MeanIntensity float64

	// Patch is the intensity sub-image over the bounding box with
	// pixels outside the region mask set to zero
	Patch *models.Image

	// Mask marks region membership within the bounding box, row-major
	Mask []bool

	// maxRow, maxCol locate the maximum-intensity pixel in image
	// coordinates
	maxRow, maxCol int
}

// MaxPosition returns the image coordinates of the region's
// maximum-intensity pixel.
func (r *Region) MaxPosition() (row, col int) {
	return r.maxRow, r.maxCol
}

// neighbor offsets for 8-connectivity, diagonals included
var neigh8 = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Segment labels the 8-connected components of non-zero pixels in mask
// and measures each component against the intensity values of intensity.
// mask and intensity may be the same image; when they differ (a
// thresholded working copy vs. the original values) the statistics come
// from intensity while connectivity comes from mask.
func Segment(mask, intensity *models.Image) []*Region {
	rows, cols := mask.Rows, mask.Cols
	labels := make([]int, rows*cols)
	for i := range labels {
		labels[i] = -1
	}

	var regions []*Region
	queue := make([]int, 0, 1024)
	next := 0

	for start, v := range mask.Data {
		if v == 0 || labels[start] >= 0 {
			continue
		}

		// Breadth-first flood fill from this pixel
		id := next
		next++
		queue = queue[:0]
		queue = append(queue, start)
		labels[start] = id

		box := BBox{
			MinRow: start / cols, MaxRow: start/cols + 1,
			MinCol: start % cols, MaxCol: start%cols + 1,
		}
		pixels := make([]int, 0, 64)

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			pixels = append(pixels, cur)

			cr, cc := cur/cols, cur%cols
			if cr < box.MinRow {
				box.MinRow = cr
			}
			if cr+1 > box.MaxRow {
				box.MaxRow = cr + 1
			}
			if cc < box.MinCol {
				box.MinCol = cc
			}
			if cc+1 > box.MaxCol {
				box.MaxCol = cc + 1
			}

			for _, d := range neigh8 {
				nr, nc := cr+d[0], cc+d[1]
				if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
					continue
				}
				idx := nr*cols + nc
				if mask.Data[idx] == 0 || labels[idx] >= 0 {
					continue
				}
				labels[idx] = id
				queue = append(queue, idx)
			}
		}

		regions = append(regions, measure(id, box, pixels, intensity))
	}

	return regions
}

// measure builds the Region record for one labeled component.
func measure(id int, box BBox, pixels []int, intensity *models.Image) *Region {
	h, w := box.Height(), box.Width()
	r := &Region{
		Label: id,
		BBox:  box,
		Area:  len(pixels),
		Patch: models.NewImage(h, w),
		Mask:  make([]bool, h*w),
	}

	values := make([]float64, 0, len(pixels))
	r.MaxIntensity = intensity.Data[pixels[0]]
	r.maxRow = pixels[0] / intensity.Cols
	r.maxCol = pixels[0] % intensity.Cols

	for _, p := range pixels {
		pr, pc := p/intensity.Cols, p%intensity.Cols
		v := intensity.Data[p]
		local := (pr-box.MinRow)*w + (pc - box.MinCol)
		r.Patch.Data[local] = v
		r.Mask[local] = true
		values = append(values, v)
		if v > r.MaxIntensity {
			r.MaxIntensity = v
			r.maxRow = pr
			r.maxCol = pc
		}
	}
	r.MeanIntensity = stat.Mean(values, nil)
	return r
}

// Rank orders regions for candidate reporting: descending by bounding-box
// height, then descending by width. The sort is stable so equal boxes
// keep construction order.
func Rank(regions []*Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		hi, hj := regions[i].BBox.Height(), regions[j].BBox.Height()
		if hi != hj {
			return hi > hj
		}
		return regions[i].BBox.Width() > regions[j].BBox.Width()
	})
}

// AtPercentile zeroes every pixel below the given percentile of the image
// value distribution and segments what remains, measuring regions against
// the original intensity values.
func AtPercentile(img *models.Image, percentile float64) []*Region {
	threshold := stats.Percentile(img.Data, percentile)
	mask := img.Clone()
	for i, v := range mask.Data {
		if v < threshold {
			mask.Data[i] = 0
		}
	}
	return Segment(mask, img)
}
