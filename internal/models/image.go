package models

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Image is a two-dimensional intensity map stored in row-major order.
// Depending on the pipeline stage the row axis indexes DM trials or
// frequency channels and the column axis indexes time samples.
type Image struct {
	// Data holds the intensity values as a 1D array in row-major order
	Data []float64

	// Rows is the number of rows (DM trials)
	Rows int

	// Cols is the number of columns (time samples)
	Cols int
}

// NewImage allocates a zero-filled image with the given dimensions.
func NewImage(rows, cols int) *Image {
	return &Image{
		Data: make([]float64, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// At returns the intensity at the given row and column.
func (im *Image) At(row, col int) float64 {
	return im.Data[row*im.Cols+col]
}

// Set stores an intensity value at the given row and column.
func (im *Image) Set(row, col int, v float64) {
	im.Data[row*im.Cols+col] = v
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	out := NewImage(im.Rows, im.Cols)
	copy(out.Data, im.Data)
	return out
}

// Mean returns the mean intensity over the whole image.
func (im *Image) Mean() float64 {
	return stat.Mean(im.Data, nil)
}

// Max returns the maximum intensity and its position.
func (im *Image) Max() (v float64, row, col int) {
	v = math.Inf(-1)
	for i, x := range im.Data {
		if x > v {
			v = x
			row = i / im.Cols
			col = i % im.Cols
		}
	}
	return v, row, col
}

// FillRect overwrites the half-open rectangle [r0,r1)x[c0,c1) with v.
// Out-of-range bounds are clipped to the image extent.
func (im *Image) FillRect(r0, c0, r1, c1 int, v float64) {
	if r0 < 0 {
		r0 = 0
	}
	if c0 < 0 {
		c0 = 0
	}
	if r1 > im.Rows {
		r1 = im.Rows
	}
	if c1 > im.Cols {
		c1 = im.Cols
	}
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			im.Data[r*im.Cols+c] = v
		}
	}
}
