// Package ellipse fits elliptical 2D Gaussian models to the intensity
// patches of segmented regions. The fitted parameters characterize a
// region's peak position, spread and orientation and drive the
// shape-based candidate classifiers.
package ellipse

import "math"

// Gaussian2D is an elliptical two-dimensional Gaussian intensity model.
// X indexes rows and Y indexes columns of the fitted patch, so XMean and
// YMean are region-local (row, column) coordinates.
type Gaussian2D struct {
	// Amplitude is the peak model intensity
	Amplitude float64

	// XMean, YMean locate the peak within the patch
	XMean float64
	YMean float64

	// XStddev, YStddev are the spreads along the two principal axes
	XStddev float64
	YStddev float64

	// Theta is the rotation angle in radians; shapes are invariant
	// under Theta mod pi
	Theta float64
}

// Eval returns the model intensity at patch coordinate (x, y).
func (g *Gaussian2D) Eval(x, y float64) float64 {
	sx2 := g.XStddev * g.XStddev
	sy2 := g.YStddev * g.YStddev
	if sx2 == 0 || sy2 == 0 {
		return 0
	}
	cos := math.Cos(g.Theta)
	sin := math.Sin(g.Theta)
	sin2 := math.Sin(2 * g.Theta)

	a := cos*cos/(2*sx2) + sin*sin/(2*sy2)
	b := sin2/(4*sx2) - sin2/(4*sy2)
	c := sin*sin/(2*sx2) + cos*cos/(2*sy2)

	dx := x - g.XMean
	dy := y - g.YMean
	return g.Amplitude * math.Exp(-(a*dx*dx + 2*b*dx*dy + c*dy*dy))
}

// AxisRatio returns |YStddev / XStddev|, the elongation measure used by
// the shape classifier.
func (g *Gaussian2D) AxisRatio() float64 {
	if g.XStddev == 0 {
		return math.Inf(1)
	}
	return math.Abs(g.YStddev / g.XStddev)
}

// ProjectedExtent returns XStddev * cos(Theta), the spread projected on
// the row axis.
func (g *Gaussian2D) ProjectedExtent() float64 {
	return g.XStddev * math.Cos(g.Theta)
}

// ThetaDegrees returns the rotation angle in degrees folded into
// [0, 180).
func (g *Gaussian2D) ThetaDegrees() float64 {
	deg := math.Mod(g.Theta*180/math.Pi, 180)
	if deg < 0 {
		deg += 180
	}
	return deg
}
