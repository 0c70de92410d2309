package segment

import (
	"math"
	"sort"
)

// Geometric and intensity-weighted properties of a region, used to build
// the feature vectors consumed by the learned candidate classifier.

// Extent returns the ratio of region area to bounding-box area.
func (r *Region) Extent() float64 {
	return float64(r.Area) / float64(r.BBox.Height()*r.BBox.Width())
}

// maskCentroid returns the centroid of the region mask in bbox-local
// coordinates.
func (r *Region) maskCentroid() (cr, cc float64) {
	w := r.BBox.Width()
	for i, in := range r.Mask {
		if !in {
			continue
		}
		cr += float64(i / w)
		cc += float64(i % w)
	}
	n := float64(r.Area)
	return cr / n, cc / n
}

// maskCentralMoments returns the second-order central moments of the
// mask normalized by the region area.
func (r *Region) maskCentralMoments() (mu20, mu11, mu02 float64) {
	cr, cc := r.maskCentroid()
	w := r.BBox.Width()
	for i, in := range r.Mask {
		if !in {
			continue
		}
		dr := float64(i/w) - cr
		dc := float64(i%w) - cc
		mu20 += dr * dr
		mu11 += dr * dc
		mu02 += dc * dc
	}
	n := float64(r.Area)
	return mu20 / n, mu11 / n, mu02 / n
}

// covarianceEigvals returns the eigenvalues of the mask coordinate
// covariance matrix, largest first.
func (r *Region) covarianceEigvals() (l1, l2 float64) {
	mu20, mu11, mu02 := r.maskCentralMoments()
	tr := mu20 + mu02
	det := mu20*mu02 - mu11*mu11
	disc := math.Sqrt(math.Max(tr*tr/4-det, 0))
	return tr/2 + disc, tr/2 - disc
}

// MajorAxisLength returns the length of the major axis of the ellipse
// with the same normalized second central moments as the region.
func (r *Region) MajorAxisLength() float64 {
	l1, _ := r.covarianceEigvals()
	return 4 * math.Sqrt(l1)
}

// MinorAxisLength returns the corresponding minor axis length.
func (r *Region) MinorAxisLength() float64 {
	_, l2 := r.covarianceEigvals()
	return 4 * math.Sqrt(math.Max(l2, 0))
}

// Eccentricity returns the eccentricity of the moment-equivalent
// ellipse, zero for a circle.
func (r *Region) Eccentricity() float64 {
	l1, l2 := r.covarianceEigvals()
	if l1 == 0 {
		return 0
	}
	return math.Sqrt(math.Max(1-l2/l1, 0))
}

// Orientation returns the angle between the row axis and the major axis
// of the moment-equivalent ellipse, in radians.
func (r *Region) Orientation() float64 {
	mu20, mu11, mu02 := r.maskCentralMoments()
	return 0.5 * math.Atan2(2*mu11, mu20-mu02)
}

// InertiaTensorEigvals returns the two eigenvalues of the mask inertia
// tensor, largest first.
func (r *Region) InertiaTensorEigvals() (l1, l2 float64) {
	mu20, mu11, mu02 := r.maskCentralMoments()
	// Inertia tensor swaps the diagonal and negates the coupling term
	tr := mu02 + mu20
	det := mu02*mu20 - mu11*mu11
	disc := math.Sqrt(math.Max(tr*tr/4-det, 0))
	return tr/2 + disc, tr/2 - disc
}

// Perimeter approximates the region boundary length by counting pixel
// edges exposed to the background, with diagonal steps weighted to
// reduce the staircase bias.
func (r *Region) Perimeter() float64 {
	h, w := r.BBox.Height(), r.BBox.Width()
	inside := func(row, col int) bool {
		if row < 0 || row >= h || col < 0 || col >= w {
			return false
		}
		return r.Mask[row*w+col]
	}

	perimeter := 0.0
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !inside(row, col) {
				continue
			}
			exposed := 0
			if !inside(row-1, col) {
				exposed++
			}
			if !inside(row+1, col) {
				exposed++
			}
			if !inside(row, col-1) {
				exposed++
			}
			if !inside(row, col+1) {
				exposed++
			}
			switch exposed {
			case 0:
			case 1:
				perimeter += 1
			case 2:
				// Corner pixel: the boundary cuts the diagonal
				perimeter += math.Sqrt2
			default:
				perimeter += float64(exposed)
			}
		}
	}
	return perimeter
}

// holes labels the background pixels inside the bounding box that are
// not reachable from the box border, returning the number of hole
// components and the total hole pixel count.
func (r *Region) holes() (components, pixels int) {
	h, w := r.BBox.Height(), r.BBox.Width()
	visited := make([]bool, h*w)
	queue := make([]int, 0, h*w)

	push := func(row, col int) {
		if row < 0 || row >= h || col < 0 || col >= w {
			return
		}
		i := row*w + col
		if visited[i] || r.Mask[i] {
			return
		}
		visited[i] = true
		queue = append(queue, i)
	}

	// Flood the outside background from the border
	for col := 0; col < w; col++ {
		push(0, col)
		push(h-1, col)
	}
	for row := 0; row < h; row++ {
		push(row, 0)
		push(row, w-1)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		row, col := cur/w, cur%w
		push(row-1, col)
		push(row+1, col)
		push(row, col-1)
		push(row, col+1)
	}

	// Remaining unvisited background pixels are holes
	for start := range visited {
		if visited[start] || r.Mask[start] {
			continue
		}
		components++
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			pixels++
			row, col := cur/w, cur%w
			push(row-1, col)
			push(row+1, col)
			push(row, col-1)
			push(row, col+1)
		}
	}
	return components, pixels
}

// EulerNumber returns one minus the number of holes in the region.
func (r *Region) EulerNumber() int {
	holes, _ := r.holes()
	return 1 - holes
}

// FilledArea returns the region area with its holes filled.
func (r *Region) FilledArea() int {
	_, pixels := r.holes()
	return r.Area + pixels
}

// ConvexArea returns the number of pixels inside the convex hull of the
// region.
func (r *Region) ConvexArea() int {
	h, w := r.BBox.Height(), r.BBox.Width()
	var pts [][2]float64
	for i, in := range r.Mask {
		if in {
			pts = append(pts, [2]float64{float64(i / w), float64(i % w)})
		}
	}
	hull := convexHull(pts)
	if len(hull) < 3 {
		return r.Area
	}

	count := 0
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if insideHull(hull, float64(row), float64(col)) {
				count++
			}
		}
	}
	return count
}

// Solidity returns the ratio of region area to convex hull area.
func (r *Region) Solidity() float64 {
	convex := r.ConvexArea()
	if convex == 0 {
		return 0
	}
	return float64(r.Area) / float64(convex)
}

// WeightedHuMoments returns the first three Hu moment invariants of the
// intensity-weighted region patch.
func (r *Region) WeightedHuMoments() [3]float64 {
	w := r.BBox.Width()

	var m00, mr, mc float64
	for i, v := range r.Patch.Data {
		m00 += v
		mr += v * float64(i/w)
		mc += v * float64(i%w)
	}
	if m00 == 0 {
		return [3]float64{}
	}
	cr, cc := mr/m00, mc/m00

	mu := func(p, q int) float64 {
		var sum float64
		for i, v := range r.Patch.Data {
			if v == 0 {
				continue
			}
			dr := float64(i/w) - cr
			dc := float64(i%w) - cc
			sum += v * math.Pow(dr, float64(p)) * math.Pow(dc, float64(q))
		}
		return sum
	}
	eta := func(p, q int) float64 {
		return mu(p, q) / math.Pow(m00, 1+float64(p+q)/2)
	}

	e20, e02, e11 := eta(2, 0), eta(0, 2), eta(1, 1)
	e30, e03, e21, e12 := eta(3, 0), eta(0, 3), eta(2, 1), eta(1, 2)

	return [3]float64{
		e20 + e02,
		(e20-e02)*(e20-e02) + 4*e11*e11,
		(e30-3*e12)*(e30-3*e12) + (3*e21-e03)*(3*e21-e03),
	}
}

// convexHull returns the hull of pts in counterclockwise order using the
// monotone chain construction.
func convexHull(pts [][2]float64) [][2]float64 {
	if len(pts) < 3 {
		return pts
	}
	sorted := make([][2]float64, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b [2]float64) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	var hull [][2]float64
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// insideHull reports whether (row, col) lies inside or on the hull. The
// point is inside a convex polygon when it sits on the same side of
// every edge, regardless of winding direction.
func insideHull(hull [][2]float64, row, col float64) bool {
	const tol = 1e-9
	sign := 0
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		cross := (b[0]-a[0])*(col-a[1]) - (b[1]-a[1])*(row-a[0])
		if math.Abs(cross) <= tol {
			continue
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}
