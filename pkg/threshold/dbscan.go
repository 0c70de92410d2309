package threshold

import "gonum.org/v1/gonum/spatial/kdtree"

// ampPoint is a one-dimensional amplitude with its population index.
type ampPoint struct {
	v   float64
	idx int
}

// Compare implements the kdtree.Comparable interface
func (p ampPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.v - c.(ampPoint).v
}

// Dims returns the number of dimensions for the KD-tree
func (p ampPoint) Dims() int { return 1 }

// Distance returns the squared distance between two amplitudes
func (p ampPoint) Distance(c kdtree.Comparable) float64 {
	d := p.v - c.(ampPoint).v
	return d * d
}

// ampPoints is a collection of ampPoint that satisfies kdtree.Interface
type ampPoints []ampPoint

func (p ampPoints) Index(i int) kdtree.Comparable        { return p[i] }
func (p ampPoints) Len() int                             { return len(p) }
func (p ampPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p ampPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(ampPlane{ampPoints: p, Dim: d}, kdtree.MedianOfRandoms(ampPlane{ampPoints: p, Dim: d}, 100))
}

// ampPlane implements sort.Interface and kdtree.SortSlicer for ampPoints
type ampPlane struct {
	ampPoints
	kdtree.Dim
}

func (p ampPlane) Less(i, j int) bool { return p.ampPoints[i].v < p.ampPoints[j].v }

func (p ampPlane) Slice(start, end int) kdtree.SortSlicer {
	return ampPlane{ampPoints: p.ampPoints[start:end], Dim: p.Dim}
}

func (p ampPlane) Swap(i, j int) {
	p.ampPoints[i], p.ampPoints[j] = p.ampPoints[j], p.ampPoints[i]
}

// dbscan labels values with density-reachability cluster ids. Points
// with at least minSamples neighbors within eps (themselves included)
// are core points; clusters grow by core-point reachability and
// unreachable points keep the noise label -1.
func dbscan(values []float64, eps float64, minSamples int) []int {
	points := make(ampPoints, len(values))
	for i, v := range values {
		points[i] = ampPoint{v: v, idx: i}
	}
	// kdtree.New sorts its input when bounding is requested; the idx
	// field keeps the mapping back to the caller's ordering.
	tree := kdtree.New(points, false)

	neighborsOf := func(i int) []int {
		keeper := kdtree.NewDistKeeper(eps * eps)
		tree.NearestSet(keeper, ampPoint{v: values[i], idx: i})
		var out []int
		for _, item := range keeper.Heap {
			if item.Comparable == nil {
				continue
			}
			out = append(out, item.Comparable.(ampPoint).idx)
		}
		return out
	}

	const unvisited = -2
	labels := make([]int, len(values))
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := range values {
		if labels[i] != unvisited {
			continue
		}
		neighbors := neighborsOf(i)
		if len(neighbors) < minSamples {
			labels[i] = noiseLabel
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noiseLabel {
				// Border point reached from a core point
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			jn := neighborsOf(j)
			if len(jn) >= minSamples {
				queue = append(queue, jn...)
			}
		}
		cluster++
	}

	for i := range labels {
		if labels[i] == unvisited {
			labels[i] = noiseLabel
		}
	}
	return labels
}
