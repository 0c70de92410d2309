// Package threshold separates noise-like from signal-like fitted
// amplitudes. A population of ellipse amplitudes from an unfiltered
// search is dominated by noise-induced fits; density clustering finds
// the dense noise population and a Rayleigh tail fit anchors the cutoff
// just below the smallest confirmed outlier.
package threshold

import (
	"errors"
	"math"

	"github.com/sirupsen/logrus"
)

// ErrNoAmplitudes reports an empty amplitude population.
var ErrNoAmplitudes = errors.New("no amplitudes to cluster")

// noiseLabel marks points unreachable from any core point.
const noiseLabel = -1

// Options tunes the estimator.
type Options struct {
	// MinSamples is the minimum neighborhood population for a core
	// point, the point itself included
	MinSamples int

	// LeafSize is a neighbor-search bucketing hint. It never affects
	// results, only lookup performance, and the kd-tree build here
	// does not use it.
	LeafSize int

	// Eps is the clustering neighborhood radius. When zero it is set
	// adaptively to the amplitude range divided by the square root of
	// the population size.
	Eps float64

	// TailQuantile is the Rayleigh quantile used as the tail bound
	TailQuantile float64
}

// DefaultOptions returns the estimator defaults.
func DefaultOptions() Options {
	return Options{
		MinSamples:   10,
		LeafSize:     5,
		TailQuantile: 0.999,
	}
}

// Estimate returns an amplitude threshold separating the dense noise
// cluster from sparse high-amplitude outliers.
//
// The amplitudes are clustered with DBSCAN semantics; the largest
// non-noise cluster is taken as the noise population and fitted with a
// Rayleigh distribution by maximum likelihood. Among outlier-labeled
// points exceeding the fitted tail quantile, the minimum amplitude minus
// eps is returned. When no outlier exceeds the tail bound the bound
// itself is returned.
func Estimate(amplitudes []float64, opts Options) (float64, error) {
	if len(amplitudes) == 0 {
		return 0, ErrNoAmplitudes
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultOptions().MinSamples
	}
	if opts.TailQuantile <= 0 || opts.TailQuantile >= 1 {
		opts.TailQuantile = DefaultOptions().TailQuantile
	}

	eps := opts.Eps
	if eps <= 0 {
		lo, hi := amplitudes[0], amplitudes[0]
		for _, v := range amplitudes {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		eps = (hi - lo) / math.Sqrt(float64(len(amplitudes)))
	}
	logrus.WithField("eps", eps).Debug("amplitude clustering neighborhood")

	labels := dbscan(amplitudes, eps, opts.MinSamples)

	noise := largestCluster(amplitudes, labels)
	if len(noise) == 0 {
		// No dense cluster formed; fit the whole population
		noise = amplitudes
	}

	tail := rayleighTail(noise, opts.TailQuantile)

	threshold := math.Inf(1)
	for i, v := range amplitudes {
		if labels[i] == noiseLabel && v > tail && v < threshold {
			threshold = v
		}
	}
	if math.IsInf(threshold, 1) {
		// No confirmed outlier beyond the tail bound
		logrus.WithField("tail", tail).Debug("no outlier beyond tail bound, using bound")
		return tail, nil
	}

	result := threshold - eps
	logrus.WithFields(logrus.Fields{
		"threshold": result,
		"tail":      tail,
	}).Debug("amplitude threshold estimated")
	return result, nil
}

// largestCluster returns the values of the most populous non-noise
// cluster.
func largestCluster(values []float64, labels []int) []float64 {
	counts := make(map[int]int)
	for _, l := range labels {
		if l != noiseLabel {
			counts[l]++
		}
	}
	best, bestCount := noiseLabel, 0
	for l, c := range counts {
		if c > bestCount || (c == bestCount && l < best) {
			best, bestCount = l, c
		}
	}
	if best == noiseLabel {
		return nil
	}
	var cluster []float64
	for i, l := range labels {
		if l == best {
			cluster = append(cluster, values[i])
		}
	}
	return cluster
}

// rayleighTail fits a Rayleigh distribution to the sample by maximum
// likelihood and returns the requested quantile. The location is pinned
// to the sample minimum; the scale uses the closed-form MLE given that
// location. The Rayleigh CDF 1-exp(-x^2/(2 sigma^2)) inverts in closed
// form, so the quantile is sigma*sqrt(-2 ln(1-q)).
func rayleighTail(sample []float64, quantile float64) float64 {
	loc := sample[0]
	for _, v := range sample {
		loc = math.Min(loc, v)
	}
	var sum float64
	for _, v := range sample {
		d := v - loc
		sum += d * d
	}
	sigma := math.Sqrt(sum / (2 * float64(len(sample))))
	if sigma == 0 {
		return loc
	}
	return loc + sigma*math.Sqrt(-2*math.Log(1-quantile))
}
