package search

import (
	"math"

	"frbsearch/pkg/ellipse"
	"frbsearch/pkg/segment"
)

// NumFeatures is the length of the default feature vector.
const NumFeatures = 24

// FeatureVector builds the default fixed-length feature vector for a
// region and its fitted ellipse, consumed by the learned classifier.
func FeatureVector(reg *segment.Region, fit *ellipse.Gaussian2D) []float64 {
	hu := reg.WeightedHuMoments()
	eig1, eig2 := reg.InertiaTensorEigvals()

	ampToMean := 0.0
	if reg.MeanIntensity != 0 {
		ampToMean = math.Abs(fit.Amplitude / reg.MeanIntensity)
	}
	sxToSy := math.Inf(1)
	if fit.YStddev != 0 {
		sxToSy = math.Abs(fit.XStddev / fit.YStddev)
	}

	return []float64{
		float64(reg.Area),
		fit.Amplitude,
		math.Abs(fit.XStddev),
		math.Abs(fit.YStddev),
		math.Abs(fit.Theta),
		sxToSy,
		reg.Extent(),
		ampToMean,
		reg.Solidity(),
		reg.MajorAxisLength(),
		reg.MinorAxisLength(),
		reg.Perimeter(),
		reg.MaxIntensity,
		reg.MeanIntensity,
		hu[0],
		hu[1],
		hu[2],
		reg.Orientation(),
		eig1,
		eig2,
		float64(reg.FilledArea()),
		float64(reg.EulerNumber()),
		reg.Eccentricity(),
		float64(reg.ConvexArea()),
	}
}
