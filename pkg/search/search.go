// Package search turns a preprocessed time-DM image into a list of
// candidate detections. Three interchangeable strategies decide whether
// a segmented region is a genuine candidate: bounding-box size
// thresholds, ellipse-shape and amplitude thresholds, or a trained
// binary classifier over a region feature vector.
package search

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"frbsearch/internal/models"
	"frbsearch/pkg/ellipse"
	"frbsearch/pkg/segment"
	"frbsearch/pkg/threshold"
)

// Hook is an optional diagnostic callback invoked with a region and its
// fit result. Hooks are for visualization only and must not influence
// the candidate output; a nil hook is skipped.
type Hook func(region *segment.Region, fit *ellipse.FitResult)

// Context carries the calibration shared by one search run.
type Context struct {
	// Mapper converts peak positions to physical coordinates
	Mapper models.CoordMapper

	// Workers bounds the goroutines used for region-level fitting;
	// values below one mean sequential processing
	Workers int

	// Hook receives every region that produced a candidate, with its
	// fit when the strategy computed one
	Hook Hook
}

func (c *Context) fire(region *segment.Region, fit *ellipse.FitResult) {
	if c.Hook != nil {
		c.Hook(region, fit)
	}
}

// Classifier is a candidate search strategy. Search segments the image,
// decides which regions are genuine candidates and returns them in
// deterministic order.
type Classifier interface {
	Search(img *models.Image, ctx *Context) ([]models.Candidate, error)
}

// SizeClassifier accepts regions purely on bounding-box size: height
// must exceed NDy and width must exceed NDx. The peak is the
// maximum-intensity pixel of the region.
type SizeClassifier struct {
	// NDx is the minimum bounding-box width
	NDx int

	// NDy is the minimum bounding-box height
	NDy int
}

// Search implements Classifier. Accepted regions are ranked tallest
// first, widest first among equals.
func (s *SizeClassifier) Search(img *models.Image, ctx *Context) ([]models.Candidate, error) {
	regions := segment.Segment(img, img)

	accepted := regions[:0]
	for _, reg := range regions {
		if reg.BBox.Height() > s.NDy && reg.BBox.Width() > s.NDx {
			accepted = append(accepted, reg)
		}
	}
	segment.Rank(accepted)

	logrus.WithFields(logrus.Fields{
		"regions":  len(regions),
		"accepted": len(accepted),
	}).Debug("size-threshold search")

	candidates := make([]models.Candidate, 0, len(accepted))
	for _, reg := range accepted {
		ctx.fire(reg, nil)
		row, col := reg.MaxPosition()
		candidates = append(candidates, ctx.Mapper.Candidate(float64(row), float64(col)))
	}
	return candidates, nil
}

// EllipseClassifier accepts regions whose fitted Gaussian is elongated,
// correctly angled and bright enough. When AmplitudeThreshold is zero
// the cutoff is estimated from the amplitudes of all fits in the image.
type EllipseClassifier struct {
	// XStddevMin is the minimum |x_stddev| of an accepted fit
	XStddevMin float64

	// XCosThetaMin is the minimum |x_stddev*cos(theta)|
	XCosThetaMin float64

	// YToXStddevMax is the maximum elongation ratio |y_stddev/x_stddev|
	YToXStddevMax float64

	// ThetaMin, ThetaMax bound the fit angle in degrees mod 180
	ThetaMin float64
	ThetaMax float64

	// AmplitudeThreshold is the fixed amplitude cutoff; zero requests
	// estimation via the threshold package
	AmplitudeThreshold float64

	// Estimator tunes the amplitude threshold estimation
	Estimator threshold.Options
}

// Search implements Classifier. Candidates appear in region
// construction order; regions without usable intensity are skipped.
func (e *EllipseClassifier) Search(img *models.Image, ctx *Context) ([]models.Candidate, error) {
	regions := segment.Segment(img, img)
	fits := fitRegions(regions, ctx.Workers)

	amplitude := e.AmplitudeThreshold
	if amplitude == 0 {
		var amplitudes []float64
		for _, fit := range fits {
			if fit != nil && fit.Model.Amplitude != 0 {
				amplitudes = append(amplitudes, fit.Model.Amplitude)
			}
		}
		est, err := threshold.Estimate(amplitudes, e.Estimator)
		if err != nil {
			return nil, err
		}
		amplitude = est
		logrus.WithField("amplitude", amplitude).Info("estimated amplitude threshold")
	}

	var candidates []models.Candidate
	for i, reg := range regions {
		fit := fits[i]
		if fit == nil || !e.accepts(&fit.Model, amplitude) {
			continue
		}
		ctx.fire(reg, fit)
		row := fit.Model.XMean + float64(reg.BBox.MinRow)
		col := fit.Model.YMean + float64(reg.BBox.MinCol)
		candidates = append(candidates, ctx.Mapper.Candidate(row, col))
	}
	return candidates, nil
}

// accepts applies the shape and amplitude inequalities. Bad fits fail
// these checks implicitly; there is no separate convergence gate.
func (e *EllipseClassifier) accepts(g *ellipse.Gaussian2D, amplitude float64) bool {
	deg := g.ThetaDegrees()
	return math.Abs(g.XStddev) > math.Abs(e.XStddevMin) &&
		math.Abs(g.ProjectedExtent()) > e.XCosThetaMin &&
		g.AxisRatio() < e.YToXStddevMax &&
		g.Amplitude > amplitude &&
		e.ThetaMin < deg && deg < e.ThetaMax
}

// PulseClassifier is a trained binary classifier over region feature
// vectors. Training and model persistence live outside this module.
type PulseClassifier interface {
	// Classify reports whether the feature vector describes a pulse
	Classify(features []float64) bool
}

// FeatureFunc extracts the feature vector for one region and its fit.
type FeatureFunc func(region *segment.Region, fit *ellipse.Gaussian2D) []float64

// LearnedClassifier delegates the accept decision to a trained binary
// classifier. Features come from FeatureVector unless a custom Features
// function accompanies the model.
type LearnedClassifier struct {
	// Model is the trained classifier
	Model PulseClassifier

	// Features overrides the default feature extraction when non-nil
	Features FeatureFunc
}

// Search implements Classifier. Every region is fitted and classified;
// positively classified regions use the fitted mean as the peak
// position.
func (l *LearnedClassifier) Search(img *models.Image, ctx *Context) ([]models.Candidate, error) {
	regions := segment.Segment(img, img)
	fits := fitRegions(regions, ctx.Workers)

	extract := l.Features
	if extract == nil {
		extract = FeatureVector
	}

	var candidates []models.Candidate
	positive := 0
	for i, reg := range regions {
		fit := fits[i]
		if fit == nil {
			continue
		}
		if !l.Model.Classify(extract(reg, &fit.Model)) {
			continue
		}
		positive++
		ctx.fire(reg, fit)
		row := fit.Model.XMean + float64(reg.BBox.MinRow)
		col := fit.Model.YMean + float64(reg.BBox.MinCol)
		candidates = append(candidates, ctx.Mapper.Candidate(row, col))
	}

	logrus.WithFields(logrus.Fields{
		"regions":  len(regions),
		"positive": positive,
	}).Debug("learned-classifier search")
	return candidates, nil
}

// fitRegions fits every region's intensity patch, in parallel when the
// worker count allows it. The result slice is indexed like regions;
// entries are nil for regions without usable intensity. Fitting region
// i never depends on region j, so only the final ordering matters.
func fitRegions(regions []*segment.Region, workers int) []*ellipse.FitResult {
	fits := make([]*ellipse.FitResult, len(regions))

	if workers <= 1 || len(regions) < 2 {
		for i, reg := range regions {
			fits[i] = fitOne(reg)
		}
		return fits
	}
	if workers > len(regions) {
		workers = len(regions)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fits[i] = fitOne(regions[i])
			}
		}()
	}
	for i := range regions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return fits
}

func fitOne(reg *segment.Region) *ellipse.FitResult {
	fit, err := ellipse.Fit(reg.Patch)
	if err != nil {
		// Regions without intensity are excluded, never fatal
		return nil
	}
	return fit
}
