package ellipse

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"frbsearch/internal/models"
)

// ErrNoIntensityRegion reports that a region has no usable signal left
// after background subtraction. Callers skip such regions; the error
// never aborts a search.
var ErrNoIntensityRegion = errors.New("no intensity in region")

// FitResult carries the fitted model together with solver diagnostics.
// The model is the solver's best effort and is returned even when the
// iteration limit was reached; downstream shape and amplitude checks act
// as the fit-quality filter.
type FitResult struct {
	// Model holds the fitted parameters
	Model Gaussian2D

	// Cost is the final sum of squared residuals
	Cost float64

	// Iterations is the number of accepted solver steps
	Iterations int

	// Converged reports whether the solver met its tolerance before
	// hitting the iteration limit
	Converged bool
}

const (
	maxIterations = 100
	costTolerance = 1e-10
	initialDamp   = 1e-3
	minStddev     = 1e-6
)

// Fit models a region's intensity patch as an elliptical 2D Gaussian.
//
// The local background, approximated by the second-lowest unique
// intensity value of the patch, is subtracted first and negatives are
// clipped to zero. ErrNoIntensityRegion is returned when no positive
// intensity survives. The model is seeded from the patch maximum and
// per-axis half-max extents, then refined by Levenberg-Marquardt least
// squares with the mean position clamped to the patch extent.
func Fit(patch *models.Image) (*FitResult, error) {
	data, err := subtractBackground(patch)
	if err != nil {
		return nil, err
	}

	amp, x0, y0, rowExtent, colExtent := inferSeed(data)

	// Seeding the two spreads from their own axes keeps the cost
	// surface asymmetric at the start, so the solver descends into the
	// mode where XStddev spans rows rather than the swapped one.
	p := [6]float64{amp, x0, y0, 0.5 * rowExtent, 0.5 * colExtent, 0}

	result := levmar(data, p)
	return result, nil
}

// subtractBackground removes the second-lowest unique intensity value
// from the patch and clips negatives to zero.
func subtractBackground(patch *models.Image) (*models.Image, error) {
	unique := make([]float64, 0, len(patch.Data))
	seen := make(map[float64]struct{}, len(patch.Data))
	for _, v := range patch.Data {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
	}
	if len(unique) < 2 {
		return nil, ErrNoIntensityRegion
	}
	sort.Float64s(unique)
	background := unique[1]

	out := patch.Clone()
	positive := false
	for i := range out.Data {
		out.Data[i] -= background
		if out.Data[i] < 0 {
			out.Data[i] = 0
		}
		if out.Data[i] > 0 {
			positive = true
		}
	}
	if !positive {
		return nil, ErrNoIntensityRegion
	}
	return out, nil
}

// inferSeed estimates initial Gaussian parameters from the patch: the
// amplitude and position of the maximum, and the above-half-max pixel
// extents along the row and column through the peak. Both extents are
// at least one because the peak pixel itself exceeds half max.
func inferSeed(data *models.Image) (amp, x0, y0, rowExtent, colExtent float64) {
	amp, row, col := data.Max()

	dx := 0
	for c := 0; c < data.Cols; c++ {
		if data.At(row, c)-amp/2 > 0 {
			dx++
		}
	}
	dy := 0
	for r := 0; r < data.Rows; r++ {
		if data.At(r, col)-amp/2 > 0 {
			dy++
		}
	}
	return amp, float64(row), float64(col), float64(dy), float64(dx)
}

// levmar runs a damped least-squares refinement of the six Gaussian
// parameters against the patch intensities.
func levmar(data *models.Image, p [6]float64) *FitResult {
	n := len(data.Data)
	residuals := make([]float64, n)
	cost := evalResiduals(data, p, residuals)

	lambda := initialDamp
	jac := mat.NewDense(n, 6, nil)
	trial := make([]float64, n)
	iterations := 0
	converged := false

	for iter := 0; iter < maxIterations; iter++ {
		numericJacobian(data, p, jac)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		jtr := mat.NewVecDense(6, nil)
		jtr.MulVec(jac.T(), mat.NewVecDense(n, residuals))

		accepted := false
		for attempt := 0; attempt < 10; attempt++ {
			// Damped normal equations: (J'J + lambda*diag(J'J)) delta = J'r
			var damped mat.Dense
			damped.CloneFrom(&jtj)
			for i := 0; i < 6; i++ {
				d := jtj.At(i, i)
				if d == 0 {
					d = 1
				}
				damped.Set(i, i, d*(1+lambda))
			}

			var delta mat.VecDense
			if err := delta.SolveVec(&damped, jtr); err != nil {
				lambda *= 10
				continue
			}

			var candidate [6]float64
			for i := 0; i < 6; i++ {
				candidate[i] = p[i] - delta.AtVec(i)
			}
			clampParams(&candidate, data)

			trialCost := evalResiduals(data, candidate, trial)
			if trialCost < cost {
				improvement := cost - trialCost
				p = candidate
				copy(residuals, trial)
				cost = trialCost
				lambda /= 10
				if lambda < 1e-12 {
					lambda = 1e-12
				}
				accepted = true
				iterations++
				if improvement < costTolerance*(1+cost) {
					converged = true
				}
				break
			}
			lambda *= 10
		}

		if !accepted {
			// No damping level produced a downhill step; the solver is
			// at a local minimum for this patch
			converged = !math.IsInf(cost, 1)
			break
		}
		if converged {
			break
		}
	}

	return &FitResult{
		Model: Gaussian2D{
			Amplitude: p[0],
			XMean:     p[1],
			YMean:     p[2],
			XStddev:   p[3],
			YStddev:   p[4],
			Theta:     p[5],
		},
		Cost:       cost,
		Iterations: iterations,
		Converged:  converged,
	}
}

// clampParams keeps the mean position inside the patch, the spreads
// away from zero and the angle wrapped so the model stays evaluable.
// The shape is invariant under theta mod pi, so wrapping never changes
// the cost; it only stops runaway steps along the flat direction.
func clampParams(p *[6]float64, data *models.Image) {
	if p[1] < 0 {
		p[1] = 0
	}
	if p[1] > float64(data.Rows) {
		p[1] = float64(data.Rows)
	}
	if p[2] < 0 {
		p[2] = 0
	}
	if p[2] > float64(data.Cols) {
		p[2] = float64(data.Cols)
	}
	if math.Abs(p[3]) < minStddev {
		p[3] = minStddev
	}
	if math.Abs(p[4]) < minStddev {
		p[4] = minStddev
	}
	p[5] = math.Mod(p[5], math.Pi)
}

// evalResiduals fills out with model-minus-data residuals and returns
// the sum of squares.
func evalResiduals(data *models.Image, p [6]float64, out []float64) float64 {
	g := Gaussian2D{
		Amplitude: p[0], XMean: p[1], YMean: p[2],
		XStddev: p[3], YStddev: p[4], Theta: p[5],
	}
	cost := 0.0
	for r := 0; r < data.Rows; r++ {
		for c := 0; c < data.Cols; c++ {
			i := r*data.Cols + c
			out[i] = g.Eval(float64(r), float64(c)) - data.Data[i]
			cost += out[i] * out[i]
		}
	}
	return cost
}

// numericJacobian fills jac with forward-difference partial derivatives
// of the residual vector with respect to the six parameters.
func numericJacobian(data *models.Image, p [6]float64, jac *mat.Dense) {
	n := len(data.Data)
	base := make([]float64, n)
	evalResiduals(data, p, base)
	perturbed := make([]float64, n)

	for j := 0; j < 6; j++ {
		step := 1e-6 * math.Abs(p[j])
		if step < 1e-8 {
			step = 1e-8
		}
		pj := p
		pj[j] += step
		evalResiduals(data, pj, perturbed)
		for i := 0; i < n; i++ {
			jac.Set(i, j, (perturbed[i]-base[i])/step)
		}
	}
}
