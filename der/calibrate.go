package der

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// FitResult is the outcome of one weighted nonlinear calibration.
type FitResult struct {
	Family     ModelFamily
	Coeffs     CoefficientSet
	RSS        float64 // weighted residual sum of squares at the optimum
	N          int     // observations used
	AIC        float64
	BIC        float64
	Iterations int
}

const (
	maxFitIterations = 200
	// Relative RSS improvement below which an accepted step counts as
	// converged.
	fitRSSTolerance = 1e-12
	// Relative parameter step below which an accepted step counts as
	// converged.
	fitStepTolerance = 1e-10
	// Damping escalation past this value means the normal equations cannot
	// produce a useful step from the current point.
	maxDamping = 1e12
)

// Calibrate fits family's hazard parameters to recs by weighted nonlinear
// least squares: it minimizes sum_i NWeight_i * (Y0 + 1 - exp(-hazard_i) -
// Prev_i)^2 by Levenberg-Marquardt iteration from the given start values.
// Non-convergence within the iteration bound returns a
// *CalibrationDivergenceError; the fit is never retried internally with
// different starts.
//
// The returned covariance is sigma^2 * (J^T J)^-1 with sigma^2 = RSS/(n-k),
// and AIC/BIC are computed from the weighted RSS for ranking model families
// on the same data.
func Calibrate(cfg RunConfig, family ModelFamily, recs []DoseRecord, start []float64) (*FitResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	names := family.ParamNames()
	if names == nil {
		return nil, fmt.Errorf("unknown model family %d", int(family))
	}
	if len(start) != len(names) {
		return nil, fmt.Errorf("%s start values: got %d, want %d (%v)", family, len(start), len(names), names)
	}
	n, k := len(recs), len(names)
	if n <= k {
		return nil, fmt.Errorf("%s calibration needs more than %d records, got %d", family, k, n)
	}

	p, rss, iters, err := lmFit(cfg, family, recs, start, maxFitIterations)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("%s fit converged in %d iterations, weighted RSS %g", family, iters, rss)

	// Covariance from the undamped normal matrix at the optimum.
	jtj, _ := normalEquations(cfg, family, recs, p)
	var chol mat.Cholesky
	cov := mat.NewSymDense(k, nil)
	if chol.Factorize(jtj) {
		if err := chol.InverseTo(cov); err == nil {
			cov.ScaleSym(rss/float64(n-k), cov)
		}
	}

	fn := float64(n)
	fk := float64(k)
	aic := fn*math.Log(rss/fn) + 2*fk
	bic := fn*math.Log(rss/fn) + fk*math.Log(fn)

	return &FitResult{
		Family:     family,
		Coeffs:     CoefficientSet{Names: names, Values: p, Cov: cov},
		RSS:        rss,
		N:          n,
		AIC:        aic,
		BIC:        bic,
		Iterations: iters,
	}, nil
}

// weightedResiduals fills r with sqrt(NWeight_i) * (Y0 + 1 - exp(-hazard_i)
// - Prev_i) and returns the weighted residual sum of squares.
func weightedResiduals(cfg RunConfig, family ModelFamily, recs []DoseRecord, p []float64, r []float64) float64 {
	var rss float64
	for i, rec := range recs {
		pred := cfg.Y0 + 1 - math.Exp(-family.Hazard(cfg, rec.Dose, rec.LET, p))
		r[i] = math.Sqrt(rec.NWeight) * (pred - rec.Prev)
		rss += r[i] * r[i]
	}
	return rss
}

// jacobian fills J (n x k) with forward-difference derivatives of the
// weighted residuals with respect to each parameter.
func jacobian(cfg RunConfig, family ModelFamily, recs []DoseRecord, p []float64, base []float64, j *mat.Dense) {
	k := len(p)
	pert := make([]float64, k)
	r := make([]float64, len(recs))
	for c := 0; c < k; c++ {
		h := 1e-8 * (1 + math.Abs(p[c]))
		copy(pert, p)
		pert[c] += h
		weightedResiduals(cfg, family, recs, pert, r)
		for i := range recs {
			j.Set(i, c, (r[i]-base[i])/h)
		}
	}
}

// normalEquations builds J^T J and J^T r at parameter point p.
func normalEquations(cfg RunConfig, family ModelFamily, recs []DoseRecord, p []float64) (*mat.SymDense, *mat.VecDense) {
	n, k := len(recs), len(p)
	base := make([]float64, n)
	weightedResiduals(cfg, family, recs, p, base)
	j := mat.NewDense(n, k, nil)
	jacobian(cfg, family, recs, p, base, j)

	var jtjDense mat.Dense
	jtjDense.Mul(j.T(), j)
	jtj := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			jtj.SetSym(a, b, jtjDense.At(a, b))
		}
	}
	grad := mat.NewVecDense(k, nil)
	grad.MulVec(j.T(), mat.NewVecDense(n, base))
	return jtj, grad
}

// lmFit runs the damped Gauss-Newton (Levenberg-Marquardt) iteration:
// (J^T J + lambda*diag(J^T J)) delta = -J^T r, with multiplicative lambda
// adaptation. It returns the fitted parameters, the weighted RSS and the
// iteration count, or a *CalibrationDivergenceError.
func lmFit(cfg RunConfig, family ModelFamily, recs []DoseRecord, start []float64, maxIter int) ([]float64, float64, int, error) {
	n, k := len(recs), len(start)
	p := append([]float64(nil), start...)
	r := make([]float64, n)
	rss := weightedResiduals(cfg, family, recs, p, r)
	lambda := 1e-3

	diverged := func(iters int) error {
		return &CalibrationDivergenceError{
			Family:     family,
			Start:      append([]float64(nil), start...),
			Iterations: iters,
		}
	}

	for iter := 1; iter <= maxIter; iter++ {
		jtj, grad := normalEquations(cfg, family, recs, p)

		// Escalate damping until the damped system yields an RSS-reducing
		// step or the damping budget runs out.
		for {
			damped := mat.NewSymDense(k, nil)
			damped.CopySym(jtj)
			for a := 0; a < k; a++ {
				d := jtj.At(a, a)
				if d == 0 {
					d = 1
				}
				damped.SetSym(a, a, d*(1+lambda))
			}

			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= 10
				if lambda > maxDamping {
					return nil, 0, iter, diverged(iter)
				}
				continue
			}
			delta := mat.NewVecDense(k, nil)
			if err := chol.SolveVecTo(delta, grad); err != nil {
				lambda *= 10
				if lambda > maxDamping {
					return nil, 0, iter, diverged(iter)
				}
				continue
			}

			trial := make([]float64, k)
			var maxStep float64
			for a := 0; a < k; a++ {
				trial[a] = p[a] - delta.AtVec(a)
				rel := math.Abs(delta.AtVec(a)) / (math.Abs(p[a]) + 1e-12)
				if rel > maxStep {
					maxStep = rel
				}
			}
			// A negligible proposed step means a stationary point whether or
			// not it improves the RSS.
			if maxStep < fitStepTolerance {
				return p, rss, iter, nil
			}
			trialRSS := weightedResiduals(cfg, family, recs, trial, r)
			if math.IsNaN(trialRSS) || trialRSS > rss {
				lambda *= 10
				if lambda > maxDamping {
					return nil, 0, iter, diverged(iter)
				}
				continue
			}

			improvement := (rss - trialRSS) / (rss + 1e-300)
			p, rss = trial, trialRSS
			lambda = math.Max(lambda*0.3, 1e-12)
			if improvement < fitRSSTolerance {
				return p, rss, iter, nil
			}
			break
		}
	}
	return nil, 0, maxIter, diverged(maxIter)
}
