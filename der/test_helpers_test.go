package der

import "math"

// Run constants used across the package tests. Phi is kept milder than the
// reference value so the NTE buildup transient is resolvable on short test
// grids.
var testCfg = RunConfig{Y0: 0.03, Phi: 200}

var (
	nteTruth = []float64{9e-5, 0.01, 0.05}
	teTruth  = []float64{2e-4, 0.015}
	lowTruth = []float64{0.004}
)

func nteCoeffs() CoefficientSet {
	return CoefficientSet{Names: FamilyNTE.ParamNames(), Values: append([]float64(nil), nteTruth...)}
}

func teCoeffs() CoefficientSet {
	return CoefficientSet{Names: FamilyTE.ParamNames(), Values: append([]float64(nil), teTruth...)}
}

func lowCoeffs() CoefficientSet {
	return CoefficientSet{Names: FamilyLowLET.ParamNames(), Values: append([]float64(nil), lowTruth...)}
}

// syntheticRecords generates noiseless observations from family's hazard
// with the given true parameters, one block of doses per LET value, so a
// correct fit recovers the truth exactly.
func syntheticRecords(cfg RunConfig, family ModelFamily, truth, lets []float64, z int) []DoseRecord {
	doses := []float64{5, 10, 20, 40, 80, 160, 240}
	weights := []float64{50, 100, 200}
	var recs []DoseRecord
	for bi, let := range lets {
		for di, dose := range doses {
			prev := cfg.Y0 + 1 - math.Exp(-family.Hazard(cfg, dose, let, truth))
			recs = append(recs, DoseRecord{
				Z:       z,
				LET:     let,
				Dose:    dose,
				Prev:    prev,
				NWeight: weights[(bi+di)%len(weights)],
			})
		}
	}
	return recs
}

// syntheticModel is a ComponentModel with a saturating exponential DER,
// independent of LET, for exercising the mixture combinators without a fit.
type syntheticModel struct {
	alpha float64
	cap   float64
}

func (m syntheticModel) DER(dose, let float64) float64 {
	return m.cap * (1 - math.Exp(-m.alpha*dose))
}

func (m syntheticModel) Slope(let float64) SlopeFunc {
	return func(u float64) float64 {
		return m.cap * m.alpha * math.Exp(-m.alpha*u)
	}
}
