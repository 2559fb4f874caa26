package der

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// FoldResult records one leave-one-beam-out fold: the held-out beam's LET,
// how many records it held, the NWeight-weighted squared prediction error on
// those records, and the refit error if the fold's calibration diverged.
type FoldResult struct {
	LET    float64
	Held   int
	SqErr  float64
	Weight float64
	Err    error
}

// CrossValResult aggregates all folds for one model family.
type CrossValResult struct {
	Family      ModelFamily
	Folds       []FoldResult
	WeightedMSE float64 // over held-out predictions of the folds that fit
	Failures    int
}

// calibrateFit is the calibration routine used for fold refits. It is a
// package variable only so tests can observe fold isolation; it always
// points at Calibrate in production.
var calibrateFit = Calibrate

// CrossValidate scores family by leave-one-beam-out cross-validation on the
// HZE subset of recs: one block per distinct LET value, each block held out
// in turn, the model refit on the remaining blocks with the same calibration
// routine as Calibrate, and the held-out squared prediction error
// accumulated with NWeight weighting.
//
// A fold whose refit diverges is recorded in its FoldResult and excluded
// from the weighted-MSE aggregate; remaining folds still run (collect-all
// failure policy). Failures counts such folds.
func CrossValidate(cfg RunConfig, family ModelFamily, recs []DoseRecord, start []float64) (*CrossValResult, error) {
	if family != FamilyTE && family != FamilyNTE {
		return nil, fmt.Errorf("cross-validation is defined for the HZE families, got %s", family)
	}
	hze := HZESubset(recs)
	lets := BeamLETs(hze)
	if len(lets) < 2 {
		return nil, fmt.Errorf("cross-validation needs at least 2 beams, got %d", len(lets))
	}

	result := &CrossValResult{Family: family, Folds: make([]FoldResult, 0, len(lets))}
	var sqErr, weight float64
	for _, let := range lets {
		var train, test []DoseRecord
		for _, r := range hze {
			if r.LET == let {
				test = append(test, r)
			} else {
				train = append(train, r)
			}
		}

		fold := FoldResult{LET: let, Held: len(test)}
		fit, err := calibrateFit(cfg, family, train, start)
		if err != nil {
			fold.Err = err
			result.Failures++
			result.Folds = append(result.Folds, fold)
			logrus.Warnf("%s fold LET=%g failed: %v", family, let, err)
			continue
		}

		derf := family.DER(cfg, fit.Coeffs)
		for _, r := range test {
			e := cfg.Y0 + derf(r.Dose, r.LET) - r.Prev
			fold.SqErr += r.NWeight * e * e
			fold.Weight += r.NWeight
		}
		sqErr += fold.SqErr
		weight += fold.Weight
		result.Folds = append(result.Folds, fold)
	}

	if weight > 0 {
		result.WeightedMSE = sqErr / weight
	} else {
		result.WeightedMSE = math.NaN()
	}
	return result, nil
}
