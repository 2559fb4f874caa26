package der

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCrossValidate_EightBeamsExactCover checks the reference grouping: one
// block per distinct LET, eight blocks, and every HZE record held out
// exactly once.
func TestCrossValidate_EightBeamsExactCover(t *testing.T) {
	// GIVEN noiseless HZE data on 8 beams plus light-ion records that must
	// be excluded from the grouping
	recs := syntheticRecords(testCfg, FamilyNTE, nteTruth, testBeamLETs, 26)
	recs = append(recs, syntheticRecords(testCfg, FamilyLowLET, lowTruth, []float64{0.4, 1.6}, 2)...)

	// WHEN the NTE family is cross-validated
	res, err := CrossValidate(testCfg, FamilyNTE, recs, []float64{5e-5, 0.005, 0.02})
	if err != nil {
		t.Fatalf("CrossValidate: %v", err)
	}

	// THEN there are exactly 8 folds covering the HZE subset exactly once
	assert.Len(t, res.Folds, 8)
	var held int
	var lets []float64
	for _, fold := range res.Folds {
		held += fold.Held
		lets = append(lets, fold.LET)
		assert.NoError(t, fold.Err)
	}
	assert.Equal(t, len(HZESubset(recs)), held)
	assert.Equal(t, testBeamLETs, lets)

	// AND refits on noiseless data predict the held-out beams near-exactly
	assert.Zero(t, res.Failures)
	assert.Less(t, res.WeightedMSE, 1e-8)
}

// TestCrossValidate_FoldFailureIsCollected makes one fold's refit diverge
// and verifies the collect-all-failures policy: the failed fold is recorded,
// the other folds still run, and the aggregate stays finite.
func TestCrossValidate_FoldFailureIsCollected(t *testing.T) {
	recs := syntheticRecords(testCfg, FamilyNTE, nteTruth, testBeamLETs, 26)
	failLET := 100.0

	orig := calibrateFit
	defer func() { calibrateFit = orig }()
	calibrateFit = func(cfg RunConfig, family ModelFamily, train []DoseRecord, start []float64) (*FitResult, error) {
		holdsOut := true
		for _, r := range train {
			if r.LET == failLET {
				holdsOut = false
				break
			}
		}
		if holdsOut {
			return nil, &CalibrationDivergenceError{Family: family, Start: start, Iterations: 1}
		}
		return Calibrate(cfg, family, train, start)
	}

	res, err := CrossValidate(testCfg, FamilyNTE, recs, []float64{5e-5, 0.005, 0.02})
	if err != nil {
		t.Fatalf("CrossValidate: %v", err)
	}

	assert.Equal(t, 1, res.Failures)
	assert.Len(t, res.Folds, 8)
	for _, fold := range res.Folds {
		if fold.LET == failLET {
			assert.Error(t, fold.Err)
			assert.Zero(t, fold.Weight)
		} else {
			assert.NoError(t, fold.Err)
			assert.Greater(t, fold.Weight, 0.0)
		}
	}
	assert.False(t, math.IsNaN(res.WeightedMSE))
	assert.Less(t, res.WeightedMSE, 1e-8)
}

func TestCrossValidate_RejectsLowLETFamily(t *testing.T) {
	recs := syntheticRecords(testCfg, FamilyLowLET, lowTruth, []float64{0.4, 1.6}, 2)
	_, err := CrossValidate(testCfg, FamilyLowLET, recs, lowTruth)
	assert.Error(t, err)
}

func TestCrossValidate_NeedsAtLeastTwoBeams(t *testing.T) {
	recs := syntheticRecords(testCfg, FamilyNTE, nteTruth, []float64{70}, 26)
	_, err := CrossValidate(testCfg, FamilyNTE, recs, []float64{5e-5, 0.005, 0.02})
	assert.Error(t, err)
}
