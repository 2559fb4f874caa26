package der

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMixtureSpec_Validate(t *testing.T) {
	cases := []struct {
		name string
		spec MixtureSpec
		ok   bool
	}{
		{"two components", MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{0.5, 0.5}}, true},
		{"declared count matches", MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{0.5, 0.5}, N: 2}, true},
		{"ratios sum to 0.9", MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{0.5, 0.4}}, false},
		{"length mismatch", MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{1}}, false},
		{"declared count mismatch", MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{0.5, 0.5}, N: 3}, false},
		{"negative ratio", MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{1.5, -0.5}}, false},
		{"negative LET", MixtureSpec{LETs: []float64{-70, 195}, Ratios: []float64{0.5, 0.5}}, false},
		{"empty", MixtureSpec{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			var invalid *InvalidMixtureSpecError
			if !errors.As(err, &invalid) {
				t.Fatalf("want InvalidMixtureSpecError, got %v", err)
			}
		})
	}
}

// TestSEACurve_ScenarioGrid reproduces the reference scenario: a 41-point
// grid from 0 to 0.40 cGy for LET=[70,195], ratios=[0.5,0.5] must yield
// non-negative, non-decreasing values starting at 0.
func TestSEACurve_ScenarioGrid(t *testing.T) {
	hze := CalibratedModel{Cfg: testCfg, Family: FamilyNTE, Coeffs: nteCoeffs()}
	grid := make([]float64, 41)
	for i := range grid {
		grid[i] = 0.01 * float64(i)
	}
	spec := MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{0.5, 0.5}}

	curve, err := SEACurve(grid, spec, hze, nil)
	if err != nil {
		t.Fatalf("SEACurve: %v", err)
	}

	assert.Len(t, curve, 41)
	assert.Zero(t, curve[0])
	for i := 1; i < len(curve); i++ {
		if curve[i] < curve[i-1] {
			t.Fatalf("curve decreases at index %d: %g < %g", i, curve[i], curve[i-1])
		}
	}
}

// TestSEACurve_RatioSumRejected: ratios summing to 0.9 must fail with
// InvalidMixtureSpec before any component is evaluated.
func TestSEACurve_RatioSumRejected(t *testing.T) {
	hze := CalibratedModel{Cfg: testCfg, Family: FamilyNTE, Coeffs: nteCoeffs()}
	spec := MixtureSpec{LETs: []float64{70, 195}, Ratios: []float64{0.5, 0.4}}

	_, err := SEACurve([]float64{0, 10}, spec, hze, nil)

	var invalid *InvalidMixtureSpecError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidMixtureSpecError, got %v", err)
	}
}

// TestSEACurve_PointwiseSum checks the closed form: each component
// evaluated at its own dose share and summed, low-LET model first when
// flagged.
func TestSEACurve_PointwiseSum(t *testing.T) {
	hze := CalibratedModel{Cfg: testCfg, Family: FamilyNTE, Coeffs: nteCoeffs()}
	low := CalibratedModel{Cfg: testCfg, Family: FamilyLowLET, Coeffs: lowCoeffs()}
	spec := MixtureSpec{
		LETs:           []float64{1.6, 193},
		Ratios:         []float64{0.4, 0.6},
		IncludesLowLET: true,
	}
	const dose = 50.0

	curve, err := SEACurve([]float64{dose}, spec, hze, low)
	if err != nil {
		t.Fatalf("SEACurve: %v", err)
	}

	want := low.DER(dose*0.4, 1.6) + hze.DER(dose*0.6, 193)
	assert.InDelta(t, want, curve[0], 1e-15)
}

// TestSEACurve_SingleComponentReducesToSolo verifies the degeneracy: one
// HZE component at ratio 1 is the component's own calibrated DER curve.
func TestSEACurve_SingleComponentReducesToSolo(t *testing.T) {
	hze := CalibratedModel{Cfg: testCfg, Family: FamilyNTE, Coeffs: nteCoeffs()}
	spec := MixtureSpec{LETs: []float64{70}, Ratios: []float64{1}}
	grid := []float64{0, 5, 20, 80}

	curve, err := SEACurve(grid, spec, hze, nil)
	if err != nil {
		t.Fatalf("SEACurve: %v", err)
	}
	for i, d := range grid {
		assert.InDelta(t, hze.DER(d, 70), curve[i], 1e-15)
	}
}

func TestSEACurve_MissingLowModelRejected(t *testing.T) {
	hze := CalibratedModel{Cfg: testCfg, Family: FamilyNTE, Coeffs: nteCoeffs()}
	spec := MixtureSpec{LETs: []float64{1.6, 193}, Ratios: []float64{0.4, 0.6}, IncludesLowLET: true}

	_, err := SEACurve([]float64{10}, spec, hze, nil)

	var invalid *InvalidMixtureSpecError
	assert.True(t, errors.As(err, &invalid))
}
