package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dermix/dermix/der"
)

func sampleCoefficients() *CoefficientsFile {
	return &CoefficientsFile{
		Version: "1",
		Y0:      0.046,
		Phi:     3000,
		Models: []ModelCoeffs{
			{Family: "low-let", Params: []string{"alpha_low"}, Values: []float64{0.004}},
			{Family: "nte", Params: []string{"aa1", "aa2", "kk1"}, Values: []float64{9e-5, 0.01, 0.05}},
		},
	}
}

func TestCoefficientsFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	want := sampleCoefficients()

	if err := WriteCoefficients(path, want); err != nil {
		t.Fatalf("WriteCoefficients: %v", err)
	}
	got, err := ReadCoefficients(path)
	if err != nil {
		t.Fatalf("ReadCoefficients: %v", err)
	}

	assert.Equal(t, want, got)
}

func TestReadCoefficients_UnknownFieldRejected(t *testing.T) {
	// Strict parsing: typos must cause errors, not silent zero values.
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	content := "version: \"1\"\nbackground_prevalance: 0.05\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := ReadCoefficients(path)
	assert.Error(t, err)
}

func TestCoefficientsFile_CoefficientSetLookup(t *testing.T) {
	cf := sampleCoefficients()

	cs, ok := cf.CoefficientSet(der.FamilyNTE)
	assert.True(t, ok)
	assert.Equal(t, []string{"aa1", "aa2", "kk1"}, cs.Names)
	assert.Equal(t, []float64{9e-5, 0.01, 0.05}, cs.Values)

	_, ok = cf.CoefficientSet(der.FamilyTE)
	assert.False(t, ok)
}

func TestCoefficientsFile_RunConfigFallsBackToDefaults(t *testing.T) {
	cf := &CoefficientsFile{Version: "1"}
	assert.Equal(t, der.DefaultRunConfig(), cf.RunConfig())

	cf = sampleCoefficients()
	cf.Y0 = 0.03
	cfg := cf.RunConfig()
	assert.Equal(t, 0.03, cfg.Y0)
	assert.Equal(t, 3000.0, cfg.Phi)
}
