package der

import "fmt"

// RunConfig groups the process-wide model constants read by calibration and
// the mixture combinators. A RunConfig is built once per run and passed by
// value; robustness checks with different constants are separate runs, never
// in-place mutation.
type RunConfig struct {
	Y0  float64 `yaml:"background_prevalence"` // background tumor prevalence from zero-dose controls
	Phi float64 `yaml:"phi"`                   // NTE buildup rate per cGy (must be > 0)
}

// DefaultRunConfig returns the reference-dataset constants.
func DefaultRunConfig() RunConfig {
	return RunConfig{Y0: 0.046, Phi: 3000}
}

// Validate checks that the constants are usable for a run.
func (c RunConfig) Validate() error {
	if c.Phi <= 0 {
		return fmt.Errorf("phi must be positive, got %g", c.Phi)
	}
	if c.Y0 < 0 || c.Y0 >= 1 {
		return fmt.Errorf("background prevalence must be in [0,1), got %g", c.Y0)
	}
	return nil
}
