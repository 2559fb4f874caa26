package der

import "fmt"

// InvalidMixtureSpecError reports an inconsistent mixture description:
// ratio/LET length mismatch, ratios not summing to 1, or a declared
// component count that does not match the lists. Raised before any
// numerical work starts.
type InvalidMixtureSpecError struct {
	Reason string
}

func (e *InvalidMixtureSpecError) Error() string {
	return "invalid mixture spec: " + e.Reason
}

// CalibrationDivergenceError reports a weighted nonlinear fit that did not
// converge from the given start values within the iteration bound. The fit
// is not retried with different starts; that is the caller's decision.
type CalibrationDivergenceError struct {
	Family     ModelFamily
	Start      []float64
	Iterations int
}

func (e *CalibrationDivergenceError) Error() string {
	return fmt.Sprintf("%s calibration did not converge within %d iterations from start %v",
		e.Family, e.Iterations, e.Start)
}

// RootNotFoundError reports an equivalent-solo-dose inversion that could not
// bracket a root even after extending the search interval. Carries the
// offending component's LET and the effect level that was being inverted.
type RootNotFoundError struct {
	LET    float64
	Target float64
}

func (e *RootNotFoundError) Error() string {
	return fmt.Sprintf("no solo dose reproduces effect %g for component LET=%g within the search interval",
		e.Target, e.LET)
}

// IntegrationFailureError reports that the mixture rate equation could not
// be integrated to the requested dose within the solver's error tolerance
// and step budget. LastDose is the last dose reached successfully.
type IntegrationFailureError struct {
	LastDose float64
}

func (e *IntegrationFailureError) Error() string {
	return fmt.Sprintf("mixture effect integration failed past dose %g cGy", e.LastDose)
}
