package der

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ModelFamily selects one of the three calibrated hazard forms.
type ModelFamily int

const (
	// FamilyLowLET is the one-parameter linear hazard for light ions (Z <= 3).
	FamilyLowLET ModelFamily = iota
	// FamilyTE is the two-parameter targeted-effects hazard for HZE ions.
	FamilyTE
	// FamilyNTE is the three-parameter non-targeted-effects hazard for HZE
	// ions, with a phi-controlled buildup term that saturates at low dose.
	FamilyNTE
)

func (f ModelFamily) String() string {
	switch f {
	case FamilyLowLET:
		return "low-LET"
	case FamilyTE:
		return "TE"
	case FamilyNTE:
		return "NTE"
	}
	return "unknown"
}

// ParamNames returns the fitted parameter names in the order used by
// Calibrate and CoefficientSet.
func (f ModelFamily) ParamNames() []string {
	switch f {
	case FamilyLowLET:
		return []string{"alpha_low"}
	case FamilyTE:
		return []string{"aate1", "aate2"}
	case FamilyNTE:
		return []string{"aa1", "aa2", "kk1"}
	}
	return nil
}

// Hazard evaluates family f's hazard form at (dose, let) with parameters p
// in ParamNames order. The exponential complement of the hazard gives the
// DER, so hazard 0 at dose 0 guarantees DER(0) = 0.
func (f ModelFamily) Hazard(cfg RunConfig, dose, let float64, p []float64) float64 {
	switch f {
	case FamilyLowLET:
		return p[0] * dose
	case FamilyTE:
		return p[0] * let * dose * math.Exp(-p[1]*let)
	case FamilyNTE:
		return p[0]*let*dose*math.Exp(-p[1]*let) + (1-math.Exp(-cfg.Phi*dose))*p[2]
	}
	return math.NaN()
}

// CoefficientSet is the immutable result of one hazard-model fit: named
// parameter values plus their covariance matrix, indexed in the same order.
// Re-calibration produces a new CoefficientSet, never mutates one.
type CoefficientSet struct {
	Names  []string
	Values []float64
	Cov    *mat.SymDense
}

// Value returns the fitted value for a named parameter.
func (c CoefficientSet) Value(name string) (float64, bool) {
	for i, n := range c.Names {
		if n == name {
			return c.Values[i], true
		}
	}
	return 0, false
}

// DERFunc maps (dose, LET) to predicted excess prevalence.
type DERFunc func(dose, let float64) float64

// SlopeFunc is the derivative of a component's solo DER with respect to
// dose, for a fixed LET, evaluated at solo dose u.
type SlopeFunc func(u float64) float64

// DER returns the calibrated dose-effect function 1 - exp(-hazard) for
// family f and coefficient set c.
func (f ModelFamily) DER(cfg RunConfig, c CoefficientSet) DERFunc {
	p := c.Values
	return func(dose, let float64) float64 {
		return 1 - math.Exp(-f.Hazard(cfg, dose, let, p))
	}
}

// Slope returns the closed-form dose derivative of the calibrated DER for a
// fixed LET. For NTE and TE the LET dependence collapses into the single
// quantity aa = a1*LET*exp(-a2*LET); the low-LET hazard is linear in dose so
// its slope keeps the constant form alpha*exp(-alpha*u).
func (f ModelFamily) Slope(cfg RunConfig, c CoefficientSet, let float64) SlopeFunc {
	switch f {
	case FamilyLowLET:
		alpha := c.Values[0]
		return func(u float64) float64 {
			return alpha * math.Exp(-alpha*u)
		}
	case FamilyTE:
		aa := c.Values[0] * let * math.Exp(-c.Values[1]*let)
		return func(u float64) float64 {
			return aa * math.Exp(-aa*u)
		}
	case FamilyNTE:
		aa := c.Values[0] * let * math.Exp(-c.Values[1]*let)
		kk1 := c.Values[2]
		phi := cfg.Phi
		return func(u float64) float64 {
			return (aa + math.Exp(-phi*u)*kk1*phi) *
				math.Exp(-(aa*u + (1-math.Exp(-phi*u))*kk1))
		}
	}
	return nil
}

// ComponentModel supplies a mixture component's solo dose-effect curve and
// its dose derivative. CalibratedModel is the production implementation;
// tests may substitute synthetic models.
type ComponentModel interface {
	DER(dose, let float64) float64
	Slope(let float64) SlopeFunc
}

// CalibratedModel binds a model family and its fitted coefficients to the
// run configuration, implementing ComponentModel.
type CalibratedModel struct {
	Cfg    RunConfig
	Family ModelFamily
	Coeffs CoefficientSet
}

func (m CalibratedModel) DER(dose, let float64) float64 {
	return 1 - math.Exp(-m.Family.Hazard(m.Cfg, dose, let, m.Coeffs.Values))
}

func (m CalibratedModel) Slope(let float64) SlopeFunc {
	return m.Family.Slope(m.Cfg, m.Coeffs, let)
}
