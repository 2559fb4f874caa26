package der

import "math"

// Incremental Effect Additivity: the mixture's cumulative effect I(dose)
// obeys dI/d(dose) = sum_i ratio_i * slope_i(u_i), where u_i is the solo
// dose at which component i's own DER equals the current effect level I.
// Every component therefore contributes at a common effect, not a common
// dose, which makes the right-hand side implicit: each evaluation inverts
// every component's DER by root-finding.

const (
	// Components at or below this LET are treated as light ions and merged
	// into one synthetic low-LET component.
	lightIonLETCutoff = 3.0

	// Solo-dose inversion searches [0, inversionBracketHi] cGy first and
	// doubles the upper end up to inversionBracketMax before giving up.
	inversionBracketHi  = 20000.0
	inversionBracketMax = 1.28e6
	inversionTolerance  = 1e-10
	maxBisectIterations = 200

	// Cash-Karp RK4(5) step control.
	odeRelTolerance = 1e-8
	odeAbsTolerance = 1e-12
	maxODESteps     = 200000
	minODEStep      = 1e-13
)

// ieaComponent is one aggregated mixture component prepared for
// integration: its solo curve for inversion and its slope at fixed LET.
type ieaComponent struct {
	let   float64
	ratio float64
	model ComponentModel
	slope SlopeFunc
}

// aggregateLightIons splits spec into the HZE components and at most one
// synthetic light-ion component whose LET and dose ratio are the sums over
// all light constituents (LET <= lightIonLETCutoff, plus the first
// component when the spec flags it as low-LET). Summing LET values is an
// approximation inherited from the source model, not a physical law; it is
// isolated here so the policy can be swapped without touching the
// integrator.
func aggregateLightIons(spec MixtureSpec) (hzeLETs, hzeRatios []float64, lowLET, lowRatio float64, hasLow bool) {
	for i := range spec.LETs {
		if (i == 0 && spec.IncludesLowLET) || spec.LETs[i] <= lightIonLETCutoff {
			lowLET += spec.LETs[i]
			lowRatio += spec.Ratios[i]
			hasLow = true
			continue
		}
		hzeLETs = append(hzeLETs, spec.LETs[i])
		hzeRatios = append(hzeRatios, spec.Ratios[i])
	}
	return hzeLETs, hzeRatios, lowLET, lowRatio, hasLow
}

// invertSoloDose solves model.DER(u, let) = target for the equivalent solo
// dose u by bisection, doubling the upper bracket when the root lies beyond
// it. The DER families are strictly increasing in dose, so a bracket either
// exists or the target exceeds the component's saturation effect, which is
// a *RootNotFoundError, never a silent truncation.
func invertSoloDose(model ComponentModel, let, target float64) (float64, error) {
	if target <= 0 {
		return 0, nil
	}
	lo, hi := 0.0, inversionBracketHi
	for model.DER(hi, let) < target {
		hi *= 2
		if hi > inversionBracketMax {
			return 0, &RootNotFoundError{LET: let, Target: target}
		}
		lo = hi / 2
	}
	for iter := 0; iter < maxBisectIterations && hi-lo > inversionTolerance*(1+hi); iter++ {
		mid := 0.5 * (lo + hi)
		if model.DER(mid, let) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

// mixtureRate is the IEA right-hand side at effect level I. It is a pure
// function of I (the rate equation is autonomous); the integrator never
// sees how the rate is computed.
func mixtureRate(comps []ieaComponent, effect float64) (float64, error) {
	var rate float64
	for _, c := range comps {
		u, err := invertSoloDose(c.model, c.let, effect)
		if err != nil {
			return 0, err
		}
		rate += c.ratio * c.slope(u)
	}
	return rate, nil
}

// Cash-Karp RK4(5) tableau.
var (
	ckA = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	ckB5 = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	ckB4 = [6]float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4}
)

// IEACurve integrates the Incremental Effect Additivity rate equation from
// dose 0 and samples the cumulative effect at every point of doseGrid,
// which must be non-decreasing and start at or above 0. hze models every
// HZE component; low models the synthetic light-ion component when the spec
// contains one.
//
// Failure modes, per the rate-equation contract: *InvalidMixtureSpecError
// before any integration, *RootNotFoundError when a component's solo DER
// cannot reach the current effect level, and *IntegrationFailureError when
// the step controller exhausts its budget.
func IEACurve(doseGrid []float64, spec MixtureSpec, hze, low ComponentModel) ([]float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	for i := 1; i < len(doseGrid); i++ {
		if doseGrid[i] < doseGrid[i-1] {
			return nil, &InvalidMixtureSpecError{Reason: "dose grid must be non-decreasing"}
		}
	}
	if len(doseGrid) > 0 && doseGrid[0] < 0 {
		return nil, &InvalidMixtureSpecError{Reason: "dose grid must be non-negative"}
	}

	hzeLETs, hzeRatios, lowLET, lowRatio, hasLow := aggregateLightIons(spec)
	if hasLow && low == nil {
		return nil, &InvalidMixtureSpecError{Reason: "spec includes light-ion components but no low-LET model was supplied"}
	}
	comps := make([]ieaComponent, 0, len(hzeLETs)+1)
	if hasLow {
		comps = append(comps, ieaComponent{let: lowLET, ratio: lowRatio, model: low, slope: low.Slope(lowLET)})
	}
	for i := range hzeLETs {
		comps = append(comps, ieaComponent{
			let:   hzeLETs[i],
			ratio: hzeRatios[i],
			model: hze,
			slope: hze.Slope(hzeLETs[i]),
		})
	}

	out := make([]float64, len(doseGrid))
	if len(doseGrid) == 0 {
		return out, nil
	}
	dose, effect := 0.0, 0.0
	maxDose := doseGrid[len(doseGrid)-1]
	// The NTE buildup term makes the rate steep near dose 0, so start small
	// and let the controller grow the step.
	h := math.Min(1e-4, math.Max(maxDose/1e4, minODEStep))
	steps := 0

	var k [6]float64
	for gi, d := range doseGrid {
		for dose < d {
			if steps >= maxODESteps {
				return nil, &IntegrationFailureError{LastDose: dose}
			}
			steps++
			hTry := math.Min(h, d-dose)

			for s := 0; s < 6; s++ {
				y := effect
				for j := 0; j < s; j++ {
					y += hTry * ckA[s][j] * k[j]
				}
				rate, err := mixtureRate(comps, y)
				if err != nil {
					return nil, err
				}
				k[s] = rate
			}

			var y5, y4 float64
			for s := 0; s < 6; s++ {
				y5 += ckB5[s] * k[s]
				y4 += ckB4[s] * k[s]
			}
			next := effect + hTry*y5
			errEst := math.Abs(hTry * (y5 - y4))
			tol := odeAbsTolerance + odeRelTolerance*math.Abs(next)

			if errEst <= tol {
				dose += hTry
				effect = next
			}
			if errEst == 0 {
				h = hTry * 5
			} else {
				factor := 0.9 * math.Pow(tol/errEst, 0.2)
				h = hTry * math.Min(5, math.Max(0.2, factor))
			}
			if h < minODEStep {
				return nil, &IntegrationFailureError{LastDose: dose}
			}
		}
		out[gi] = effect
	}
	return out, nil
}
