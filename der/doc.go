// Package der calibrates single-ion dose-effect relationship (DER) models
// for radiation-induced tumor prevalence and predicts mixture prevalence
// curves from them.
//
// # Reading Guide
//
// Start with these three files to understand the pipeline:
//   - record.go: DoseRecord input rows, HZE/light-ion partitioning, beam grouping
//   - hazard.go: the three hazard-model families (low-LET, TE, NTE), their
//     calibrated DER closures and analytic dose-slope functions
//   - calibrate.go: weighted nonlinear least squares (Levenberg-Marquardt)
//     producing CoefficientSets with covariance and AIC/BIC
//
// # Mixture prediction
//
// Two additivity principles combine independently calibrated single-ion
// models into a mixture curve, without ever fitting mixture data:
//   - mixture.go: Simple Effect Additivity (SEA) — each component evaluated
//     at its own dose share and summed pointwise
//   - iea.go: Incremental Effect Additivity (IEA) — integrates a rate
//     equation whose right-hand side inverts each component's solo DER at
//     the current effect level by root-finding
//
// Cross-model comparison lives in crossval.go (leave-one-beam-out).
//
// Calibration must complete before the combinators run: combinators consume
// CoefficientSets by value and never read shared fit state. The run-wide
// constants (background prevalence Y0, NTE buildup rate phi) travel in a
// RunConfig constructed once per run (config.go).
package der
