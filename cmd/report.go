package cmd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/dermix/dermix/der"
)

// doseGrid builds the evenly spaced dose grid [0, maxDose] with the given
// step.
func doseGrid(maxDose, step float64) []float64 {
	n := int(math.Floor(maxDose/step+0.5)) + 1
	if n < 2 {
		return []float64{0}
	}
	grid := make([]float64, n)
	floats.Span(grid, 0, maxDose)
	return grid
}

func printFitResult(res *der.FitResult) {
	fmt.Printf("=== %s calibration ===\n", res.Family)
	for i, name := range res.Coeffs.Names {
		se := math.NaN()
		if res.Coeffs.Cov != nil {
			se = math.Sqrt(res.Coeffs.Cov.At(i, i))
		}
		fmt.Printf("%-10s : %12.6g  (s.e. %.3g)\n", name, res.Coeffs.Values[i], se)
	}
	fmt.Printf("records      : %d\n", res.N)
	fmt.Printf("weighted RSS : %.6g\n", res.RSS)
	fmt.Printf("AIC / BIC    : %.4f / %.4f\n", res.AIC, res.BIC)
	fmt.Printf("iterations   : %d\n", res.Iterations)
}

func printCrossVal(res *der.CrossValResult) {
	fmt.Printf("=== %s leave-one-beam-out ===\n", res.Family)
	for _, fold := range res.Folds {
		if fold.Err != nil {
			fmt.Printf("LET %7.1f : FAILED (%v)\n", fold.LET, fold.Err)
			continue
		}
		fmt.Printf("LET %7.1f : %d held out, weighted SqErr %.6g\n", fold.LET, fold.Held, fold.SqErr)
	}
	fmt.Printf("weighted MSE : %.6g (%d failed folds)\n", res.WeightedMSE, res.Failures)
}

// printCurve emits the sampled mixture curve as CSV on stdout.
func printCurve(grid, curve []float64) {
	fmt.Println("dose_cGy,prevalence")
	for i := range grid {
		fmt.Printf("%g,%.8g\n", grid[i], curve[i])
	}
}
