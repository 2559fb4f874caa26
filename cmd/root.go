package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dermix/dermix/der"
)

var (
	// Run-wide configuration flags
	logLevel   string  // Log verbosity level
	configPath string  // Optional run-config YAML (background prevalence, phi)
	y0Flag     float64 // Background prevalence override
	phiFlag    float64 // NTE buildup rate override

	// Calibration / cross-validation flags
	ionsPath     string    // Single-ion CSV path
	controlsPath string    // Control-group CSV path (derives Y0 when given)
	familyFlag   string    // Model family: nte, te, low-let, all
	startGuess   []float64 // Initial parameter guesses (single family only)
	coeffsOut    string    // Where calibrate writes the coefficients YAML

	// Mixture prediction flags
	coeffsPath     string    // Coefficients YAML produced by calibrate
	mixLETs        []float64 // Component LET values (keV/µm)
	mixRatios      []float64 // Component dose ratios, must sum to 1
	includesLowLET bool      // First component uses the low-LET model
	declaredN      int       // Declared component count (0 = unchecked)
	hzeFamilyFlag  string    // HZE model family for IEA: nte or te
	maxDose        float64   // Top of the dose grid (cGy)
	doseStep       float64   // Dose grid spacing (cGy)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "dermix",
	Short: "Calibrate single-ion dose-effect models and predict mixture prevalence curves",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveRunConfig layers the run constants: built-in defaults, then the
// config file, then explicit flags.
func resolveRunConfig(cmd *cobra.Command) der.RunConfig {
	cfg := der.DefaultRunConfig()
	if configPath != "" {
		fileCfg, err := readRunConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to read run config: %v", err)
		}
		cfg = fileCfg
	}
	if cmd.Flags().Changed("y0") {
		cfg.Y0 = y0Flag
	}
	if cmd.Flags().Changed("phi") {
		cfg.Phi = phiFlag
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid run config: %v", err)
	}
	return cfg
}

func parseFamily(name string) (der.ModelFamily, bool) {
	switch name {
	case "nte":
		return der.FamilyNTE, true
	case "te":
		return der.FamilyTE, true
	case "low", "low-let":
		return der.FamilyLowLET, true
	}
	return 0, false
}

// defaultStart returns the reference start values used when --start is not
// given.
func defaultStart(family der.ModelFamily) []float64 {
	switch family {
	case der.FamilyNTE:
		return []float64{9e-5, 0.01, 0.05}
	case der.FamilyTE:
		return []float64{9e-5, 0.01}
	case der.FamilyLowLET:
		return []float64{0.005}
	}
	return nil
}

func mustLoadRecords(path string) []der.DoseRecord {
	recs, err := der.LoadDoseRecords(path)
	if err != nil {
		logrus.Fatalf("Failed to load %s: %v", path, err)
	}
	return recs
}

// calibrateCmd fits one or all hazard-model families to single-ion data.
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit hazard-model coefficients to single-ion data",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := resolveRunConfig(cmd)
		recs := mustLoadRecords(ionsPath)

		if controlsPath != "" && !cmd.Flags().Changed("y0") {
			controls := mustLoadRecords(controlsPath)
			y0, err := der.BackgroundPrevalence(controls)
			if err != nil {
				logrus.Fatalf("Failed to derive background prevalence: %v", err)
			}
			cfg.Y0 = y0
			logrus.Infof("Background prevalence from zero-dose controls: %.5f", y0)
		}

		var families []der.ModelFamily
		if familyFlag == "all" {
			families = []der.ModelFamily{der.FamilyLowLET, der.FamilyTE, der.FamilyNTE}
		} else {
			family, ok := parseFamily(familyFlag)
			if !ok {
				logrus.Fatalf("Unknown model family %q (want nte, te, low-let or all)", familyFlag)
			}
			families = []der.ModelFamily{family}
		}
		if len(startGuess) > 0 && len(families) != 1 {
			logrus.Fatalf("--start requires a single --family")
		}

		out := &CoefficientsFile{Version: "1", Y0: cfg.Y0, Phi: cfg.Phi}
		for _, family := range families {
			subset := der.HZESubset(recs)
			if family == der.FamilyLowLET {
				subset = der.LightIonSubset(recs)
			}
			start := defaultStart(family)
			if len(startGuess) > 0 {
				start = startGuess
			}
			fit, err := der.Calibrate(cfg, family, subset, start)
			if err != nil {
				logrus.Fatalf("%s calibration failed: %v", family, err)
			}
			printFitResult(fit)
			out.Models = append(out.Models, ModelCoeffs{
				Family: familyKey(family),
				Params: fit.Coeffs.Names,
				Values: fit.Coeffs.Values,
			})
		}
		if coeffsOut != "" {
			if err := WriteCoefficients(coeffsOut, out); err != nil {
				logrus.Fatalf("Failed to write coefficients: %v", err)
			}
			logrus.Infof("Wrote coefficients to %s", coeffsOut)
		}
	},
}

// crossvalCmd scores the HZE families by leave-one-beam-out refits.
var crossvalCmd = &cobra.Command{
	Use:   "crossval",
	Short: "Leave-one-beam-out cross-validation of the HZE model families",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := resolveRunConfig(cmd)
		recs := mustLoadRecords(ionsPath)

		var families []der.ModelFamily
		if familyFlag == "all" {
			families = []der.ModelFamily{der.FamilyTE, der.FamilyNTE}
		} else {
			family, ok := parseFamily(familyFlag)
			if !ok {
				logrus.Fatalf("Unknown model family %q (want nte, te or all)", familyFlag)
			}
			families = []der.ModelFamily{family}
		}
		for _, family := range families {
			res, err := der.CrossValidate(cfg, family, recs, defaultStart(family))
			if err != nil {
				logrus.Fatalf("%s cross-validation failed: %v", family, err)
			}
			printCrossVal(res)
		}
	},
}

// mixtureModels loads the coefficients file and builds the component models
// the combinators consume.
func mixtureModels(hzeFamily der.ModelFamily) (der.RunConfig, der.ComponentModel, der.ComponentModel) {
	cf, err := ReadCoefficients(coeffsPath)
	if err != nil {
		logrus.Fatalf("Failed to read coefficients: %v", err)
	}
	cfg := cf.RunConfig()
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid run constants in %s: %v", coeffsPath, err)
	}

	hzeCoeffs, ok := cf.CoefficientSet(hzeFamily)
	if !ok {
		logrus.Fatalf("No %s coefficients in %s", hzeFamily, coeffsPath)
	}
	hze := der.CalibratedModel{Cfg: cfg, Family: hzeFamily, Coeffs: hzeCoeffs}

	var low der.ComponentModel
	if lowCoeffs, ok := cf.CoefficientSet(der.FamilyLowLET); ok {
		low = der.CalibratedModel{Cfg: cfg, Family: der.FamilyLowLET, Coeffs: lowCoeffs}
	}
	return cfg, hze, low
}

func mixtureSpec() der.MixtureSpec {
	return der.MixtureSpec{
		LETs:           mixLETs,
		Ratios:         mixRatios,
		IncludesLowLET: includesLowLET,
		N:              declaredN,
	}
}

// seaCmd predicts a mixture curve by Simple Effect Additivity. HZE
// components always use the NTE model under SEA.
var seaCmd = &cobra.Command{
	Use:   "sea",
	Short: "Predict a mixture dose-effect curve by Simple Effect Additivity",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		_, hze, low := mixtureModels(der.FamilyNTE)
		grid := doseGrid(maxDose, doseStep)
		curve, err := der.SEACurve(grid, mixtureSpec(), hze, low)
		if err != nil {
			logrus.Fatalf("SEA prediction failed: %v", err)
		}
		printCurve(grid, curve)
	},
}

// ieaCmd predicts a mixture curve by Incremental Effect Additivity.
var ieaCmd = &cobra.Command{
	Use:   "iea",
	Short: "Predict a mixture dose-effect curve by Incremental Effect Additivity",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		hzeFamily, ok := parseFamily(hzeFamilyFlag)
		if !ok || hzeFamily == der.FamilyLowLET {
			logrus.Fatalf("Unknown HZE model family %q (want nte or te)", hzeFamilyFlag)
		}
		_, hze, low := mixtureModels(hzeFamily)
		grid := doseGrid(maxDose, doseStep)
		curve, err := der.IEACurve(grid, mixtureSpec(), hze, low)
		if err != nil {
			logrus.Fatalf("IEA prediction failed: %v", err)
		}
		printCurve(grid, curve)
	},
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Run-config YAML path")
	rootCmd.PersistentFlags().Float64Var(&y0Flag, "y0", der.DefaultRunConfig().Y0, "Background prevalence override")
	rootCmd.PersistentFlags().Float64Var(&phiFlag, "phi", der.DefaultRunConfig().Phi, "NTE buildup rate override (per cGy)")

	calibrateCmd.Flags().StringVar(&ionsPath, "ions", "", "Single-ion records CSV")
	calibrateCmd.Flags().StringVar(&controlsPath, "controls", "", "Control-group records CSV (derives Y0)")
	calibrateCmd.Flags().StringVar(&familyFlag, "family", "all", "Model family: nte, te, low-let or all")
	calibrateCmd.Flags().Float64SliceVar(&startGuess, "start", nil, "Comma-separated initial parameter guesses")
	calibrateCmd.Flags().StringVar(&coeffsOut, "out", "", "Write fitted coefficients to this YAML file")

	crossvalCmd.Flags().StringVar(&ionsPath, "ions", "", "Single-ion records CSV")
	crossvalCmd.Flags().StringVar(&familyFlag, "family", "all", "Model family: nte, te or all")

	for _, mixCmd := range []*cobra.Command{seaCmd, ieaCmd} {
		mixCmd.Flags().StringVar(&coeffsPath, "coefficients", defaultCoefficientsPath, "Coefficients YAML from calibrate")
		mixCmd.Flags().Float64SliceVar(&mixLETs, "lets", nil, "Comma-separated component LET values (keV/µm)")
		mixCmd.Flags().Float64SliceVar(&mixRatios, "ratios", nil, "Comma-separated component dose ratios (must sum to 1)")
		mixCmd.Flags().BoolVar(&includesLowLET, "includes-low-let", false, "First component uses the low-LET model")
		mixCmd.Flags().IntVar(&declaredN, "n", 0, "Declared component count for validation (0 = unchecked)")
		mixCmd.Flags().Float64Var(&maxDose, "max-dose", 100, "Top of the dose grid (cGy)")
		mixCmd.Flags().Float64Var(&doseStep, "dose-step", 1, "Dose grid spacing (cGy)")
	}
	ieaCmd.Flags().StringVar(&hzeFamilyFlag, "hze-family", "nte", "HZE model family: nte or te")

	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(crossvalCmd)
	rootCmd.AddCommand(seaCmd)
	rootCmd.AddCommand(ieaCmd)
}
