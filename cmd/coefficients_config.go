package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dermix/dermix/der"
)

const defaultCoefficientsPath = "coefficients.yaml"

// CoefficientsFile is the YAML document written by `calibrate` and read by
// the mixture commands. It carries the run constants the coefficients were
// fitted under, so a prediction run reuses the same Y0 and phi.
type CoefficientsFile struct {
	Version string        `yaml:"version"`
	Y0      float64       `yaml:"background_prevalence"`
	Phi     float64       `yaml:"phi"`
	Models  []ModelCoeffs `yaml:"models"`
}

// ModelCoeffs stores one family's fitted parameter values by name.
type ModelCoeffs struct {
	Family string    `yaml:"family"`
	Params []string  `yaml:"params"`
	Values []float64 `yaml:"values"`
}

// ReadCoefficients parses a coefficients YAML with strict field checking so
// typos cause errors instead of silent zero values.
func ReadCoefficients(path string) (*CoefficientsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coefficients file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var cf CoefficientsFile
	if err := decoder.Decode(&cf); err != nil {
		return nil, fmt.Errorf("parse coefficients file: %w", err)
	}
	return &cf, nil
}

// WriteCoefficients writes the coefficients YAML to path.
func WriteCoefficients(path string, cf *CoefficientsFile) error {
	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal coefficients: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write coefficients file: %w", err)
	}
	return nil
}

// RunConfig reconstructs the run constants the coefficients were fitted
// under, falling back to the defaults for fields the file omits.
func (cf *CoefficientsFile) RunConfig() der.RunConfig {
	cfg := der.DefaultRunConfig()
	if cf.Y0 != 0 {
		cfg.Y0 = cf.Y0
	}
	if cf.Phi != 0 {
		cfg.Phi = cf.Phi
	}
	return cfg
}

// CoefficientSet returns the stored coefficients for family, if present.
func (cf *CoefficientsFile) CoefficientSet(family der.ModelFamily) (der.CoefficientSet, bool) {
	key := familyKey(family)
	for _, m := range cf.Models {
		if m.Family == key {
			return der.CoefficientSet{
				Names:  append([]string(nil), m.Params...),
				Values: append([]float64(nil), m.Values...),
			}, true
		}
	}
	return der.CoefficientSet{}, false
}

// familyKey is the YAML spelling of a model family.
func familyKey(f der.ModelFamily) string {
	return strings.ToLower(f.String())
}
