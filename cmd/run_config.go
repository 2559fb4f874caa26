package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dermix/dermix/der"
)

// readRunConfig parses a run-config YAML (background_prevalence, phi) with
// strict field checking. Omitted fields keep their defaults.
func readRunConfig(path string) (der.RunConfig, error) {
	cfg := der.DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse run config: %w", err)
	}
	return cfg, nil
}
