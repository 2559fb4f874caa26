package der

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// DoseRecord is one cleaned observation from the single-ion or control
// tables. Prev is a probability-like prevalence in [0,1), never a
// percentage. Records are immutable once loaded.
type DoseRecord struct {
	Z       int     // ion charge
	LET     float64 // linear energy transfer, keV/µm
	Dose    float64 // cGy
	Prev    float64 // observed tumor prevalence
	NWeight float64 // calibration weight
}

// maxLightIonZ separates light ions (fit with the low-LET model) from the
// HZE subset (fit with the TE/NTE models).
const maxLightIonZ = 3

// HZESubset returns the records with ion charge Z > 3.
func HZESubset(recs []DoseRecord) []DoseRecord {
	var out []DoseRecord
	for _, r := range recs {
		if r.Z > maxLightIonZ {
			out = append(out, r)
		}
	}
	return out
}

// LightIonSubset returns the records with ion charge Z <= 3.
func LightIonSubset(recs []DoseRecord) []DoseRecord {
	var out []DoseRecord
	for _, r := range recs {
		if r.Z <= maxLightIonZ {
			out = append(out, r)
		}
	}
	return out
}

// BeamLETs returns the distinct LET values present in recs in increasing
// order. Each distinct LET corresponds to one physical ion beam and forms
// one cross-validation block.
func BeamLETs(recs []DoseRecord) []float64 {
	seen := map[float64]bool{}
	var lets []float64
	for _, r := range recs {
		if !seen[r.LET] {
			seen[r.LET] = true
			lets = append(lets, r.LET)
		}
	}
	sort.Float64s(lets)
	return lets
}

// LoadDoseRecords reads a CSV file with a header row containing at least the
// columns Z, dose, LET, Prev and NWeight (any order, extra columns ignored,
// header matching is case-insensitive).
func LoadDoseRecords(path string) ([]DoseRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dose records: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dose records header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"z", "dose", "let", "prev", "nweight"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("dose records missing column %q", name)
		}
	}

	var recs []DoseRecord
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dose records row %d: %w", row, err)
		}
		z, err := strconv.ParseFloat(record[col["z"]], 64)
		if err != nil {
			return nil, fmt.Errorf("dose records row %d: invalid Z: %w", row, err)
		}
		dose, err := strconv.ParseFloat(record[col["dose"]], 64)
		if err != nil {
			return nil, fmt.Errorf("dose records row %d: invalid dose: %w", row, err)
		}
		let, err := strconv.ParseFloat(record[col["let"]], 64)
		if err != nil {
			return nil, fmt.Errorf("dose records row %d: invalid LET: %w", row, err)
		}
		prev, err := strconv.ParseFloat(record[col["prev"]], 64)
		if err != nil {
			return nil, fmt.Errorf("dose records row %d: invalid Prev: %w", row, err)
		}
		if prev < 0 || prev >= 1 {
			return nil, fmt.Errorf("dose records row %d: Prev must be a prevalence in [0,1), got %g", row, prev)
		}
		weight, err := strconv.ParseFloat(record[col["nweight"]], 64)
		if err != nil {
			return nil, fmt.Errorf("dose records row %d: invalid NWeight: %w", row, err)
		}
		recs = append(recs, DoseRecord{Z: int(z), LET: let, Dose: dose, Prev: prev, NWeight: weight})
	}
	logrus.Debugf("loaded %d dose records from %s", len(recs), path)
	return recs, nil
}

// BackgroundPrevalence derives the background prevalence Y0 from control
// records as the NWeight-weighted mean prevalence over zero-dose rows. This
// replaces the positional row/column lookup used by the reference dataset
// with a semantic one.
func BackgroundPrevalence(controls []DoseRecord) (float64, error) {
	var sum, weight float64
	for _, r := range controls {
		if r.Dose == 0 {
			sum += r.NWeight * r.Prev
			weight += r.NWeight
		}
	}
	if weight == 0 {
		return 0, fmt.Errorf("no zero-dose control records with positive weight")
	}
	return sum / weight, nil
}
