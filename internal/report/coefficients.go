package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Coefficient is the learned weight of one feature.
type Coefficient struct {
	Feature string
	Value   float64
}

// Coefficients pairs feature names with learned weights, sorted by weight
// from largest to smallest.
func Coefficients(features []string, coef []float64) ([]Coefficient, error) {
	if len(features) != len(coef) {
		return nil, fmt.Errorf("%d feature names for %d coefficients", len(features), len(coef))
	}
	out := make([]Coefficient, len(coef))
	for i, v := range coef {
		out[i] = Coefficient{Feature: features[i], Value: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, nil
}

// WriteCoefficientsCSV writes a feature,Coefficients table.
func WriteCoefficientsCSV(w io.Writer, coefs []Coefficient) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"feature", "Coefficients"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range coefs {
		if err := cw.Write([]string{c.Feature, strconv.FormatFloat(c.Value, 'g', -1, 64)}); err != nil {
			return fmt.Errorf("write %s: %w", c.Feature, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
