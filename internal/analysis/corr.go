package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// CorrMatrix holds a symmetric Pearson correlation matrix.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Correlation computes Pearson correlations among the given numeric
// columns. Each pair uses only the rows where both values are present; a
// pair with fewer than two such rows or no variance gets NaN.
func (r *Report) Correlation(columns []string) (*CorrMatrix, error) {
	series := make([][]float64, len(columns))
	for i, c := range columns {
		v, err := r.Values(c)
		if err != nil {
			return nil, fmt.Errorf("correlation: %w", err)
		}
		series[i] = v
	}
	n := len(columns)
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			rv := pairwise(series[a], series[b])
			if a == b && !math.IsNaN(rv) {
				rv = 1
			}
			vals[a][b] = rv
			vals[b][a] = rv
		}
	}
	return &CorrMatrix{Columns: append([]string(nil), columns...), Values: vals}, nil
}

func pairwise(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) || math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsInf(r, 0) {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, r))
}

// TopPairs lists up to limit off-diagonal pairs by descending |r|,
// skipping undefined correlations.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.IsNaN(m.Values[i][j]) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// WriteCSV writes the matrix with column names as the header row and as the
// first cell of each row.
func (m *CorrMatrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, m.Columns...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, name := range m.Columns {
		rec := make([]string, 0, len(m.Columns)+1)
		rec = append(rec, name)
		for _, v := range m.Values[i] {
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
