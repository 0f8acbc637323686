package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the number of histogram bins used when none is given.
const DefaultBins = 50

// Histogram is the binned distribution of one numeric column. Edges has
// one more entry than Counts; the last bin includes its upper edge.
type Histogram struct {
	Column string
	Edges  []float64
	Counts []float64
}

// Histogram bins the present values of a numeric column into equal-width
// bins spanning its range.
func (r *Report) Histogram(column string, bins int) (*Histogram, error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	raw, err := r.Values(column)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	x := make([]float64, 0, len(raw))
	for _, v := range raw {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			x = append(x, v)
		}
	}
	sort.Float64s(x)

	lo, hi := 0.0, 1.0
	if len(x) > 0 {
		lo, hi = x[0], x[len(x)-1]
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)

	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := make([]float64, bins)
	if len(x) > 0 {
		counts = stat.Histogram(counts, dividers, x, nil)
	}
	return &Histogram{Column: column, Edges: edges, Counts: counts}, nil
}

// Histograms bins every listed column.
func (r *Report) Histograms(columns []string, bins int) ([]*Histogram, error) {
	out := make([]*Histogram, 0, len(columns))
	for _, c := range columns {
		h, err := r.Histogram(c, bins)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// WriteHistogramsCSV writes one column,bin_start,bin_end,count line per bin.
func WriteHistogramsCSV(w io.Writer, hists []*Histogram) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"column", "bin_start", "bin_end", "count"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, h := range hists {
		for i, c := range h.Counts {
			rec := []string{
				h.Column,
				strconv.FormatFloat(h.Edges[i], 'g', -1, 64),
				strconv.FormatFloat(h.Edges[i+1], 'g', -1, 64),
				strconv.FormatFloat(c, 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write %s: %w", h.Column, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
