package analysis

import (
	"math"
	"strings"
)

// NumericColumns returns the numeric columns of rep in file order.
func NumericColumns(rep *Report) []string {
	var out []string
	for _, c := range rep.Cols {
		if c.Kind == KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// HistogramColumns returns the numeric columns minus exclude. Names in
// exclude that are not columns of rep are ignored.
func HistogramColumns(rep *Report, exclude []string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	var out []string
	for _, name := range NumericColumns(rep) {
		if _, ok := skip[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// CorrelationColumns returns the numeric columns holding more than one
// distinct value. Constant columns have no defined correlation.
func CorrelationColumns(rep *Report) []string {
	var out []string
	for _, name := range NumericColumns(rep) {
		if distinct(rep.series[name]) > 1 {
			out = append(out, name)
		}
	}
	return out
}

// ExcludePrefixed returns the columns that do not start with prefix.
func ExcludePrefixed(columns []string, prefix string) []string {
	if prefix == "" {
		return append([]string(nil), columns...)
	}
	var out []string
	for _, c := range columns {
		if !strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Prefixed returns the columns of rep that start with prefix.
func Prefixed(rep *Report, prefix string) []string {
	if prefix == "" {
		return nil
	}
	var out []string
	for _, c := range rep.Cols {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c.Name)
		}
	}
	return out
}

// distinct counts the unique non-NaN values, stopping at two.
func distinct(vals []float64) int {
	first, seen := 0.0, false
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return 2
		}
	}
	if seen {
		return 1
	}
	return 0
}
