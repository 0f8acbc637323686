// Package report turns fitted hyperparameter searches into compact tables:
// the ranked top-N configurations and the coefficients of a fitted model.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Table is a column-oriented results table: column name to one value per
// evaluated configuration.
type Table = map[string][]any

// Search is anything that can be fit and then report per-configuration
// cross-validation results.
type Search interface {
	// Fit evaluates every configuration on (X, y). returnTrainScore asks the
	// search to also record mean_train_<key> columns.
	Fit(ctx context.Context, X mat.Matrix, y []float64, returnTrainScore bool) error
	// CVResults returns the results table of the last Fit.
	CVResults() Table
}

// DefaultScoringKey is the key of a search configured with one unnamed scorer.
const DefaultScoringKey = "score"

// Options selects what BuildTopModels reports.
type Options struct {
	// AdditionalColumns are appended as rows in the given order.
	AdditionalColumns []string
	// ReturnTrainScore fits with train scores and reports mean_train_<key>.
	ReturnTrainScore bool
	// ScoringKey picks the metric; empty means DefaultScoringKey.
	ScoringKey string
}

// Row is one reported attribute across the selected configurations.
type Row struct {
	Name   string
	Values []any
}

// TopModels is the transposed summary of the best configurations: one column
// per configuration ordered by rank, one row per attribute. The rank
// attribute labels the columns.
type TopModels struct {
	RankColumn string
	Ranks      []int
	Rows       []Row
}

// BuildTopModels fits search on (X, y) and returns its n best configurations
// by the rank of opt.ScoringKey. Asking for more configurations than were
// evaluated returns all of them. The search stays fitted afterwards, also
// when a requested metric or column turns out to be missing.
func BuildTopModels(ctx context.Context, search Search, n int, X mat.Matrix, y []float64, opt Options) (*TopModels, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, n)
	}
	key := opt.ScoringKey
	if key == "" {
		key = DefaultScoringKey
	}
	if err := search.Fit(ctx, X, y, opt.ReturnTrainScore); err != nil {
		return nil, fmt.Errorf("fit search: %w", err)
	}
	return selectTop(search.CVResults(), n, key, opt)
}

func selectTop(res Table, n int, key string, opt Options) (*TopModels, error) {
	rankCol := "rank_test_" + key
	metricCols := []string{rankCol, "mean_test_" + key}
	if opt.ReturnTrainScore {
		metricCols = append(metricCols, "mean_train_"+key)
	}
	for _, c := range metricCols {
		if _, ok := res[c]; !ok {
			return nil, &MissingMetricError{ScoringKey: key, Column: c, Available: scoringKeys(res)}
		}
	}

	attrs := []string{"mean_test_" + key, "mean_fit_time"}
	if opt.ReturnTrainScore {
		attrs = append(attrs, "mean_train_"+key)
	}
	attrs = append(attrs, opt.AdditionalColumns...)
	for _, c := range attrs {
		if _, ok := res[c]; !ok {
			return nil, &MissingColumnError{Column: c}
		}
	}

	rawRanks := res[rankCol]
	ranks := make([]int, len(rawRanks))
	for i, v := range rawRanks {
		r, err := toRank(v)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", rankCol, i, err)
		}
		ranks[i] = r
	}
	for _, c := range attrs {
		if len(res[c]) != len(ranks) {
			return nil, fmt.Errorf("column %q has %d values, %s has %d", c, len(res[c]), rankCol, len(ranks))
		}
	}

	order := make([]int, len(ranks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ranks[order[a]] < ranks[order[b]] })
	order = order[:min(n, len(order))]

	out := &TopModels{RankColumn: rankCol, Ranks: make([]int, len(order))}
	for j, i := range order {
		out.Ranks[j] = ranks[i]
	}
	for _, c := range attrs {
		vals := make([]any, len(order))
		for j, i := range order {
			vals[j] = res[c][i]
		}
		out.Rows = append(out.Rows, Row{Name: c, Values: vals})
	}
	return out, nil
}

// Index returns the attribute names in report order, starting with the rank
// column that labels the configurations.
func (t *TopModels) Index() []string {
	out := make([]string, 0, len(t.Rows)+1)
	out = append(out, t.RankColumn)
	for _, r := range t.Rows {
		out = append(out, r.Name)
	}
	return out
}

// NumModels returns the number of reported configurations.
func (t *TopModels) NumModels() int { return len(t.Ranks) }

// Row returns the named attribute row.
func (t *TopModels) Row(name string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}

func toRank(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, fmt.Errorf("rank %v is not an integer", x)
		}
		return int(x), nil
	default:
		return 0, fmt.Errorf("rank has unsupported type %T", v)
	}
}

// scoringKeys lists the metrics a results table was built with.
func scoringKeys(res Table) []string {
	var keys []string
	for c := range res {
		if k, ok := strings.CutPrefix(c, "rank_test_"); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
