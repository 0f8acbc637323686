package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/KaramelBytes/scoretune/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func ridgeFactory(p Params) (Estimator, error) {
	return model.FromParams(model.KindRidge, p)
}

// linearData returns y = 3*x0 - 2*x1 + noise-free offset for n rows.
func linearData(n int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := float64(i)
		x1 := math.Sin(float64(i))
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y[i] = 3*x0 - 2*x1 + 1
	}
	return X, y
}

func TestKFold(t *testing.T) {
	folds, err := KFold(10, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].Test)
	assert.Equal(t, []int{4, 5, 6}, folds[1].Test)
	assert.Equal(t, []int{7, 8, 9}, folds[2].Test)
	assert.Len(t, folds[0].Train, 6)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].Train)

	_, err = KFold(3, 4)
	assert.Error(t, err)
	_, err = KFold(10, 1)
	assert.Error(t, err)
}

func TestGridCandidatesOrder(t *testing.T) {
	cands, err := Grid{"b": {1, 2}, "a": {10, 20}}.Candidates()
	require.NoError(t, err)
	assert.Equal(t, []Params{
		{"a": 10, "b": 1},
		{"a": 10, "b": 2},
		{"a": 20, "b": 1},
		{"a": 20, "b": 2},
	}, cands)

	_, err = Grid{}.Candidates()
	assert.Error(t, err)
	_, err = Grid{"a": nil}.Candidates()
	assert.Error(t, err)
}

func TestRandomCandidates(t *testing.T) {
	discrete := Random{Distributions: map[string]Distribution{"alpha": Choice{1, 2, 3, 4, 5}}, NIter: 3, Seed: 123}
	cands, err := discrete.Candidates()
	require.NoError(t, err)
	require.Len(t, cands, 3)
	seen := map[float64]bool{}
	for _, c := range cands {
		assert.False(t, seen[c["alpha"]], "discrete draws must not repeat")
		seen[c["alpha"]] = true
	}

	capped := discrete
	capped.NIter = 50
	cands, err = capped.Candidates()
	require.NoError(t, err)
	assert.Len(t, cands, 5)

	cont := Random{Distributions: map[string]Distribution{"alpha": LogUniform{Low: 1e-3, High: 1e3}}, NIter: 30, Seed: 123}
	a, err := cont.Candidates()
	require.NoError(t, err)
	b, err := cont.Candidates()
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must give the same draws")
	for _, c := range a {
		assert.GreaterOrEqual(t, c["alpha"], 1e-3)
		assert.LessOrEqual(t, c["alpha"], 1e3)
	}

	_, err = Random{Distributions: map[string]Distribution{"alpha": LogUniform{1e-3, 1}}}.Candidates()
	assert.Error(t, err)
}

func TestMinRank(t *testing.T) {
	assert.Equal(t, []int{3, 1, 1, 4}, minRank([]float64{0.5, 0.9, 0.9, 0.1}))
	assert.Equal(t, []int{2, 3, 1}, minRank([]float64{0.2, math.NaN(), 0.3}))
}

func TestFitResultsTable(t *testing.T) {
	X, y := linearData(20)
	opt := DefaultOptions()
	opt.Folds = 4
	opt.NJobs = 2
	s := NewGridSearch(ridgeFactory, Grid{"alpha": {0.01, 1, 100}}, opt)

	require.NoError(t, s.Fit(context.Background(), X, y, true))
	res := s.CVResults()
	for _, col := range []string{
		"mean_fit_time", "std_fit_time", "mean_score_time", "std_score_time",
		"param_alpha", "params",
		"split0_test_score", "split3_test_score", "mean_test_score", "std_test_score", "rank_test_score",
		"split0_train_score", "mean_train_score", "std_train_score",
	} {
		require.Contains(t, res, col)
		assert.Len(t, res[col], 3, col)
	}
	assert.Equal(t, []any{0.01, 1.0, 100.0}, res["param_alpha"])
	assert.Equal(t, 1, res["rank_test_score"][0], "least regularized fits a noiseless line best")
	assert.Equal(t, 0, s.BestIndex())
	assert.Equal(t, Params{"alpha": 0.01}, s.BestParams())

	best, err := s.BestEstimator()
	require.NoError(t, err)
	lin := best.(*model.Linear)
	assert.InDelta(t, 3, lin.Coef[0], 1e-2)
}

func TestFitWithoutTrainScores(t *testing.T) {
	X, y := linearData(12)
	opt := DefaultOptions()
	opt.Folds = 3
	s := NewGridSearch(ridgeFactory, Grid{"alpha": {1, 2}}, opt)
	require.NoError(t, s.Fit(context.Background(), X, y, false))
	assert.NotContains(t, s.CVResults(), "mean_train_score")
}

func TestFitMultiMetric(t *testing.T) {
	X, y := linearData(15)
	opt := Options{
		Folds:   3,
		Scoring: map[string]string{"RMSE": "neg_root_mean_squared_error", "R squared": "r2"},
		Refit:   "RMSE",
	}
	s := NewRandomizedSearch(ridgeFactory, map[string]Distribution{"alpha": LogUniform{1e-3, 1e3}}, 6, 123, opt)
	require.NoError(t, s.Fit(context.Background(), X, y, true))
	res := s.CVResults()
	assert.Contains(t, res, "rank_test_RMSE")
	assert.Contains(t, res, "mean_train_R squared")
	assert.NotContains(t, res, "rank_test_score")
	assert.Equal(t, []string{"R squared", "RMSE"}, s.ScoringKeys())
	assert.LessOrEqual(t, s.BestScore(), 0.0, "negated RMSE is never positive")
}

func TestFitErrors(t *testing.T) {
	X, y := linearData(10)
	opt := Options{Folds: 2}
	s := NewGridSearch(ridgeFactory, Grid{"alpha": {1}}, opt)

	err := s.Fit(context.Background(), X, y[:9], false)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	bad := append([]float64(nil), y...)
	bad[3] = math.NaN()
	assert.ErrorIs(t, s.Fit(context.Background(), X, bad, false), ErrNonFinite)

	_, err = s.BestEstimator()
	assert.ErrorIs(t, err, ErrNotFitted)

	multi := NewGridSearch(ridgeFactory, Grid{"alpha": {1}}, Options{
		Folds:   2,
		Scoring: map[string]string{"a": "r2", "b": "neg_mean_squared_error"},
	})
	assert.ErrorContains(t, multi.Fit(context.Background(), X, y, false), "refit")

	unknown := NewGridSearch(ridgeFactory, Grid{"alpha": {1}}, Options{Folds: 2, Scoring: map[string]string{"acc": "accuracy"}})
	assert.ErrorContains(t, unknown.Fit(context.Background(), X, y, false), "unknown scorer")

	boom := errors.New("boom")
	failing := NewGridSearch(func(Params) (Estimator, error) { return nil, boom }, Grid{"alpha": {1}}, opt)
	assert.ErrorIs(t, failing.Fit(context.Background(), X, y, false), boom)
}

func TestFitHonorsCancelledContext(t *testing.T) {
	X, y := linearData(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewGridSearch(ridgeFactory, Grid{"alpha": {1, 2, 3}}, Options{Folds: 2, NJobs: 1})
	assert.ErrorIs(t, s.Fit(ctx, X, y, false), context.Canceled)
}

// refitFailer fails when fitted on all rows, which only the refit does.
type refitFailer struct {
	Estimator
	rows int
	fail *bool
}

func (e refitFailer) Fit(X mat.Matrix, y []float64) error {
	if r, _ := X.Dims(); *e.fail && r == e.rows {
		return errors.New("refit failed")
	}
	return e.Estimator.Fit(X, y)
}

func TestFailedRefitKeepsPreviousFit(t *testing.T) {
	X, y := linearData(12)
	fail := false
	factory := func(p Params) (Estimator, error) {
		est, err := ridgeFactory(p)
		if err != nil {
			return nil, err
		}
		return refitFailer{Estimator: est, rows: 12, fail: &fail}, nil
	}
	s := NewGridSearch(factory, Grid{"alpha": {1, 2}}, Options{Folds: 3})
	require.NoError(t, s.Fit(context.Background(), X, y, false))
	before := s.CVResults()
	best, err := s.BestEstimator()
	require.NoError(t, err)
	idx, params := s.BestIndex(), s.BestParams()

	fail = true
	shifted := make([]float64, len(y))
	for i, v := range y {
		shifted[i] = -v
	}
	assert.ErrorContains(t, s.Fit(context.Background(), X, shifted, true), "refit failed")

	assert.Equal(t, before, s.CVResults())
	_, hasTrain := s.CVResults()["mean_train_score"]
	assert.False(t, hasTrain, "results of the failed fit must not be kept")
	after, err := s.BestEstimator()
	require.NoError(t, err)
	assert.Same(t, best.(refitFailer).Estimator, after.(refitFailer).Estimator)
	assert.Equal(t, idx, s.BestIndex())
	assert.Equal(t, params, s.BestParams())
}
