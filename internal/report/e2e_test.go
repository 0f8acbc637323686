package report_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/KaramelBytes/scoretune/internal/model"
	"github.com/KaramelBytes/scoretune/internal/report"
	"github.com/KaramelBytes/scoretune/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// noisyRegression mimics a small survey table: 30 rows, 8 features.
func noisyRegression() (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(123))
	const rows, cols = 30, 8
	X := mat.NewDense(rows, cols, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var v float64
		for j := 0; j < cols; j++ {
			x := rng.NormFloat64()
			X.Set(i, j, x)
			v += float64(j+1) * x
		}
		y[i] = v + rng.NormFloat64()*3
	}
	return X, y
}

func TestTopThreeOfFiveAlphasTwoFold(t *testing.T) {
	X, y := noisyRegression()
	factory := func(p search.Params) (search.Estimator, error) {
		return model.FromParams(model.KindRidge, p)
	}
	s := search.NewGridSearch(factory, search.Grid{"alpha": {1, 2, 3, 4, 5}}, search.Options{Folds: 2})

	rep, err := report.BuildTopModels(context.Background(), s, 3, X, y, report.Options{
		AdditionalColumns: []string{"param_alpha"},
		ReturnTrainScore:  true,
		ScoringKey:        "score",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"rank_test_score", "mean_test_score", "mean_fit_time", "mean_train_score", "param_alpha"}, rep.Index())
	assert.Len(t, rep.Rows, 4)
	assert.Equal(t, 3, rep.NumModels())
	assert.Equal(t, []int{1, 2, 3}, rep.Ranks)

	// the search keeps its fitted state
	best, err := s.BestEstimator()
	require.NoError(t, err)
	assert.True(t, best.(*model.Linear).Fitted())
	assert.Len(t, s.CVResults()["rank_test_score"], 5)
}

func TestRandomizedSearchMoreTopThanCandidates(t *testing.T) {
	X, y := noisyRegression()
	factory := func(p search.Params) (search.Estimator, error) {
		return model.FromParams(model.KindLasso, p)
	}
	s := search.NewRandomizedSearch(factory,
		map[string]search.Distribution{"alpha": search.Choice{1, 2, 3, 4, 5}}, 3, 123,
		search.Options{Folds: 3})

	rep, err := report.BuildTopModels(context.Background(), s, 10, X, y, report.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.NumModels())
	assert.Equal(t, 1, rep.Ranks[0])
	for i := 1; i < len(rep.Ranks); i++ {
		assert.LessOrEqual(t, rep.Ranks[i-1], rep.Ranks[i])
	}
}

func TestShapeMismatchSurfacesFromFit(t *testing.T) {
	X, y := noisyRegression()
	factory := func(p search.Params) (search.Estimator, error) {
		return model.FromParams(model.KindRidge, p)
	}
	s := search.NewGridSearch(factory, search.Grid{"alpha": {1}}, search.Options{Folds: 2})
	_, err := report.BuildTopModels(context.Background(), s, 1, X, y[:20], report.Options{})
	assert.ErrorIs(t, err, search.ErrShapeMismatch)
}
