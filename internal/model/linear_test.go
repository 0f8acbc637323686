package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func line() (*mat.Dense, []float64) {
	return mat.NewDense(4, 1, []float64{1, 2, 3, 4}), []float64{3, 5, 7, 9}
}

func TestRidgeClosedForm(t *testing.T) {
	X, y := line()

	m, err := New(KindRidge, 0)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))
	assert.InDelta(t, 2, m.Coef[0], 1e-9)
	assert.InDelta(t, 1, m.Intercept, 1e-9)

	// centered Σx² = 5, Σxy = 10, so w = 10 / (5 + α)
	m, err = New(KindRidge, 5)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))
	assert.InDelta(t, 1, m.Coef[0], 1e-9)
	assert.InDelta(t, 3.5, m.Intercept, 1e-9)

	pred, err := m.Predict(mat.NewDense(2, 1, []float64{0, 10}))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3.5, 13.5}, pred, 1e-9)
}

func TestLassoShrinksAndZeroes(t *testing.T) {
	X, y := line()

	m, err := New(KindLasso, 0.1)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))
	assert.InDelta(t, 1.92, m.Coef[0], 1e-6)
	assert.Greater(t, m.Iterations, 0)

	m, err = New(KindLasso, 1000)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))
	assert.Equal(t, 0.0, m.Coef[0])
	assert.InDelta(t, 6, m.Intercept, 1e-9)
}

func TestLassoIgnoresConstantFeature(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
	})
	_, y := line()
	m, err := New(KindLasso, 0.01)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))
	assert.Equal(t, 0.0, m.Coef[1])
}

func TestFitErrors(t *testing.T) {
	X, _ := line()
	m, err := New(KindRidge, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Fit(X, []float64{1, 2}), ErrShapeMismatch)

	_, err = m.Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = New("elasticnet", 1)
	assert.Error(t, err)
	_, err = New(KindRidge, -1)
	assert.Error(t, err)
}

func TestFromParams(t *testing.T) {
	m, err := FromParams(KindLasso, map[string]float64{"alpha": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Alpha)

	_, err = FromParams(KindRidge, map[string]float64{"gamma": 1})
	assert.ErrorContains(t, err, "gamma")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	X, y := line()
	m, err := New(KindRidge, 1)
	require.NoError(t, err)
	m.Features = []string{"age"}
	m.Fill = []float64{31}
	m.Target = "correct"
	require.NoError(t, m.Fit(X, y))

	path := filepath.Join(t.TempDir(), "models", "ridge_best_model.json")
	require.NoError(t, m.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Coef, got.Coef)
	assert.Equal(t, []string{"age"}, got.Features)
	assert.Equal(t, []float64{31}, got.Fill)
	assert.Equal(t, "correct", got.Target)

	unfitted, _ := New(KindRidge, 1)
	assert.ErrorIs(t, unfitted.Save(path), ErrNotFitted)
}
