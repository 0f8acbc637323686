// Package model implements the penalized linear regressors tuned by the study:
// Ridge (L2) solved in closed form and Lasso (L1) solved by coordinate descent.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/KaramelBytes/scoretune/internal/utils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Kind names a regularization family.
type Kind string

const (
	KindRidge Kind = "ridge"
	KindLasso Kind = "lasso"
)

const (
	defaultMaxIter = 1000
	defaultTol     = 1e-4
)

var (
	ErrShapeMismatch = errors.New("model: X rows and y length differ")
	ErrNotFitted     = errors.New("model: not fitted")
	ErrEmpty         = errors.New("model: no samples or no features")
)

// Linear is a fitted (or fittable) penalized linear model. It serializes to
// JSON so the best model of a search can be persisted and reloaded.
type Linear struct {
	Kind      Kind      `json:"kind"`
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef,omitempty"`
	Intercept float64   `json:"intercept"`
	Features  []string  `json:"features,omitempty"`
	// Fill holds the per-feature values that replace missing cells, taken
	// from the training data.
	Fill       []float64 `json:"fill,omitempty"`
	Target     string    `json:"target,omitempty"`
	MaxIter    int       `json:"max_iter,omitempty"`
	Tol        float64   `json:"tol,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
}

// New validates kind and alpha and returns an unfitted model.
func New(kind Kind, alpha float64) (*Linear, error) {
	switch kind {
	case KindRidge, KindLasso:
	default:
		return nil, fmt.Errorf("unknown model kind %q (use ridge or lasso)", kind)
	}
	if alpha < 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, fmt.Errorf("invalid alpha %v: must be finite and >= 0", alpha)
	}
	m := &Linear{Kind: kind, Alpha: alpha}
	if kind == KindLasso {
		m.MaxIter = defaultMaxIter
		m.Tol = defaultTol
	}
	return m, nil
}

// FromParams builds a model from sampled hyperparameters. Only "alpha" is
// recognized; a missing alpha means 1.0.
func FromParams(kind Kind, params map[string]float64) (*Linear, error) {
	alpha := 1.0
	for k, v := range params {
		if k != "alpha" {
			return nil, fmt.Errorf("unknown %s parameter %q", kind, k)
		}
		alpha = v
	}
	return New(kind, alpha)
}

// Fitted reports whether coefficients are available.
func (m *Linear) Fitted() bool { return m != nil && m.Coef != nil }

// Fit estimates coefficients and intercept on (X, y).
func (m *Linear) Fit(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r != len(y) {
		return fmt.Errorf("%w: %d rows vs %d targets", ErrShapeMismatch, r, len(y))
	}
	if r == 0 || c == 0 {
		return ErrEmpty
	}
	xMean := make([]float64, c)
	for j := 0; j < c; j++ {
		xMean[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(r, c, nil)
	xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, X)
	yc := make([]float64, r)
	for i, v := range y {
		yc[i] = v - yMean
	}

	var (
		coef []float64
		err  error
	)
	switch m.Kind {
	case KindRidge:
		coef, err = solveRidge(xc, yc, m.Alpha)
	case KindLasso:
		coef, m.Iterations = coordinateDescent(xc, yc, m.Alpha, m.maxIter(), m.tol())
	default:
		err = fmt.Errorf("unknown model kind %q", m.Kind)
	}
	if err != nil {
		return err
	}
	intercept := yMean
	for j, w := range coef {
		intercept -= xMean[j] * w
	}
	m.Coef = coef
	m.Intercept = intercept
	return nil
}

// Predict returns one prediction per row of X.
func (m *Linear) Predict(X mat.Matrix) ([]float64, error) {
	if !m.Fitted() {
		return nil, ErrNotFitted
	}
	r, c := X.Dims()
	if c != len(m.Coef) {
		return nil, fmt.Errorf("%w: model has %d features, X has %d", ErrShapeMismatch, len(m.Coef), c)
	}
	if r == 0 {
		return []float64{}, nil
	}
	var p mat.VecDense
	p.MulVec(X, mat.NewVecDense(c, m.Coef))
	out := make([]float64, r)
	for i := range out {
		out[i] = p.AtVec(i) + m.Intercept
	}
	return out, nil
}

func (m *Linear) maxIter() int {
	if m.MaxIter <= 0 {
		return defaultMaxIter
	}
	return m.MaxIter
}

func (m *Linear) tol() float64 {
	if m.Tol <= 0 {
		return defaultTol
	}
	return m.Tol
}

// solveRidge solves (XᵀX + αI) w = Xᵀy on centered data.
func solveRidge(x *mat.Dense, y []float64, alpha float64) ([]float64, error) {
	_, c := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	a := mat.NewSymDense(c, nil)
	for i := 0; i < c; i++ {
		for j := i; j < c; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += alpha
			}
			a.SetSym(i, j, v)
		}
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(len(y), y))

	var w mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(a) {
		if err := chol.SolveVecTo(&w, &xty); err != nil {
			return nil, fmt.Errorf("ridge solve: %w", err)
		}
	} else if err := w.SolveVec(a, &xty); err != nil {
		return nil, fmt.Errorf("ridge solve: %w", err)
	}
	return mat.Col(nil, 0, &w), nil
}

// coordinateDescent minimizes (1/2n)||y - Xw||² + α||w||₁ on centered data
// and returns the weights with the number of sweeps performed.
func coordinateDescent(x *mat.Dense, y []float64, alpha float64, maxIter int, tol float64) ([]float64, int) {
	n, c := x.Dims()
	cols := make([][]float64, c)
	norms := make([]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
		for _, v := range cols[j] {
			norms[j] += v * v
		}
	}
	w := make([]float64, c)
	resid := append([]float64(nil), y...)
	penalty := alpha * float64(n)

	iter := 0
	for iter < maxIter {
		iter++
		var maxDelta, maxW float64
		for j, col := range cols {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := norms[j] * old
			for i, v := range col {
				rho += v * resid[i]
			}
			next := softThreshold(rho, penalty) / norms[j]
			if d := next - old; d != 0 {
				for i, v := range col {
					resid[i] -= v * d
				}
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			w[j] = next
			maxW = math.Max(maxW, math.Abs(next))
		}
		if maxW == 0 || maxDelta/maxW < tol {
			break
		}
	}
	return w, iter
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// Save writes the model as JSON using an atomic write.
func (m *Linear) Save(path string) error {
	if !m.Fitted() {
		return ErrNotFitted
	}
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, data)
}

// Load reads a model previously written by Save.
func Load(path string) (*Linear, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Linear
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if !m.Fitted() {
		return nil, fmt.Errorf("model %s: %w", path, ErrNotFitted)
	}
	return &m, nil
}
