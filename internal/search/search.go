// Package search evaluates hyperparameter configurations of an estimator with
// k-fold cross-validation and exposes the per-configuration results table
// (rank_test_<key>, mean_test_<key>, mean_fit_time, ...). A fitted CV also
// refits the best configuration on the full training data.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/KaramelBytes/scoretune/internal/logger"
	"github.com/KaramelBytes/scoretune/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultScoringKey names the metric of a search configured without named scorers.
const DefaultScoringKey = "score"

var (
	ErrShapeMismatch = errors.New("search: X rows and y length differ")
	ErrNonFinite     = errors.New("search: input contains NaN or Inf")
	ErrNotFitted     = errors.New("search: not fitted")
)

// Table is a column-oriented results table: one value per configuration.
type Table = map[string][]any

// Estimator is a model the search can fit and score.
type Estimator interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
}

// Factory builds an unfitted estimator for one configuration.
type Factory func(p Params) (Estimator, error)

// Options controls cross-validation and scoring.
type Options struct {
	// Folds is the number of k-fold splits.
	Folds int
	// NJobs bounds concurrent fold fits; <= 0 uses every CPU.
	NJobs int
	// Scoring maps result keys (the suffix of mean_test_<key>) to scorer
	// names from package metrics. Empty means {"score": "r2"}.
	Scoring map[string]string
	// Refit names the scoring key used to pick and refit the best
	// configuration. Optional with a single key.
	Refit string
}

// DefaultOptions returns 5-fold CV using all CPUs and the default scorer.
func DefaultOptions() Options {
	return Options{Folds: 5}
}

// CV is a cross-validated hyperparameter search. It is not safe for
// concurrent use: Fit mutates the results and the best estimator.
type CV struct {
	factory Factory
	space   Space
	opt     Options

	results   Table
	bestIndex int
	bestScore float64
	bestParam Params
	best      Estimator
}

// New creates a search over space.
func New(f Factory, space Space, opt Options) *CV {
	return &CV{factory: f, space: space, opt: opt, bestIndex: -1}
}

// NewGridSearch evaluates every combination in grid.
func NewGridSearch(f Factory, grid Grid, opt Options) *CV {
	return New(f, grid, opt)
}

// NewRandomizedSearch evaluates nIter configurations drawn from dists.
func NewRandomizedSearch(f Factory, dists map[string]Distribution, nIter int, seed int64, opt Options) *CV {
	return New(f, Random{Distributions: dists, NIter: nIter, Seed: seed}, opt)
}

// ScoringKeys returns the configured result keys in sorted order.
func (s *CV) ScoringKeys() []string {
	if len(s.opt.Scoring) == 0 {
		return []string{DefaultScoringKey}
	}
	return sortedKeys(s.opt.Scoring)
}

type foldResult struct {
	fitTime   float64
	scoreTime float64
	test      map[string]float64
	train     map[string]float64
}

// Fit cross-validates every candidate configuration on (X, y), records the
// results table and refits the best candidate on all rows. Train-set scores
// are computed only when returnTrainScore is set. A failed Fit leaves the
// results and best estimator of the previous Fit in place.
func (s *CV) Fit(ctx context.Context, X mat.Matrix, y []float64, returnTrainScore bool) error {
	log := logger.FromContext(ctx)
	n, _ := X.Dims()
	if n != len(y) {
		return fmt.Errorf("%w: %d rows vs %d targets", ErrShapeMismatch, n, len(y))
	}
	if err := checkFinite(X, y); err != nil {
		return err
	}
	scorers, err := s.scorers()
	if err != nil {
		return err
	}
	refit, err := s.refitKey()
	if err != nil {
		return err
	}
	cands, err := s.space.Candidates()
	if err != nil {
		return fmt.Errorf("candidates: %w", err)
	}
	if len(cands) == 0 {
		return errors.New("search space produced no candidates")
	}
	folds, err := KFold(n, s.folds())
	if err != nil {
		return err
	}
	log.Info("fitting search",
		zap.Int("candidates", len(cands)),
		zap.Int("folds", len(folds)),
		zap.Int("fits", len(cands)*len(folds)),
		zap.Strings("scoring", s.ScoringKeys()),
	)

	cells := make([][]foldResult, len(cands))
	for i := range cells {
		cells[i] = make([]foldResult, len(folds))
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs())
	for ci, p := range cands {
		ci, p := ci, p
		for fi, f := range folds {
			fi, f := fi, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := s.fitFold(p, X, y, f, scorers, returnTrainScore)
				if err != nil {
					return fmt.Errorf("candidate %d (%v) fold %d: %w", ci, p, fi, err)
				}
				cells[ci][fi] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	results := aggregate(cands, cells, s.ScoringKeys(), returnTrainScore)

	best := -1
	means := results["mean_test_"+refit]
	for i, r := range results["rank_test_"+refit] {
		if r.(int) == 1 && !math.IsNaN(means[i].(float64)) {
			best = i
			break
		}
	}
	if best < 0 {
		return fmt.Errorf("no finite %q score among candidates", refit)
	}
	est, err := s.factory(cands[best].Clone())
	if err != nil {
		return fmt.Errorf("build best estimator: %w", err)
	}
	if err := est.Fit(X, y); err != nil {
		return fmt.Errorf("refit best estimator: %w", err)
	}
	s.results = results
	s.bestIndex = best
	s.bestParam = cands[best].Clone()
	s.bestScore = means[best].(float64)
	s.best = est
	log.Info("search finished",
		zap.String("refit", refit),
		zap.Any("best_params", s.bestParam),
		zap.Float64("best_score", s.bestScore),
	)
	return nil
}

// CVResults returns the results table of the last Fit, or nil before fitting.
func (s *CV) CVResults() Table { return s.results }

// BestEstimator returns the estimator refit on the full training data.
func (s *CV) BestEstimator() (Estimator, error) {
	if s.best == nil {
		return nil, ErrNotFitted
	}
	return s.best, nil
}

// BestParams returns the configuration ranked first on the refit key.
func (s *CV) BestParams() Params { return s.bestParam.Clone() }

// BestIndex returns the results row of the best configuration, or -1.
func (s *CV) BestIndex() int { return s.bestIndex }

// BestScore returns the mean test score of the best configuration.
func (s *CV) BestScore() float64 { return s.bestScore }

func (s *CV) fitFold(p Params, X mat.Matrix, y []float64, f Fold, scorers map[string]metrics.Scorer, withTrain bool) (foldResult, error) {
	est, err := s.factory(p.Clone())
	if err != nil {
		return foldResult{}, err
	}
	xTrain, yTrain := subset(X, y, f.Train)
	xTest, yTest := subset(X, y, f.Test)

	start := time.Now()
	if err := est.Fit(xTrain, yTrain); err != nil {
		return foldResult{}, err
	}
	res := foldResult{fitTime: time.Since(start).Seconds()}

	start = time.Now()
	if res.test, err = score(est, xTest, yTest, scorers); err != nil {
		return foldResult{}, err
	}
	res.scoreTime = time.Since(start).Seconds()
	if withTrain {
		if res.train, err = score(est, xTrain, yTrain, scorers); err != nil {
			return foldResult{}, err
		}
	}
	return res, nil
}

func score(est Estimator, X mat.Matrix, y []float64, scorers map[string]metrics.Scorer) (map[string]float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	out := make(map[string]float64, len(scorers))
	for key, sc := range scorers {
		v, err := sc(y, pred)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func aggregate(cands []Params, cells [][]foldResult, keys []string, withTrain bool) Table {
	nc := len(cands)
	nf := len(cells[0])
	t := Table{}

	fit := make([]any, nc)
	fitStd := make([]any, nc)
	sc := make([]any, nc)
	scStd := make([]any, nc)
	for i, row := range cells {
		ft := make([]float64, nf)
		st := make([]float64, nf)
		for j, c := range row {
			ft[j] = c.fitTime
			st[j] = c.scoreTime
		}
		m, sd := stat.PopMeanStdDev(ft, nil)
		fit[i], fitStd[i] = m, sd
		m, sd = stat.PopMeanStdDev(st, nil)
		sc[i], scStd[i] = m, sd
	}
	t["mean_fit_time"] = fit
	t["std_fit_time"] = fitStd
	t["mean_score_time"] = sc
	t["std_score_time"] = scStd

	names := map[string]struct{}{}
	for _, p := range cands {
		for k := range p {
			names[k] = struct{}{}
		}
	}
	for name := range names {
		col := make([]any, nc)
		for i, p := range cands {
			if v, ok := p[name]; ok {
				col[i] = v
			}
		}
		t["param_"+name] = col
	}
	params := make([]any, nc)
	for i, p := range cands {
		params[i] = p.Clone()
	}
	t["params"] = params

	for _, key := range keys {
		addScores(t, cells, "test", key, func(r foldResult) float64 { return r.test[key] })
		means := make([]float64, nc)
		for i, v := range t["mean_test_"+key] {
			means[i] = v.(float64)
		}
		ranks := minRank(means)
		col := make([]any, nc)
		for i, r := range ranks {
			col[i] = r
		}
		t["rank_test_"+key] = col
		if withTrain {
			addScores(t, cells, "train", key, func(r foldResult) float64 { return r.train[key] })
		}
	}
	return t
}

func addScores(t Table, cells [][]foldResult, set, key string, get func(foldResult) float64) {
	nc := len(cells)
	nf := len(cells[0])
	means := make([]any, nc)
	stds := make([]any, nc)
	splits := make([][]any, nf)
	for j := range splits {
		splits[j] = make([]any, nc)
	}
	for i, row := range cells {
		vals := make([]float64, nf)
		for j, c := range row {
			vals[j] = get(c)
			splits[j][i] = vals[j]
		}
		m, sd := stat.PopMeanStdDev(vals, nil)
		means[i], stds[i] = m, sd
	}
	for j, col := range splits {
		t[fmt.Sprintf("split%d_%s_%s", j, set, key)] = col
	}
	t["mean_"+set+"_"+key] = means
	t["std_"+set+"_"+key] = stds
}

// minRank ranks scores descending, giving ties the lowest shared rank
// (1, 1, 3). NaN scores rank after every finite score.
func minRank(scores []float64) []int {
	valid := 0
	for _, v := range scores {
		if !math.IsNaN(v) {
			valid++
		}
	}
	ranks := make([]int, len(scores))
	for i, v := range scores {
		if math.IsNaN(v) {
			ranks[i] = valid + 1
			continue
		}
		r := 1
		for _, o := range scores {
			if !math.IsNaN(o) && o > v {
				r++
			}
		}
		ranks[i] = r
	}
	return ranks
}

func (s *CV) scorers() (map[string]metrics.Scorer, error) {
	if len(s.opt.Scoring) == 0 {
		return map[string]metrics.Scorer{DefaultScoringKey: metrics.R2}, nil
	}
	out := make(map[string]metrics.Scorer, len(s.opt.Scoring))
	for key, name := range s.opt.Scoring {
		sc, err := metrics.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("scoring %q: %w", key, err)
		}
		out[key] = sc
	}
	return out, nil
}

func (s *CV) refitKey() (string, error) {
	keys := s.ScoringKeys()
	if s.opt.Refit == "" {
		if len(keys) == 1 {
			return keys[0], nil
		}
		return "", fmt.Errorf("refit must name one of %v when several scorers are configured", keys)
	}
	i := sort.SearchStrings(keys, s.opt.Refit)
	if i >= len(keys) || keys[i] != s.opt.Refit {
		return "", fmt.Errorf("refit %q is not a configured scoring key %v", s.opt.Refit, keys)
	}
	return s.opt.Refit, nil
}

func (s *CV) folds() int {
	if s.opt.Folds == 0 {
		return DefaultOptions().Folds
	}
	return s.opt.Folds
}

func (s *CV) jobs() int {
	if s.opt.NJobs <= 0 {
		return runtime.NumCPU()
	}
	return s.opt.NJobs
}

func subset(X mat.Matrix, y []float64, idx []int) (*mat.Dense, []float64) {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	ys := make([]float64, len(idx))
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
		ys[i] = y[r]
	}
	return out, ys
}

func checkFinite(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: X[%d][%d]", ErrNonFinite, i, j)
			}
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: y[%d]", ErrNonFinite, i)
		}
	}
	return nil
}
