// Package metrics provides regression scorers keyed by the names used in
// search scoring configurations. Every registered scorer is "greater is
// better": error metrics are registered negated.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Scorer rates predictions against true targets.
type Scorer func(yTrue, yPred []float64) (float64, error)

var (
	ErrLengthMismatch = errors.New("metrics: y_true and y_pred differ in length")
	ErrEmpty          = errors.New("metrics: no samples")
)

// machine epsilon for float64, used as the MAPE denominator floor.
const epsilon = 2.220446049250313e-16

func check(yTrue, yPred []float64) error {
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return ErrEmpty
	}
	return nil
}

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot float64
	for i, y := range yTrue {
		d := y - yPred[i]
		ssRes += d * d
		t := y - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// MSE is the mean squared error.
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range yTrue {
		d := y - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range yTrue {
		sum += math.Abs(y - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// MAPE is the mean absolute percentage error as a fraction (0.1 == 10%).
func MAPE(yTrue, yPred []float64) (float64, error) {
	if err := check(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range yTrue {
		sum += math.Abs(y-yPred[i]) / math.Max(math.Abs(y), epsilon)
	}
	return sum / float64(len(yTrue)), nil
}

func negate(s Scorer) Scorer {
	return func(yTrue, yPred []float64) (float64, error) {
		v, err := s(yTrue, yPred)
		return -v, err
	}
}

var registry = map[string]Scorer{
	"r2":                                 R2,
	"neg_mean_squared_error":             negate(MSE),
	"neg_root_mean_squared_error":        negate(RMSE),
	"neg_mean_absolute_error":            negate(MAE),
	"neg_mean_absolute_percentage_error": negate(MAPE),
}

// Lookup returns the scorer registered under name.
func Lookup(name string) (Scorer, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown scorer %q (available: %v)", name, Names())
	}
	return s, nil
}

// Names lists registered scorer names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
