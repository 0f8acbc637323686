package search

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Params is one hyperparameter configuration.
type Params map[string]float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Space produces the candidate configurations a search evaluates.
type Space interface {
	Candidates() ([]Params, error)
}

// Grid is an exhaustive search space: every combination of the listed values.
type Grid map[string][]float64

// Candidates expands the grid as a cartesian product over the sorted
// parameter names, with the last name varying fastest.
func (g Grid) Candidates() ([]Params, error) {
	keys := sortedKeys(g)
	if len(keys) == 0 {
		return nil, errors.New("empty parameter grid")
	}
	for _, k := range keys {
		if len(g[k]) == 0 {
			return nil, fmt.Errorf("parameter %q has no values", k)
		}
	}
	out := []Params{{}}
	for _, k := range keys {
		next := make([]Params, 0, len(out)*len(g[k]))
		for _, base := range out {
			for _, v := range g[k] {
				p := base.Clone()
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out, nil
}

// Distribution is something a value can be sampled from.
type Distribution interface {
	Sample(r *rand.Rand) float64
}

// LogUniform samples uniformly in log space between Low and High.
type LogUniform struct {
	Low, High float64
}

func (d LogUniform) Sample(r *rand.Rand) float64 {
	lo, hi := math.Log(d.Low), math.Log(d.High)
	return math.Exp(lo + r.Float64()*(hi-lo))
}

// Choice picks one of a fixed list of values.
type Choice []float64

func (c Choice) Sample(r *rand.Rand) float64 {
	return c[r.Intn(len(c))]
}

// Random draws NIter configurations from per-parameter distributions with a
// seeded generator. When every distribution is a Choice the draws are taken
// without replacement from the implied grid, and NIter is capped at the grid
// size.
type Random struct {
	Distributions map[string]Distribution
	NIter         int
	Seed          int64
}

func (s Random) Candidates() ([]Params, error) {
	if s.NIter <= 0 {
		return nil, fmt.Errorf("n_iter must be positive, got %d", s.NIter)
	}
	keys := sortedKeys(s.Distributions)
	if len(keys) == 0 {
		return nil, errors.New("empty parameter distributions")
	}
	rng := rand.New(rand.NewSource(s.Seed))

	grid := Grid{}
	for _, k := range keys {
		c, ok := s.Distributions[k].(Choice)
		if !ok {
			grid = nil
			break
		}
		if len(c) == 0 {
			return nil, fmt.Errorf("parameter %q has no choices", k)
		}
		grid[k] = c
	}
	if grid != nil {
		all, err := grid.Candidates()
		if err != nil {
			return nil, err
		}
		rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		return all[:min(s.NIter, len(all))], nil
	}

	for _, k := range keys {
		if c, ok := s.Distributions[k].(Choice); ok && len(c) == 0 {
			return nil, fmt.Errorf("parameter %q has no choices", k)
		}
	}
	out := make([]Params, s.NIter)
	for i := range out {
		p := make(Params, len(keys))
		for _, k := range keys {
			p[k] = s.Distributions[k].Sample(rng)
		}
		out[i] = p
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
