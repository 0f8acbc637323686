package search

import "fmt"

// Fold is one train/test partition of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n rows into k contiguous, unshuffled folds. The first n%k
// folds hold one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("cv folds must be at least 2, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", n, k)
	}
	folds := make([]Fold, k)
	start := 0
	for i := range folds {
		size := n / k
		if i < n%k {
			size++
		}
		test := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for j := 0; j < n; j++ {
			if j >= start && j < start+size {
				test = append(test, j)
			} else {
				train = append(train, j)
			}
		}
		folds[i] = Fold{Train: train, Test: test}
		start += size
	}
	return folds, nil
}
