// Package model_selection provides dataset splitting helpers.
package model_selection

import (
	"math"

	"github.com/YuminosukeSato/mlcore/core/stats"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// TrainTestIndices shuffles [0, n) with the given seed and returns the
// indices of the training and test rows. The test set has
// ceil(testSize * n) rows; testSize must be in [0, 1) and at least one row
// must remain for training.
func TrainTestIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize < 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, errors.NewConfigurationError("test_size", "must be in [0, 1)", testSize)
	}
	if n == 0 {
		return nil, nil, errors.NewInvalidInputError("TrainTestSplit", "no samples to split")
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, errors.NewInvalidInputErrorf("TrainTestSplit",
			"test_size=%v leaves no training samples out of %d", testSize, n)
	}

	perm := stats.NewRand(seed).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit splits X and y into train and test sets in unison.
// Rows are shared with the input, not copied.
func TrainTestSplit(X [][]float64, y []float64, testSize float64, seed int64) (XTrain, XTest [][]float64, yTrain, yTest []float64, err error) {
	if len(X) != len(y) {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", len(X), len(y), 0)
	}
	train, test, err := TrainTestIndices(len(X), testSize, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	XTrain, yTrain = take(X, y, train)
	XTest, yTest = take(X, y, test)
	return XTrain, XTest, yTrain, yTest, nil
}

func take(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
