// Package dataset converts the matrix surface of the estimators into the row
// slices the algorithms work on and validates them on the way.
//
// Every estimator calls into this package exactly once per Fit/Predict, so
// all shape checks live here rather than in the algorithms.
package dataset

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// Shape returns the dimensions of X, treating nil and empty gonum values as 0x0.
func Shape(X mat.Matrix) (rows, cols int) {
	switch m := X.(type) {
	case nil:
		return 0, 0
	case *mat.Dense:
		if m == nil || m.IsEmpty() {
			return 0, 0
		}
	case *mat.VecDense:
		if m == nil || m.IsEmpty() {
			return 0, 0
		}
	}
	return X.Dims()
}

// Rows copies X into row slices. It fails with an InvalidInputError if X is
// empty or contains NaN/Inf.
func Rows(op string, X mat.Matrix) ([][]float64, error) {
	r, c := Shape(X)
	if r == 0 || c == 0 {
		return nil, errors.NewInvalidInputError(op, "empty feature matrix")
	}

	backing := make([]float64, r*c)
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = backing[i*c : (i+1)*c : (i+1)*c]
		mat.Row(rows[i], i, X)
		if err := errors.CheckFinite(op, rows[i], i); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// ValidateRows checks that rows is non-empty and rectangular with finite
// values, and returns the number of features.
func ValidateRows(op string, rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, errors.NewInvalidInputError(op, "empty feature matrix")
	}
	nFeatures := len(rows[0])
	if nFeatures == 0 {
		return 0, errors.NewInvalidInputError(op, "samples have no features")
	}
	for i, row := range rows {
		if len(row) != nFeatures {
			return 0, errors.NewInvalidInputErrorf(op,
				"ragged rows: row %d has %d features, row 0 has %d", i, len(row), nFeatures)
		}
		if err := errors.CheckFinite(op, row, i); err != nil {
			return 0, err
		}
	}
	return nFeatures, nil
}

// CheckFeatures returns a DimensionError if rows do not have nFeatures columns.
func CheckFeatures(op string, rows [][]float64, nFeatures int) error {
	for _, row := range rows {
		if len(row) != nFeatures {
			return errors.NewDimensionError(op, nFeatures, len(row), 1)
		}
	}
	return nil
}

// Labels extracts the label vector from y, which must be an n x 1 matrix or a
// *mat.VecDense with nSamples entries.
func Labels(op string, y mat.Matrix, nSamples int) ([]float64, error) {
	r, c := Shape(y)
	if r == 0 {
		return nil, errors.NewInvalidInputError(op, "empty label vector")
	}
	if c != 1 {
		return nil, errors.NewInvalidInputErrorf(op, "label vector must have exactly one column, got %d", c)
	}
	if r != nSamples {
		return nil, errors.NewDimensionError(op, nSamples, r, 0)
	}

	labels := make([]float64, r)
	for i := range labels {
		labels[i] = y.At(i, 0)
	}
	if err := errors.CheckFinite(op, labels, -1); err != nil {
		return nil, err
	}
	return labels, nil
}

// EncodeLabels maps labels onto dense class indices. classes is sorted
// ascending, so a smaller class index always denotes a smaller label.
func EncodeLabels(labels []float64) (classes []float64, encoded []int) {
	seen := make(map[float64]struct{}, 8)
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			classes = append(classes, l)
		}
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, len(labels))
	for i, l := range labels {
		encoded[i] = index[l]
	}
	return classes, encoded
}

// Project returns the values of row at the given column indices.
func Project(row []float64, features []int) []float64 {
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = row[f]
	}
	return out
}

// Column builds an n x 1 matrix from values.
func Column(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}

// IntColumn builds an n x 1 matrix from integer values.
func IntColumn(values []int) *mat.Dense {
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return mat.NewDense(len(values), 1, data)
}

// Dense builds a matrix from rectangular row slices.
func Dense(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return &mat.Dense{}
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data)
}
