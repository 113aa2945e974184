package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

func TestRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})

	rows, err := Rows("test", X)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, rows)

	// copies, not views
	rows[0][0] = 100
	assert.Equal(t, 1.0, X.At(0, 0))
}

func TestRows_Invalid(t *testing.T) {
	tests := []struct {
		name string
		X    mat.Matrix
	}{
		{"nil", nil},
		{"empty dense", &mat.Dense{}},
		{"nil dense", (*mat.Dense)(nil)},
		{"NaN", mat.NewDense(2, 1, []float64{1, math.NaN()})},
		{"Inf", mat.NewDense(1, 2, []float64{math.Inf(1), 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rows("test", tt.X)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestValidateRows(t *testing.T) {
	n, err := ValidateRows("test", [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ValidateRows("test", [][]float64{{1, 2}, {3}})
	assert.True(t, errors.IsInvalidInput(err))

	_, err = ValidateRows("test", nil)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = ValidateRows("test", [][]float64{{}})
	assert.True(t, errors.IsInvalidInput(err))
}

func TestCheckFeatures(t *testing.T) {
	assert.NoError(t, CheckFeatures("test", [][]float64{{1, 2}}, 2))

	err := CheckFeatures("test", [][]float64{{1, 2, 3}}, 2)
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
}

func TestLabels(t *testing.T) {
	labels, err := Labels("test", mat.NewVecDense(3, []float64{0, 1, 0}), 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, labels)

	_, err = Labels("test", mat.NewDense(2, 2, []float64{0, 1, 1, 0}), 2)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = Labels("test", mat.NewDense(2, 1, []float64{0, 1}), 3)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = Labels("test", nil, 3)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestEncodeLabels(t *testing.T) {
	classes, encoded := EncodeLabels([]float64{5, -1, 5, 2, -1})
	assert.Equal(t, []float64{-1, 2, 5}, classes)
	assert.Equal(t, []int{2, 0, 2, 1, 0}, encoded)
}

func TestProjectAndBuilders(t *testing.T) {
	assert.Equal(t, []float64{3, 1}, Project([]float64{1, 2, 3}, []int{2, 0}))

	col := IntColumn([]int{1, 0, 2})
	r, c := col.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 2.0, col.At(2, 0))

	d := Dense([][]float64{{1, 2}, {3, 4}})
	assert.Equal(t, 4.0, d.At(1, 1))

	r, c = Shape(Dense(nil))
	assert.Zero(t, r)
	assert.Zero(t, c)
}
