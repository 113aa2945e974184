package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

func TestClusterScatterSave(t *testing.T) {
	cs := &ClusterScatter{
		Title:   "KMeans",
		XLabel:  "x",
		YLabel:  "y",
		Rows:    [][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}},
		Labels:  []int{0, 0, 1, 1},
		Centers: [][]float64{{0, 0.5}, {10, 10.5}},
	}

	path := filepath.Join(t.TempDir(), "clusters.png")
	require.NoError(t, cs.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestClusterScatterSingleFeature(t *testing.T) {
	cs := &ClusterScatter{
		Rows:    [][]float64{{1}, {2}, {9}},
		Labels:  []int{0, 0, 1},
		Centers: [][]float64{{1.5}, {9}},
	}
	_, err := cs.Plot()
	assert.NoError(t, err)
}

func TestClusterScatterErrors(t *testing.T) {
	_, err := (&ClusterScatter{}).Plot()
	assert.True(t, errors.IsInvalidInput(err))

	_, err = (&ClusterScatter{
		Rows:    [][]float64{{1, 1}},
		Labels:  []int{0, 1},
		Centers: [][]float64{{1, 1}},
	}).Plot()
	assert.True(t, errors.IsInvalidInput(err))

	_, err = (&ClusterScatter{
		Rows:    [][]float64{{1, 1}},
		Labels:  []int{3},
		Centers: [][]float64{{1, 1}},
	}).Plot()
	assert.True(t, errors.IsInvalidInput(err))
}
