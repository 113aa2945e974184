// Package stats holds the numeric building blocks shared by the clustering
// and tree estimators.
package stats

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// NewRand returns a generator seeded with seed, or with the current time
// when seed is negative.
func NewRand(seed int64) *rand.Rand {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// SquaredDistance returns the squared Euclidean distance between a and b.
// Both slices must have the same length.
func SquaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Nearest returns the index of the centroid closest to x by squared distance
// together with that distance. Ties go to the lowest index.
func Nearest(x []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for k, c := range centroids {
		if d := SquaredDistance(x, c); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, bestDist
}

// Mean writes the column means of the selected rows into dst.
// dst is left untouched when idx is empty.
func Mean(dst []float64, rows [][]float64, idx []int) {
	if len(idx) == 0 {
		return
	}
	for j := range dst {
		dst[j] = 0
	}
	for _, i := range idx {
		floats.Add(dst, rows[i])
	}
	floats.Scale(1/float64(len(idx)), dst)
}

// ImpurityFunc measures the impurity of a class-count histogram.
type ImpurityFunc func(counts []int, total int) float64

// Entropy is the base-2 Shannon entropy of counts, with 0*log2(0) = 0.
func Entropy(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// Gini is the Gini impurity of counts.
func Gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		sum -= p * p
	}
	return sum
}

// InformationGain is parent impurity minus the size-weighted impurity of the
// two children. A split with an empty side gains nothing.
func InformationGain(impurity ImpurityFunc, parent, left, right []int) float64 {
	nl, nr := Sum(left), Sum(right)
	if nl == 0 || nr == 0 {
		return 0
	}
	n := float64(nl + nr)
	return impurity(parent, nl+nr) -
		(float64(nl)/n)*impurity(left, nl) -
		(float64(nr)/n)*impurity(right, nr)
}

// Counts builds the histogram of class indices in [0, nClasses).
func Counts(labels []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

// Sum adds up counts.
func Sum(counts []int) int {
	var s int
	for _, c := range counts {
		s += c
	}
	return s
}

// MajorityVote returns the index of the largest count. Ties go to the lowest index.
func MajorityVote(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// Bootstrap draws n row indices uniformly with replacement.
func Bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// SampleDistinct draws k distinct indices from [0, n) with a partial
// Fisher-Yates shuffle. The result is in draw order. k must not exceed n.
func SampleDistinct(rng *rand.Rand, n, k int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k:k]
}

// SampleFeatures draws k distinct column indices from [0, nFeatures) and
// returns them sorted ascending.
func SampleFeatures(rng *rand.Rand, nFeatures, k int) []int {
	features := SampleDistinct(rng, nFeatures, k)
	sort.Ints(features)
	return features
}
