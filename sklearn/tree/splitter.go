package tree

import (
	"sort"

	"github.com/YuminosukeSato/mlcore/core/stats"
)

// gainTolerance absorbs floating-point noise when comparing information gains.
// Gains that differ by less than this count as equal, so the earlier candidate
// (lower feature, then lower threshold) is kept.
const gainTolerance = 1e-12

// builder grows a tree over a fixed training set. rows and y are never mutated.
type builder struct {
	rows     [][]float64
	y        []int
	classes  []float64
	impurity stats.ImpurityFunc

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int

	// importances accumulates the weighted impurity decrease per feature.
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(idx []int, depth int) *Node {
	counts := make([]int, len(b.classes))
	for _, i := range idx {
		counts[b.y[i]]++
	}
	n := len(idx)
	impurity := b.impurity(counts, n)

	if depth >= b.maxDepth || n < b.minSamplesSplit || isPure(counts) {
		return b.leaf(counts, n, impurity)
	}

	best, ok := b.bestSplit(idx, counts)
	if !ok {
		return b.leaf(counts, n, impurity)
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if b.rows[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importances[best.feature] += float64(n) * best.gain

	return &Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
		Samples:   n,
		Impurity:  impurity,
	}
}

func (b *builder) leaf(counts []int, n int, impurity float64) *Node {
	return &Node{
		Leaf:        true,
		Value:       b.classes[stats.MajorityVote(counts)],
		ClassCounts: counts,
		Samples:     n,
		Impurity:    impurity,
	}
}

// bestSplit scans every feature in ascending order and, within a feature,
// every distinct value of the node's samples in ascending order as a
// threshold. Only a strictly larger gain replaces the current best.
func (b *builder) bestSplit(idx []int, parent []int) (split, bool) {
	n := len(idx)
	nFeatures := len(b.rows[idx[0]])
	nClasses := len(parent)

	var best split
	found := false

	order := make([]int, n)
	left := make([]int, nClasses)
	right := make([]int, nClasses)

	for f := 0; f < nFeatures; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.rows[order[a]][f] < b.rows[order[c]][f]
		})

		for k := range left {
			left[k] = 0
		}
		copy(right, parent)

		for i := 0; i < n; {
			v := b.rows[order[i]][f]
			for i < n && b.rows[order[i]][f] == v {
				left[b.y[order[i]]]++
				right[b.y[order[i]]]--
				i++
			}

			// the largest value leaves the right side empty
			if i < b.minSamplesLeaf || n-i < b.minSamplesLeaf {
				continue
			}

			gain := stats.InformationGain(b.impurity, parent, left, right)
			if (!found && gain > gainTolerance) || (found && gain > best.gain+gainTolerance) {
				best = split{feature: f, threshold: v, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
