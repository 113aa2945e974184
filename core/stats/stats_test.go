package stats

import (
	"math"
	"testing"
)

func TestSquaredDistance(t *testing.T) {
	if got := SquaredDistance([]float64{0, 0}, []float64{3, 4}); got != 25 {
		t.Errorf("SquaredDistance = %v, want 25", got)
	}
}

func TestNearest_TieGoesToLowestIndex(t *testing.T) {
	centroids := [][]float64{{-1}, {1}}
	k, d := Nearest([]float64{0}, centroids)
	if k != 0 || d != 1 {
		t.Errorf("Nearest = (%d, %v), want (0, 1)", k, d)
	}
}

func TestMean(t *testing.T) {
	rows := [][]float64{{0, 0}, {2, 4}, {10, 10}}
	dst := []float64{7, 7}

	Mean(dst, rows, []int{0, 1})
	if dst[0] != 1 || dst[1] != 2 {
		t.Errorf("Mean = %v, want [1 2]", dst)
	}

	Mean(dst, rows, nil)
	if dst[0] != 1 || dst[1] != 2 {
		t.Errorf("empty selection must leave dst unchanged, got %v", dst)
	}
}

func TestImpurity(t *testing.T) {
	tests := []struct {
		name   string
		fn     ImpurityFunc
		counts []int
		want   float64
	}{
		{"entropy pure", Entropy, []int{4, 0}, 0},
		{"entropy balanced", Entropy, []int{2, 2}, 1},
		{"entropy three classes", Entropy, []int{1, 1, 1, 1}, 2},
		{"gini pure", Gini, []int{0, 5}, 0},
		{"gini balanced", Gini, []int{2, 2}, 0.5},
		{"empty", Entropy, []int{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(tt.counts, Sum(tt.counts))
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInformationGain(t *testing.T) {
	// perfect split of a balanced parent recovers the full entropy
	gain := InformationGain(Entropy, []int{2, 2}, []int{2, 0}, []int{0, 2})
	if math.Abs(gain-1) > 1e-12 {
		t.Errorf("gain = %v, want 1", gain)
	}

	if gain := InformationGain(Entropy, []int{2, 2}, []int{2, 2}, []int{0, 0}); gain != 0 {
		t.Errorf("empty side must gain 0, got %v", gain)
	}
}

func TestMajorityVote(t *testing.T) {
	if got := MajorityVote([]int{1, 3, 3}); got != 1 {
		t.Errorf("MajorityVote = %d, want 1", got)
	}
	if got := MajorityVote([]int{2, 2}); got != 0 {
		t.Errorf("tie must go to lowest index, got %d", got)
	}
}

func TestSampling_Deterministic(t *testing.T) {
	a := SampleDistinct(NewRand(42), 10, 4)
	b := SampleDistinct(NewRand(42), 10, 4)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced %v and %v", a, b)
		}
	}

	seen := map[int]bool{}
	for _, v := range a {
		if v < 0 || v >= 10 || seen[v] {
			t.Fatalf("invalid or duplicate index in %v", a)
		}
		seen[v] = true
	}
}

func TestSampleFeatures_Sorted(t *testing.T) {
	features := SampleFeatures(NewRand(7), 20, 6)
	if len(features) != 6 {
		t.Fatalf("len = %d, want 6", len(features))
	}
	for i := 1; i < len(features); i++ {
		if features[i] <= features[i-1] {
			t.Fatalf("features not strictly ascending: %v", features)
		}
	}
}

func TestBootstrap(t *testing.T) {
	idx := Bootstrap(NewRand(1), 50)
	if len(idx) != 50 {
		t.Fatalf("len = %d, want 50", len(idx))
	}
	for _, i := range idx {
		if i < 0 || i >= 50 {
			t.Fatalf("index %d out of range", i)
		}
	}
}

func BenchmarkEntropy(b *testing.B) {
	counts := []int{10, 20, 30, 40}
	for i := 0; i < b.N; i++ {
		_ = Entropy(counts, 100)
	}
}
