package ensemble

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcore/core/model"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
)

// noisyData generates two informative and three noise features; 15% of the
// labels are flipped.
func noisyData(seed int64, n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 5, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 5; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		label := 0.0
		if X.At(i, 0)+X.At(i, 1) > 0 {
			label = 1
		}
		if rng.Float64() < 0.15 {
			label = 1 - label
		}
		y.Set(i, 0, label)
	}
	return X, y
}

// additiveData spreads the signal over all six features: the label is the
// sign of their sum, with 10% of the labels flipped. A tree that sees two of
// the columns cannot recover the label on its own.
func additiveData(seed int64, n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 6, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < 6; j++ {
			v := rng.NormFloat64()
			X.Set(i, j, v)
			sum += v
		}
		label := 0.0
		if sum > 0 {
			label = 1
		}
		if rng.Float64() < 0.10 {
			label = 1 - label
		}
		y.Set(i, 0, label)
	}
	return X, y
}

// memberScore is the held-out accuracy of one tree on its own columns.
func memberScore(m ForestMember, X, y mat.Matrix) float64 {
	n, _ := X.Dims()
	sub := mat.NewDense(n, len(m.Features), nil)
	for i := 0; i < n; i++ {
		for j, f := range m.Features {
			sub.Set(i, j, X.At(i, f))
		}
	}
	return m.Tree.Score(sub, y)
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	rf := NewRandomForestClassifier(
		WithNEstimators(15),
		WithMaxFeatures("all"),
		WithRandomState(42),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	pred, err := rf.Predict(mat.NewDense(2, 2, []float64{0, 0, 6, 6}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
		t.Errorf("Expected [0 1], got [%v %v]", pred.At(0, 0), pred.At(1, 0))
	}
	if got := len(rf.Estimators()); got != 15 {
		t.Errorf("Expected 15 trees, got %d", got)
	}
}

func TestRandomForestClassifier_DeterministicAcrossWorkers(t *testing.T) {
	X, y := noisyData(1, 200)

	var reference mat.Matrix
	var referenceSubsets [][]int
	for _, jobs := range []int{1, 2, 8} {
		rf := NewRandomForestClassifier(
			WithNEstimators(20),
			WithRandomState(7),
			WithNJobs(jobs),
		)
		if err := rf.Fit(X, y); err != nil {
			t.Fatalf("n_jobs=%d: Failed to fit: %v", jobs, err)
		}
		proba, err := rf.PredictProba(X)
		if err != nil {
			t.Fatalf("n_jobs=%d: Failed to predict: %v", jobs, err)
		}

		if reference == nil {
			reference = proba
			referenceSubsets = rf.FeatureSubsets()
			continue
		}
		if !mat.Equal(reference, proba) {
			t.Errorf("n_jobs=%d: predictions differ from n_jobs=1", jobs)
		}
		subsets := rf.FeatureSubsets()
		for i := range subsets {
			for j := range subsets[i] {
				if subsets[i][j] != referenceSubsets[i][j] {
					t.Fatalf("n_jobs=%d: tree %d feature subset %v, want %v",
						jobs, i, subsets[i], referenceSubsets[i])
				}
			}
		}
	}
}

func TestRandomForestClassifier_BetterThanAverageTree(t *testing.T) {
	var forestTotal, treeTotal float64
	for trial := int64(0); trial < 3; trial++ {
		Xtrain, ytrain := noisyData(trial, 300)
		Xtest, ytest := noisyData(100+trial, 300)

		rf := NewRandomForestClassifier(WithNEstimators(25), WithRandomState(trial))
		if err := rf.Fit(Xtrain, ytrain); err != nil {
			t.Fatalf("Failed to fit: %v", err)
		}
		forestTotal += rf.Score(Xtest, ytest)

		var sum float64
		members := rf.Estimators()
		for _, m := range members {
			sum += memberScore(m, Xtest, ytest)
		}
		treeTotal += sum / float64(len(members))
	}

	if forestTotal < treeTotal {
		t.Errorf("Forest accuracy %.3f is below average tree accuracy %.3f", forestTotal/3, treeTotal/3)
	}
}

func TestRandomForestClassifier_BetterThanBestTree(t *testing.T) {
	var forestTotal, bestTotal float64
	for trial := int64(0); trial < 3; trial++ {
		Xtrain, ytrain := additiveData(trial, 400)
		Xtest, ytest := additiveData(100+trial, 400)

		rf := NewRandomForestClassifier(
			WithNEstimators(40),
			WithMaxDepth(6),
			WithRandomState(trial),
		)
		if err := rf.Fit(Xtrain, ytrain); err != nil {
			t.Fatalf("Failed to fit: %v", err)
		}
		forestTotal += rf.Score(Xtest, ytest)

		best := 0.0
		for _, m := range rf.Estimators() {
			best = math.Max(best, memberScore(m, Xtest, ytest))
		}
		bestTotal += best
	}

	if forestTotal < bestTotal {
		t.Errorf("Forest accuracy %.3f is below best tree accuracy %.3f", forestTotal/3, bestTotal/3)
	}
}

func TestRandomForestClassifier_RefitDeterministic(t *testing.T) {
	X, y := noisyData(11, 120)
	rf := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(7))

	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	wantSubsets := rf.FeatureSubsets()
	wantProba, _ := rf.PredictProba(X)

	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to refit: %v", err)
	}
	gotSubsets := rf.FeatureSubsets()
	for i := range wantSubsets {
		for j := range wantSubsets[i] {
			if gotSubsets[i][j] != wantSubsets[i][j] {
				t.Fatalf("tree %d: refit feature subset %v, want %v", i, gotSubsets[i], wantSubsets[i])
			}
		}
	}
	gotProba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if !mat.Equal(wantProba, gotProba) {
		t.Error("refitting with the same seed changed the predictions")
	}
}

func TestRandomForestClassifier_Params(t *testing.T) {
	rf := NewRandomForestClassifier(WithNEstimators(12), WithMaxFeatures("log2"), WithRandomState(5))

	params := rf.GetParams(false)
	if params["n_estimators"] != 12 || params["max_features"] != "log2" ||
		params["bootstrap"] != true || params["random_state"] != int64(5) {
		t.Errorf("unexpected params: %v", params)
	}

	rejected := []map[string]interface{}{
		{"n_estimators": 0},
		{"max_features": "half"},
		{"bootstrap": "no"},
		{"criterion": "log_loss"},
		{"warm_start": true},
	}
	for _, p := range rejected {
		if err := rf.SetParams(p); !errors.IsConfiguration(err) {
			t.Errorf("SetParams(%v): expected ConfigurationError, got %v", p, err)
		}
	}
	if rf.GetParams(false)["n_estimators"] != 12 {
		t.Error("rejected SetParams changed the forest")
	}

	if err := rf.SetParams(map[string]interface{}{"n_estimators": 6, "bootstrap": false, "n_jobs": 2}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	clone, ok := rf.Clone().(*RandomForestClassifier)
	if !ok {
		t.Fatalf("Clone returned %T", rf.Clone())
	}
	if clone.IsFitted() || clone.ID() == rf.ID() {
		t.Error("clone must be a fresh, unfitted estimator")
	}
	want, got := rf.GetParams(true), clone.GetParams(true)
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s: clone has %v, want %v", key, got[key], value)
		}
	}

	X, y := noisyData(2, 80)
	if err := rf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := clone.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	a, _ := rf.PredictProba(X)
	b, _ := clone.PredictProba(X)
	if !mat.Equal(a, b) {
		t.Error("clone with the same seed should grow the same forest")
	}
}

func TestRandomForestClassifier_PredictProba(t *testing.T) {
	X, y := noisyData(3, 120)
	rf := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(0))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	pred, _ := rf.Predict(X)
	classes := rf.Classes()

	rows, cols := proba.Dims()
	if cols != len(classes) {
		t.Fatalf("Expected %d columns, got %d", len(classes), cols)
	}
	for i := 0; i < rows; i++ {
		sum, best := 0.0, 0
		for k := 0; k < cols; k++ {
			sum += proba.At(i, k)
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("Row %d probabilities sum to %v", i, sum)
		}
		if classes[best] != pred.At(i, 0) {
			t.Errorf("Row %d: argmax class %v differs from prediction %v", i, classes[best], pred.At(i, 0))
		}
	}
}

func TestParseMaxFeatures(t *testing.T) {
	tests := []struct {
		value     string
		nFeatures int
		want      int
		wantErr   bool
	}{
		{"sqrt", 16, 4, false},
		{"sqrt", 2, 1, false},
		{"log2", 8, 3, false},
		{"log2", 1, 1, false},
		{"all", 7, 7, false},
		{"3", 10, 3, false},
		{"30", 10, 10, false},
		{"0.5", 10, 5, false},
		{"0.01", 10, 1, false},
		{"0", 10, 0, true},
		{"1.5", 10, 0, true},
		{"many", 10, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseMaxFeatures(tt.value, tt.nFeatures)
			if tt.wantErr {
				if !errors.IsConfiguration(err) {
					t.Errorf("Expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMaxFeatures(%q, %d) = %d, want %d", tt.value, tt.nFeatures, got, tt.want)
			}
		})
	}
}

func TestRandomForestClassifier_FeatureSubsets(t *testing.T) {
	X, y := noisyData(5, 60)
	rf := NewRandomForestClassifier(WithNEstimators(12), WithMaxFeatures("3"), WithRandomState(1))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if rf.MaxFeatures() != 3 {
		t.Errorf("Expected 3 features per tree, got %d", rf.MaxFeatures())
	}
	for i, subset := range rf.FeatureSubsets() {
		if len(subset) != 3 {
			t.Fatalf("Tree %d has %d features", i, len(subset))
		}
		for j := 1; j < len(subset); j++ {
			if subset[j] <= subset[j-1] {
				t.Errorf("Tree %d subset not strictly ascending: %v", i, subset)
			}
		}
	}

	// mutating the returned copy must not affect the model
	subsets := rf.FeatureSubsets()
	subsets[0][0] = 99
	if rf.FeatureSubsets()[0][0] == 99 {
		t.Error("FeatureSubsets exposes internal state")
	}

	importances := rf.GetFeatureImportances()
	var sum float64
	for _, v := range importances {
		sum += v
	}
	if len(importances) != 5 || math.Abs(sum-1) > 1e-9 {
		t.Errorf("Importances should cover 5 features and sum to 1, got %v", importances)
	}
}

func TestRandomForestClassifier_WithoutBootstrap(t *testing.T) {
	X, y := noisyData(8, 50)
	rf := NewRandomForestClassifier(
		WithNEstimators(3),
		WithBootstrap(false),
		WithMaxFeatures("all"),
		WithRandomState(2),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	// every tree sees the same rows and columns, so they are identical
	p0, _ := rf.Estimators()[0].Tree.PredictProba(X)
	for i, m := range rf.Estimators()[1:] {
		p, _ := m.Tree.PredictProba(X)
		if !mat.Equal(p0, p) {
			t.Errorf("Tree %d differs from tree 0 without bootstrap", i+1)
		}
	}
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{0, 0, 1, 1})

	rf := NewRandomForestClassifier()
	if _, err := rf.Predict(X); !errors.IsNotFitted(err) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
	if _, err := rf.PredictProba(X); !errors.IsNotFitted(err) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
	if score := rf.Score(X, mat.NewDense(2, 1, []float64{0, 1})); score != 0 {
		t.Errorf("Unfitted score should be 0, got %v", score)
	}

	if err := rf.Fit(&mat.Dense{}, nil); !errors.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInputError for empty X, got %v", err)
	}
	if err := rf.Fit(X, mat.NewDense(3, 1, nil)); !errors.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInputError for length mismatch, got %v", err)
	}

	for name, opt := range map[string]Option{
		"n_estimators":  WithNEstimators(0),
		"max_depth":     WithMaxDepth(0),
		"criterion":     WithCriterion("mse"),
		"max_features":  WithMaxFeatures("-2"),
		"min_leaf_size": WithMinSamplesLeaf(0),
	} {
		err := NewRandomForestClassifier(opt).Fit(X, mat.NewDense(2, 1, []float64{0, 1}))
		if !errors.IsConfiguration(err) {
			t.Errorf("%s: expected ConfigurationError, got %v", name, err)
		}
	}

	fitted := NewRandomForestClassifier(WithNEstimators(3), WithRandomState(0))
	if err := fitted.Fit(X, mat.NewDense(2, 1, []float64{0, 1})); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if _, err := fitted.Predict(mat.NewDense(1, 3, nil)); !errors.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInputError for column mismatch, got %v", err)
	}
}

func TestRandomForestClassifier_CancelledContext(t *testing.T) {
	X, y := noisyData(4, 40)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rf := NewRandomForestClassifier(WithNEstimators(5), WithRandomState(0))
	err := rf.FitContext(ctx, X, y)
	if err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if rf.IsFitted() || len(rf.Estimators()) != 0 {
		t.Error("A failed fit must not leave a fitted model")
	}
}

func TestRandomForestClassifier_Logging(t *testing.T) {
	provider, logger := log.NewTestLoggerProvider(log.LevelInfo)
	X, y := noisyData(6, 40)

	rf := NewRandomForestClassifier(
		WithNEstimators(4),
		WithRandomState(0),
		WithLogger(provider.GetLogger()),
	)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if !logger.ContainsField(log.EstimatorsKey, float64(4)) {
		t.Error("Expected the number of trees in the fit record")
	}
	if !logger.ContainsField(log.ModelNameKey, "RandomForestClassifier") {
		t.Error("Expected the model name in the fit record")
	}
}

func TestRandomForestClassifier_Persistence(t *testing.T) {
	X, y := noisyData(9, 80)
	rf := NewRandomForestClassifier(WithNEstimators(6), WithRandomState(3))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(rf, &buf); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	restored := NewRandomForestClassifier()
	if err := model.LoadModelFromReader(restored, &buf); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	want, _ := rf.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatalf("Restored forest failed to predict: %v", err)
	}
	if !mat.Equal(want, got) {
		t.Error("Restored forest predicts differently")
	}
}

func BenchmarkRandomForestClassifier_Fit(b *testing.B) {
	X, y := noisyData(0, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rf := NewRandomForestClassifier(WithNEstimators(20), WithRandomState(int64(i)))
		_ = rf.Fit(X, y)
	}
}
