// Package ensemble implements a random forest classifier on top of
// sklearn/tree.
package ensemble

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/core/model"
	"github.com/YuminosukeSato/mlcore/core/parallel"
	"github.com/YuminosukeSato/mlcore/core/stats"
	"github.com/YuminosukeSato/mlcore/metrics"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
	"github.com/YuminosukeSato/mlcore/sklearn/tree"
)

// ForestMember is one fitted tree together with the columns it was trained on.
// The tree sees only the projected row x[Features[0]], x[Features[1]], ...
type ForestMember struct {
	Tree     *tree.DecisionTreeClassifier
	Features []int
}

// RandomForestClassifier is a bagged ensemble of decision trees, each trained
// on a bootstrap sample and a random subset of the columns.
type RandomForestClassifier struct {
	model.BaseEstimator

	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	criterion       string
	randomState     int64
	nJobs           int

	members_     []ForestMember
	classes_     []float64
	nFeatures_   int
	maxFeatures_ int

	mu     sync.RWMutex
	rng    *rand.Rand
	logger log.Logger
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees. Must be >= 1.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithMaxDepth sets the maximum depth of every tree.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many columns each tree sees: "sqrt" (default),
// "log2", "all", a positive integer such as "3", or a fraction in (0, 1]
// such as "0.5".
func WithMaxFeatures(value string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = value }
}

// WithBootstrap toggles bootstrap sampling of rows (default true). Without it
// every tree sees all rows.
func WithBootstrap(bootstrap bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = bootstrap }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithRandomState fixes the seed. Negative values seed from the clock.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the number of trees trained concurrently. Values <= 0 use
// one worker per CPU. The fitted forest does not depend on this setting.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// WithLogger sets the logger used for fit diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(rf *RandomForestClassifier) { rf.logger = logger }
}

// NewRandomForestClassifier creates a forest of 100 trees with max_depth=10,
// max_features="sqrt" and bootstrap sampling.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		nEstimators:     100,
		maxDepth:        10,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		criterion:       tree.CriterionEntropy,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("ensemble")
	}
	rf.logger = rf.logger.With(
		log.ModelNameKey, "RandomForestClassifier",
		log.EstimatorIDKey, rf.ID(),
	)
	return rf
}

// ParseMaxFeatures resolves a max_features setting against the number of
// columns. The result is always in [1, nFeatures].
func ParseMaxFeatures(value string, nFeatures int) (int, error) {
	var k int
	switch s := strings.ToLower(strings.TrimSpace(value)); s {
	case "sqrt", "":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "all", "none":
		k = nFeatures
	default:
		if strings.ContainsAny(s, ".eE") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || f <= 0 || f > 1 {
				return 0, errors.NewConfigurationError("max_features", "fraction must be in (0, 1]", value)
			}
			k = int(f * float64(nFeatures))
			break
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.NewConfigurationError("max_features",
				`must be "sqrt", "log2", "all", an integer or a fraction`, value)
		}
		if n < 1 {
			return 0, errors.NewConfigurationError("max_features", "must be >= 1", value)
		}
		k = n
	}
	return min(max(k, 1), nFeatures), nil
}

func (rf *RandomForestClassifier) validateParams() error {
	if rf.nEstimators < 1 {
		return errors.NewConfigurationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	if _, err := ParseMaxFeatures(rf.maxFeatures, 1); err != nil {
		return err
	}
	return tree.NewDecisionTreeClassifier(rf.treeOptions(nil)...).Validate()
}

func (rf *RandomForestClassifier) treeOptions(logger log.Logger) []tree.Option {
	opts := []tree.Option{
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithCriterion(rf.criterion),
	}
	if logger != nil {
		opts = append(opts, tree.WithLogger(logger))
	}
	return opts
}

// Fit trains the forest. It is FitContext with context.Background().
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext trains the forest. Trees are trained concurrently on up to
// n_jobs workers; cancelling ctx stops trees that have not started yet and
// fails the fit. If any tree fails, no trees are kept.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	const op = "RandomForestClassifier.Fit"
	if err := rf.validateParams(); err != nil {
		return err
	}
	rows, err := dataset.Rows(op, X)
	if err != nil {
		return err
	}
	labels, err := dataset.Labels(op, y, len(rows))
	if err != nil {
		return err
	}

	start := time.Now()
	nSamples, nFeatures := len(rows), len(rows[0])
	k, err := ParseMaxFeatures(rf.maxFeatures, nFeatures)
	if err != nil {
		return err
	}
	classes, _ := dataset.EncodeLabels(labels)

	rf.mu.Lock()
	defer rf.mu.Unlock()

	// seeds are drawn before fan-out so the forest does not depend on scheduling
	seedRand := rf.fitRand()
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = seedRand.Int63()
	}

	members, err := parallel.Map(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, i int) (ForestMember, error) {
		rng := stats.NewRand(seeds[i])

		var idx []int
		if rf.bootstrap {
			idx = stats.Bootstrap(rng, nSamples)
		} else {
			idx = make([]int, nSamples)
			for j := range idx {
				idx[j] = j
			}
		}
		features := stats.SampleFeatures(rng, nFeatures, k)

		sub := make([][]float64, nSamples)
		subLabels := make([]float64, nSamples)
		for j, r := range idx {
			sub[j] = dataset.Project(rows[r], features)
			subLabels[j] = labels[r]
		}

		t := tree.NewDecisionTreeClassifier(rf.treeOptions(rf.logger.With(log.TreeIndexKey, i))...)
		if err := t.FitRows(sub, subLabels); err != nil {
			return ForestMember{}, err
		}
		rf.logger.Debug("tree fitted",
			log.TreeIndexKey, i,
			log.RandomSeedKey, seeds[i],
			log.DepthKey, t.GetDepth(),
		)
		return ForestMember{Tree: t, Features: features}, nil
	})
	if err != nil {
		rf.logger.Error("fit failed", err, log.OperationKey, log.OperationFit)
		return errors.NewModelError(op, "tree training", err)
	}

	rf.members_ = members
	rf.classes_ = classes
	rf.nFeatures_ = nFeatures
	rf.maxFeatures_ = k
	rf.SetFitted()

	rf.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
		log.EstimatorsKey, rf.nEstimators,
		log.WorkersKey, workers(rf.nJobs),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// fitRand returns the generator for one fit. A fixed seed starts a fresh
// sequence every time, so refitting the same instance reproduces the forest.
// Without a seed the instance keeps drawing from one clock-seeded generator.
// Must be called with mu held.
func (rf *RandomForestClassifier) fitRand() *rand.Rand {
	if rf.randomState >= 0 {
		return stats.NewRand(rf.randomState)
	}
	if rf.rng == nil {
		rf.rng = stats.NewRand(-1)
	}
	return rf.rng
}

func workers(nJobs int) int {
	if nJobs <= 0 {
		return runtime.NumCPU()
	}
	return nJobs
}

// votes returns, for every row, the number of trees voting for each class,
// along with the class labels the counts are indexed by.
func (rf *RandomForestClassifier) votes(method string, X mat.Matrix) ([][]int, []float64, error) {
	op := "RandomForestClassifier." + method
	rf.mu.RLock()
	defer rf.mu.RUnlock()

	if !rf.IsFitted() {
		return nil, nil, errors.NewNotFittedError("RandomForestClassifier", method)
	}
	rows, err := dataset.Rows(op, X)
	if err != nil {
		return nil, nil, err
	}
	if err := dataset.CheckFeatures(op, rows, rf.nFeatures_); err != nil {
		return nil, nil, err
	}

	perTree, err := parallel.Map(context.Background(), len(rf.members_), rf.nJobs,
		func(_ context.Context, t int) ([]float64, error) {
			m := rf.members_[t]
			sub := make([][]float64, len(rows))
			for i, row := range rows {
				sub[i] = dataset.Project(row, m.Features)
			}
			return m.Tree.PredictRows(sub)
		})
	if err != nil {
		return nil, nil, errors.NewModelError(op, "tree prediction", err)
	}

	index := make(map[float64]int, len(rf.classes_))
	for k, c := range rf.classes_ {
		index[c] = k
	}
	counts := make([][]int, len(rows))
	for i := range counts {
		counts[i] = make([]int, len(rf.classes_))
		for _, preds := range perTree {
			counts[i][index[preds[i]]]++
		}
	}
	return counts, append([]float64(nil), rf.classes_...), nil
}

// Predict returns the majority vote of the trees for every row of X as an
// n x 1 matrix. Ties go to the smallest label.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	counts, classes, err := rf.votes("Predict", X)
	if err != nil {
		return nil, err
	}
	preds := make([]float64, len(counts))
	for i, c := range counts {
		preds[i] = classes[stats.MajorityVote(c)]
	}
	return dataset.Column(preds), nil
}

// PredictProba returns the fraction of trees voting for each class, as an
// n x len(Classes()) matrix.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	counts, _, err := rf.votes("PredictProba", X)
	if err != nil {
		return nil, err
	}
	proba := mat.NewDense(len(counts), len(counts[0]), nil)
	for i, c := range counts {
		total := float64(stats.Sum(c))
		for k, v := range c {
			proba.Set(i, k, float64(v)/total)
		}
	}
	return proba, nil
}

// Score returns the accuracy on (X, y), or 0 if the forest is not fitted or
// the input is invalid.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyMatrix(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Estimators returns the fitted trees in training order. Feature subsets are
// copies; the trees themselves are shared and must not be refitted.
func (rf *RandomForestClassifier) Estimators() []ForestMember {
	rf.mu.RLock()
	defer rf.mu.RUnlock()

	out := make([]ForestMember, len(rf.members_))
	for i, m := range rf.members_ {
		out[i] = ForestMember{Tree: m.Tree, Features: append([]int(nil), m.Features...)}
	}
	return out
}

// FeatureSubsets returns the column indices used by each tree.
func (rf *RandomForestClassifier) FeatureSubsets() [][]int {
	rf.mu.RLock()
	defer rf.mu.RUnlock()

	out := make([][]int, len(rf.members_))
	for i, m := range rf.members_ {
		out[i] = append([]int(nil), m.Features...)
	}
	return out
}

// Classes returns the labels seen during Fit in ascending order.
func (rf *RandomForestClassifier) Classes() []float64 {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	return append([]float64(nil), rf.classes_...)
}

// NFeatures returns the number of columns seen during Fit.
func (rf *RandomForestClassifier) NFeatures() int {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	return rf.nFeatures_
}

// MaxFeatures returns the resolved number of columns per tree.
func (rf *RandomForestClassifier) MaxFeatures() int {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	return rf.maxFeatures_
}

// GetFeatureImportances averages the tree importances over the forest, mapped
// back to the original columns and normalised to sum to 1.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	rf.mu.RLock()
	defer rf.mu.RUnlock()

	if !rf.IsFitted() {
		return nil
	}
	importances := make([]float64, rf.nFeatures_)
	for _, m := range rf.members_ {
		for j, v := range m.Tree.GetFeatureImportances() {
			importances[m.Features[j]] += v
		}
	}
	var sum float64
	for _, v := range importances {
		sum += v
	}
	for j := range importances {
		importances[j] = errors.SafeDivide(importances[j], sum)
	}
	return importances
}

// ForestSnapshot is the persisted form of a RandomForestClassifier.
type ForestSnapshot struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	Criterion       string
	RandomState     int64
	NJobs           int

	Trees           []*tree.DecisionTreeClassifier
	Features        [][]int
	Classes         []float64
	NFeatures       int
	MaxFeaturesUsed int
	Fitted          bool
}

// GobEncode implements gob.GobEncoder.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	rf.mu.RLock()
	snap := ForestSnapshot{
		NEstimators:     rf.nEstimators,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		Bootstrap:       rf.bootstrap,
		Criterion:       rf.criterion,
		RandomState:     rf.randomState,
		NJobs:           rf.nJobs,
		Classes:         rf.classes_,
		NFeatures:       rf.nFeatures_,
		MaxFeaturesUsed: rf.maxFeatures_,
		Fitted:          rf.IsFitted(),
	}
	for _, m := range rf.members_ {
		snap.Trees = append(snap.Trees, m.Tree)
		snap.Features = append(snap.Features, m.Features)
	}
	rf.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "encode RandomForestClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var snap ForestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "decode RandomForestClassifier")
	}
	if len(snap.Trees) != len(snap.Features) {
		return errors.Newf("decode RandomForestClassifier: %d trees but %d feature subsets",
			len(snap.Trees), len(snap.Features))
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()

	rf.nEstimators = snap.NEstimators
	rf.maxDepth = snap.MaxDepth
	rf.minSamplesSplit = snap.MinSamplesSplit
	rf.minSamplesLeaf = snap.MinSamplesLeaf
	rf.maxFeatures = snap.MaxFeatures
	rf.bootstrap = snap.Bootstrap
	rf.criterion = snap.Criterion
	rf.randomState = snap.RandomState
	rf.nJobs = snap.NJobs
	rf.classes_ = snap.Classes
	rf.nFeatures_ = snap.NFeatures
	rf.maxFeatures_ = snap.MaxFeaturesUsed
	rf.members_ = make([]ForestMember, len(snap.Trees))
	for i := range snap.Trees {
		rf.members_[i] = ForestMember{Tree: snap.Trees[i], Features: snap.Features[i]}
	}
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("ensemble")
	}
	if snap.Fitted {
		rf.SetFitted()
	} else {
		rf.Reset()
	}
	return nil
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
// deep has no effect; the per-tree parameters are already flattened here.
func (rf *RandomForestClassifier) GetParams(deep bool) map[string]interface{} {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"criterion":         rf.criterion,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams updates hyperparameters from a map keyed like GetParams. Invalid
// keys or values leave the forest unchanged. A fitted forest keeps its trees
// until the next Fit.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	c := &RandomForestClassifier{
		nEstimators:     rf.nEstimators,
		maxDepth:        rf.maxDepth,
		minSamplesSplit: rf.minSamplesSplit,
		minSamplesLeaf:  rf.minSamplesLeaf,
		maxFeatures:     rf.maxFeatures,
		bootstrap:       rf.bootstrap,
		criterion:       rf.criterion,
		randomState:     rf.randomState,
		nJobs:           rf.nJobs,
	}
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			c.nEstimators, err = model.ParamInt(key, value)
		case "max_depth":
			c.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			c.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			c.minSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			c.maxFeatures, err = model.ParamString(key, value)
		case "bootstrap":
			c.bootstrap, err = model.ParamBool(key, value)
		case "criterion":
			c.criterion, err = model.ParamString(key, value)
		case "random_state":
			c.randomState, err = model.ParamInt64(key, value)
		case "n_jobs":
			c.nJobs, err = model.ParamInt(key, value)
		default:
			err = model.UnknownParam(key, value)
		}
		if err != nil {
			return err
		}
	}
	if err := c.validateParams(); err != nil {
		return err
	}

	rf.nEstimators = c.nEstimators
	rf.maxDepth = c.maxDepth
	rf.minSamplesSplit = c.minSamplesSplit
	rf.minSamplesLeaf = c.minSamplesLeaf
	rf.maxFeatures = c.maxFeatures
	rf.bootstrap = c.bootstrap
	rf.criterion = c.criterion
	rf.randomState = c.randomState
	rf.nJobs = c.nJobs
	return nil
}

// Clone returns an unfitted forest with the same hyperparameters. The clone
// logs through the default "ensemble" logger under its own estimator ID.
func (rf *RandomForestClassifier) Clone() model.SKLearnCompatible {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	return NewRandomForestClassifier(
		WithNEstimators(rf.nEstimators),
		WithMaxDepth(rf.maxDepth),
		WithMinSamplesSplit(rf.minSamplesSplit),
		WithMinSamplesLeaf(rf.minSamplesLeaf),
		WithMaxFeatures(rf.maxFeatures),
		WithBootstrap(rf.bootstrap),
		WithCriterion(rf.criterion),
		WithRandomState(rf.randomState),
		WithNJobs(rf.nJobs),
	)
}

var (
	_ model.Classifier        = (*RandomForestClassifier)(nil)
	_ model.SKLearnCompatible = (*RandomForestClassifier)(nil)
)
