// Package tree implements a CART-style decision tree classifier with an
// information-gain (entropy) or Gini split criterion.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/core/model"
	"github.com/YuminosukeSato/mlcore/core/stats"
	"github.com/YuminosukeSato/mlcore/metrics"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
)

// Supported split criteria.
const (
	CriterionEntropy = "entropy"
	CriterionGini    = "gini"
)

// DecisionTreeClassifier is a binary-split decision tree for classification.
type DecisionTreeClassifier struct {
	model.BaseEstimator

	// hyperparameters
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int

	// fitted state
	root_               *Node
	classes_            []float64
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64

	mu     sync.RWMutex
	logger log.Logger
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split criterion, "entropy" (default) or "gini".
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of the tree. A node at this depth
// becomes a leaf. Must be >= 1.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples a node needs to be
// split. Must be >= 2.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples on each side of a
// split. Must be >= 1.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithLogger sets the logger used for fit diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.logger = logger
	}
}

// NewDecisionTreeClassifier creates a classifier with max_depth=10,
// min_samples_split=2, min_samples_leaf=1 and the entropy criterion.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		criterion:       CriterionEntropy,
		maxDepth:        10,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	if dt.logger == nil {
		dt.logger = log.GetLoggerWithName("tree")
	}
	dt.logger = dt.logger.With(
		log.ModelNameKey, "DecisionTreeClassifier",
		log.EstimatorIDKey, dt.ID(),
	)
	return dt
}

// Validate reports the first invalid hyperparameter as a ConfigurationError.
func (dt *DecisionTreeClassifier) Validate() error {
	return dt.validateParams()
}

func (dt *DecisionTreeClassifier) validateParams() error {
	if _, err := impurityFunc(dt.criterion); err != nil {
		return err
	}
	if dt.maxDepth < 1 {
		return errors.NewConfigurationError("max_depth", "must be >= 1", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewConfigurationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewConfigurationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	return nil
}

func impurityFunc(criterion string) (stats.ImpurityFunc, error) {
	switch criterion {
	case CriterionEntropy:
		return stats.Entropy, nil
	case CriterionGini:
		return stats.Gini, nil
	default:
		return nil, errors.NewConfigurationError("criterion", `must be "entropy" or "gini"`, criterion)
	}
}

// Fit builds the tree from X (n x d) and the labels y (n x 1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	rows, err := dataset.Rows("DecisionTreeClassifier.Fit", X)
	if err != nil {
		return err
	}
	labels, err := dataset.Labels("DecisionTreeClassifier.Fit", y, len(rows))
	if err != nil {
		return err
	}
	return dt.fit(rows, labels)
}

// FitRows builds the tree from row slices. Rows must be rectangular and
// labels must have one entry per row.
func (dt *DecisionTreeClassifier) FitRows(rows [][]float64, labels []float64) error {
	const op = "DecisionTreeClassifier.Fit"
	if err := dt.validateParams(); err != nil {
		return err
	}
	if _, err := dataset.ValidateRows(op, rows); err != nil {
		return err
	}
	if len(labels) != len(rows) {
		return errors.NewDimensionError(op, len(rows), len(labels), 0)
	}
	if err := errors.CheckFinite(op, labels, -1); err != nil {
		return err
	}
	return dt.fit(rows, labels)
}

func (dt *DecisionTreeClassifier) fit(rows [][]float64, labels []float64) error {
	start := time.Now()
	impurity, _ := impurityFunc(dt.criterion)
	classes, encoded := dataset.EncodeLabels(labels)
	nFeatures := len(rows[0])

	b := &builder{
		rows:            rows,
		y:               encoded,
		classes:         classes,
		impurity:        impurity,
		maxDepth:        dt.maxDepth,
		minSamplesSplit: dt.minSamplesSplit,
		minSamplesLeaf:  dt.minSamplesLeaf,
		importances:     make([]float64, nFeatures),
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	root := b.build(idx, 0)

	importances := b.importances
	var sum float64
	for _, v := range importances {
		sum += v
	}
	for j := range importances {
		importances[j] = errors.SafeDivide(importances[j], sum)
	}

	dt.mu.Lock()
	dt.root_ = root
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = importances
	dt.SetFitted()
	dt.mu.Unlock()

	dt.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(rows),
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
		log.DepthKey, root.depth(),
		log.LeavesKey, root.leaves(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (dt *DecisionTreeClassifier) fitted() bool {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.IsFitted()
}

// checkRows must be called with mu held.
func (dt *DecisionTreeClassifier) checkRows(method string, rows [][]float64) error {
	if !dt.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	return dataset.CheckFeatures("DecisionTreeClassifier."+method, rows, dt.nFeatures_)
}

// Predict returns the predicted label of each row of X as an n x 1 matrix.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.fitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
	}
	rows, err := dataset.Rows("DecisionTreeClassifier.Predict", X)
	if err != nil {
		return nil, err
	}
	preds, err := dt.PredictRows(rows)
	if err != nil {
		return nil, err
	}
	return dataset.Column(preds), nil
}

// PredictRows predicts one label per row.
func (dt *DecisionTreeClassifier) PredictRows(rows [][]float64) ([]float64, error) {
	dt.mu.RLock()
	defer dt.mu.RUnlock()

	if err := dt.checkRows("Predict", rows); err != nil {
		return nil, err
	}
	preds := make([]float64, len(rows))
	for i, row := range rows {
		preds[i] = dt.root_.leafFor(row).Value
	}
	return preds, nil
}

// PredictProba returns the class frequencies of the leaf each row falls into,
// as an n x len(Classes()) matrix with classes in ascending order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.fitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	rows, err := dataset.Rows("DecisionTreeClassifier.PredictProba", X)
	if err != nil {
		return nil, err
	}

	dt.mu.RLock()
	defer dt.mu.RUnlock()

	if err := dt.checkRows("PredictProba", rows); err != nil {
		return nil, err
	}
	proba := mat.NewDense(len(rows), dt.nClasses_, nil)
	for i, row := range rows {
		leaf := dt.root_.leafFor(row)
		for k, c := range leaf.ClassCounts {
			proba.Set(i, k, float64(c)/float64(leaf.Samples))
		}
	}
	return proba, nil
}

// Score returns the accuracy on (X, y). It returns 0 when the model is not
// fitted or the input is invalid.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	if !dt.fitted() {
		return 0
	}
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyMatrix(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes returns the labels seen during Fit in ascending order.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return append([]float64(nil), dt.classes_...)
}

// NFeatures returns the number of features seen during Fit.
func (dt *DecisionTreeClassifier) NFeatures() int {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.nFeatures_
}

// GetDepth returns the depth of the fitted tree (0 for a single leaf).
func (dt *DecisionTreeClassifier) GetDepth() int {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.root_.depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.root_.leaves()
}

// GetFeatureImportances returns the total impurity decrease contributed by
// each feature, normalised to sum to 1. All zeros when the tree is one leaf.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return append([]float64(nil), dt.featureImportances_...)
}

// Root returns a deep copy of the fitted tree, nil before Fit.
func (dt *DecisionTreeClassifier) Root() *Node {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return dt.root_.clone()
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
// deep has no effect; a tree has no nested estimators.
func (dt *DecisionTreeClassifier) GetParams(deep bool) map[string]interface{} {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
	}
}

// SetParams updates hyperparameters from a map keyed like GetParams.
// Unknown keys and values of the wrong type are rejected and leave the model
// unchanged. A fitted tree keeps its fitted state until the next Fit.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	candidate := &DecisionTreeClassifier{
		criterion:       dt.criterion,
		maxDepth:        dt.maxDepth,
		minSamplesSplit: dt.minSamplesSplit,
		minSamplesLeaf:  dt.minSamplesLeaf,
	}
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			candidate.criterion, err = model.ParamString(key, value)
		case "max_depth":
			candidate.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			candidate.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			candidate.minSamplesLeaf, err = model.ParamInt(key, value)
		default:
			err = model.UnknownParam(key, value)
		}
		if err != nil {
			return err
		}
	}
	if err := candidate.validateParams(); err != nil {
		return err
	}
	dt.criterion = candidate.criterion
	dt.maxDepth = candidate.maxDepth
	dt.minSamplesSplit = candidate.minSamplesSplit
	dt.minSamplesLeaf = candidate.minSamplesLeaf
	return nil
}

// Clone returns an unfitted tree with the same hyperparameters. The clone
// logs through the default "tree" logger under its own estimator ID.
func (dt *DecisionTreeClassifier) Clone() model.SKLearnCompatible {
	dt.mu.RLock()
	defer dt.mu.RUnlock()
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
	)
}

// String describes the hyperparameters.
func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

// Snapshot is the persisted form of a DecisionTreeClassifier.
type Snapshot struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Root            *Node
	Classes         []float64
	NFeatures       int
	Importances     []float64
	Fitted          bool
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	dt.mu.RLock()
	snap := Snapshot{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		Root:            dt.root_,
		Classes:         dt.classes_,
		NFeatures:       dt.nFeatures_,
		Importances:     dt.featureImportances_,
		Fitted:          dt.IsFitted(),
	}
	dt.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "encode DecisionTreeClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "decode DecisionTreeClassifier")
	}

	dt.mu.Lock()
	defer dt.mu.Unlock()

	dt.criterion = snap.Criterion
	dt.maxDepth = snap.MaxDepth
	dt.minSamplesSplit = snap.MinSamplesSplit
	dt.minSamplesLeaf = snap.MinSamplesLeaf
	dt.root_ = snap.Root
	dt.classes_ = snap.Classes
	dt.nClasses_ = len(snap.Classes)
	dt.nFeatures_ = snap.NFeatures
	dt.featureImportances_ = snap.Importances
	if dt.logger == nil {
		dt.logger = log.GetLoggerWithName("tree")
	}
	if snap.Fitted {
		dt.SetFitted()
	} else {
		dt.Reset()
	}
	return nil
}

var (
	_ model.Classifier        = (*DecisionTreeClassifier)(nil)
	_ model.SKLearnCompatible = (*DecisionTreeClassifier)(nil)
)
