// Standard attribute keys for estimator logging.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that log pipelines can filter on them.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "KMeans", "DecisionTreeClassifier", "RandomForestClassifier"
	ModelNameKey = "model.name"

	// EstimatorIDKey is a unique identifier of one estimator instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey is the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	ComponentKey = "ml.component"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
)

// Training diagnostics.
const (
	DurationMsKey = "perf.duration_ms"
	IterationKey  = "training.iteration"
	AccuracyKey   = "metrics.accuracy"

	// InertiaKey records the KMeans within-cluster sum of squares.
	InertiaKey = "metrics.inertia"

	// ClustersKey records the configured number of clusters.
	ClustersKey = "hyperparams.n_clusters"

	// MaxDepthKey records the configured maximum tree depth.
	MaxDepthKey = "hyperparams.max_depth"

	// DepthKey records the depth of a fitted tree.
	DepthKey = "tree.depth"

	// LeavesKey records the number of leaves of a fitted tree.
	LeavesKey = "tree.leaves"

	// EstimatorsKey records the number of trees in a forest.
	EstimatorsKey = "hyperparams.n_estimators"

	// TreeIndexKey identifies one tree of a forest.
	TreeIndexKey = "forest.tree_index"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// WorkersKey records the number of parallel workers.
	WorkersKey = "infra.workers"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationPredictProba = "predict_proba"
	OperationScore        = "score"
	OperationTransform    = "transform"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)
