// Package mlcore provides from-scratch clustering and tree-based
// classification for Go services, with a scikit-learn-like API on top of
// gonum matrices.
//
// # Features
//
//   - K-Means clustering with deterministic, seeded initialisation
//   - Decision tree classifier with entropy or Gini splits
//   - Random forest classifier trained in parallel, reproducible for a seed
//     regardless of the number of workers
//   - Typed errors (InvalidInputError, NotFittedError, ConfigurationError)
//     built on cockroachdb/errors
//   - Structured logging through zerolog
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/mlcore/sklearn/cluster"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 10, 10, 10, 11})
//
//	    km := cluster.NewKMeans(
//	        cluster.WithKMeansNClusters(2),
//	        cluster.WithKMeansRandomState(42),
//	    )
//	    labels, err := km.FitPredict(X, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(mat.Formatted(labels), km.Inertia())
//	}
//
// # Packages
//
//   - sklearn/cluster: KMeans
//   - sklearn/tree: DecisionTreeClassifier
//   - sklearn/ensemble: RandomForestClassifier
//   - model_selection: TrainTestSplit
//   - preprocessing: StandardScaler, MinMaxScaler
//   - metrics: Accuracy
//   - core/model: BaseEstimator, Clusterer and Classifier interfaces, gob persistence
//   - core/dataset, core/stats: input validation, impurity and sampling helpers
//   - core/parallel: bounded, ordered fan-out
//   - pkg/errors, pkg/log: error types and logging
//   - pkg/tabular, pkg/plot: delimited files and cluster plots for the CLI
//
// The mlcore command (cmd/mlcore) exposes the three estimators on delimited
// files:
//
//	mlcore kmeans --data points.csv --clusters 3 --plot clusters.png
//	mlcore tree   --data iris.csv --target label --max-depth 5
//	mlcore forest --data iris.csv --target label --n-estimators 100 --n-jobs 4
package mlcore
