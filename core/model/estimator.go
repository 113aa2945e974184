package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
// 教師なしモデルではyにnilを渡してよい
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
// 戻り値は n x 1 の行列
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Model は学習と予測の両方を持つモデル
// サービス層がアルゴリズムを区別せずに扱うための薄い共通インターフェース
type Model interface {
	Fitter
	Predictor
}

// Clusterer はクラスタリングモデルのインターフェース
type Clusterer interface {
	Model
	// FitPredict は学習後に学習データのクラスタ割り当てを返す
	FitPredict(X, y mat.Matrix) (mat.Matrix, error)
	// ClusterCenters は学習されたクラスタ中心を返す
	ClusterCenters() [][]float64
	// Inertia はクラスタ内平方和を返す
	Inertia() float64
}

// Classifier は分類モデルのインターフェース
type Classifier interface {
	Model
	// PredictProba は各クラスの確率を n x nClasses の行列で返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	// Score は正解率を返す
	Score(X, y mat.Matrix) float64
	// Classes は学習時に観測されたラベルを昇順で返す
	Classes() []float64
}
