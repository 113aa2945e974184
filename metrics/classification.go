package metrics

import (
	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// vecLen はnilを長さ0として扱う
func vecLen(v *mat.VecDense) int {
	if v == nil || v.IsEmpty() {
		return 0
	}
	return v.Len()
}

// Accuracy は正解率（ラベルが完全一致したサンプルの割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	// 入力検証
	n := vecLen(yTrue)
	if n == 0 {
		return 0, errors.NewInvalidInputError("Accuracy", "empty vector")
	}

	if vecLen(yPred) != n {
		return 0, errors.NewDimensionError("Accuracy", n, vecLen(yPred), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AccuracyMatrix は列ベクトル（n×1行列）形式の入力に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	// 入力検証
	rTrue, cTrue := dataset.Shape(yTrue)
	rPred, cPred := dataset.Shape(yPred)

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewInvalidInputError("AccuracyMatrix", "empty matrix")
	}

	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("AccuracyMatrix", rTrue, rPred, 0)
	}

	if cTrue != 1 {
		return 0, errors.NewInvalidInputError("AccuracyMatrix", "must be a column vector (n×1 matrix)")
	}

	// VecDenseに変換して正解率を計算
	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)

	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return Accuracy(yTrueVec, yPredVec)
}
