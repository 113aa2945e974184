package errors

import (
	"math"
)

// CheckFinite はNaNまたはInfを含む場合にInvalidInputErrorを返します。
// rowはメッセージに含める行番号で、行でない値には-1を渡します。
func CheckFinite(op string, values []float64, row int) error {
	for j, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if row < 0 {
				return NewInvalidInputErrorf(op, "non-finite value %v at index %d", v, j)
			}
			return NewInvalidInputErrorf(op, "non-finite value %v at row %d, column %d", v, row, j)
		}
	}
	return nil
}

// CheckMatrix は行列の全要素を調べ、最初に見つかったNaNまたはInfをInvalidInputErrorとして返します。
func CheckMatrix(op string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewInvalidInputErrorf(op, "non-finite value %v at row %d, column %d", v, i, j)
			}
		}
	}
	return nil
}

// SafeDivide はゼロ除算を避けて割り算を行います。
// 分母がゼロに近い場合は0を返します。
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
