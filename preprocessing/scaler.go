// Package preprocessing は距離ベースのモデル（K-means）の前処理として使う特徴量スケーラーを提供する
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/core/model"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// Scaler は列ごとのアフィン変換を学習するスケーラーの共通インターフェース
type Scaler interface {
	model.InverseTransformer
	fmt.Stringer
}

// NewScaler は名前からスケーラーを作成する。"standard" または "minmax"
func NewScaler(kind string) (Scaler, error) {
	switch kind {
	case "standard":
		return NewStandardScalerDefault(), nil
	case "minmax":
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewConfigurationError("scale", `must be "standard", "minmax" or "none"`, kind)
	}
}

// affine は x' = (x - offset) / scale を列ごとに適用する共通実装
type affine struct {
	model.BaseEstimator

	name   string
	offset []float64
	scale  []float64
	add    []float64 // 変換後に足す値（MinMaxScalerの範囲下限）
}

func (a *affine) apply(method string, X mat.Matrix, inverse bool) (mat.Matrix, error) {
	if !a.IsFitted() {
		return nil, errors.NewNotFittedError(a.name, method)
	}
	rows, err := dataset.Rows(a.name+"."+method, X)
	if err != nil {
		return nil, err
	}
	if err := dataset.CheckFeatures(a.name+"."+method, rows, len(a.scale)); err != nil {
		return nil, err
	}

	result := mat.NewDense(len(rows), len(a.scale), nil)
	for i, row := range rows {
		for j, v := range row {
			if inverse {
				result.Set(i, j, (v-a.add[j])*a.scale[j]+a.offset[j])
			} else {
				result.Set(i, j, (v-a.offset[j])/a.scale[j]+a.add[j])
			}
		}
	}
	return result, nil
}

// columns は行列を列ごとのスライスに転置する
func columns(op string, X mat.Matrix) ([][]float64, error) {
	rows, err := dataset.Rows(op, X)
	if err != nil {
		return nil, err
	}
	cols := make([][]float64, len(rows[0]))
	for j := range cols {
		cols[j] = make([]float64, len(rows))
		for i, row := range rows {
			cols[j][i] = row[j]
		}
	}
	return cols, nil
}

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	affine

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		affine:   affine{name: "StandardScaler"},
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから列ごとの平均と母標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	cols, err := columns("StandardScaler.Fit", X)
	if err != nil {
		return err
	}

	s.offset = make([]float64, len(cols))
	s.scale = make([]float64, len(cols))
	s.add = make([]float64, len(cols))
	for j, col := range cols {
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.offset[j] = mean
		}
		s.scale[j] = 1
		// 標準偏差が0に近い列はそのまま（ゼロ除算を避ける）
		if s.WithStd && std > 1e-8 {
			s.scale[j] = std
		}
	}

	s.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, false)
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, true)
}

// Mean は学習した各列の平均を返す（WithMean=falseなら0）
func (s *StandardScaler) Mean() []float64 {
	return append([]float64(nil), s.offset...)
}

// Scale は学習した各列の標準偏差を返す
func (s *StandardScaler) Scale() []float64 {
	return append([]float64(nil), s.scale...)
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, len(s.scale))
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	affine

	// FeatureRange は変換後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は指定範囲のMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		affine:       affine{name: "MinMaxScaler"},
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault は範囲[0,1]のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit は訓練データから列ごとの最小値と最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	if !(lo < hi) || math.IsInf(hi-lo, 0) {
		return errors.NewConfigurationError("feature_range", "min must be smaller than max", m.FeatureRange)
	}
	cols, err := columns("MinMaxScaler.Fit", X)
	if err != nil {
		return err
	}

	m.offset = make([]float64, len(cols))
	m.scale = make([]float64, len(cols))
	m.add = make([]float64, len(cols))
	for j, col := range cols {
		minV, maxV := floats.Min(col), floats.Max(col)
		m.offset[j] = minV
		m.add[j] = lo
		m.scale[j] = 1
		// 定数列は範囲下限に写す
		if dataRange := maxV - minV; dataRange > 1e-8 {
			m.scale[j] = dataRange / (hi - lo)
		}
	}

	m.SetFitted()
	return nil
}

// Transform はデータを指定範囲にスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return m.apply("Transform", X, false)
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return m.apply("InverseTransform", X, true)
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=(%g, %g))", m.FeatureRange[0], m.FeatureRange[1])
}

var (
	_ Scaler                 = (*StandardScaler)(nil)
	_ Scaler                 = (*MinMaxScaler)(nil)
	_ model.TransformerMixin = (*StandardScaler)(nil)
	_ model.TransformerMixin = (*MinMaxScaler)(nil)
)
