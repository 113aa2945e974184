package model

import (
	"math"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// SKLearnCompatible はscikit-learn互換のパラメータ操作インターフェース
// キーはscikit-learnの引数名（n_clusters, max_depth など）
type SKLearnCompatible interface {
	// GetParams はモデルのハイパーパラメータを取得
	// deepは入れ子の推定器を持つモデルのためにある。現在の推定器では結果は変わらない
	GetParams(deep bool) map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定
	// 未知のキーや不正な値を含む場合はモデルを変更せずにConfigurationErrorを返す
	SetParams(params map[string]interface{}) error

	// Clone は同じパラメータを持つ未学習の新しいインスタンスを作成
	Clone() SKLearnCompatible
}

// ParamInt はSetParamsの値を整数として取り出す
// YAMLやJSONから来た値に備えてint64と整数値のfloat64も受け付ける
func ParamInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
	}
	return 0, errors.NewConfigurationError(key, "must be an int", value)
}

// ParamInt64 はParamIntのint64版（random_state用）
func ParamInt64(key string, value interface{}) (int64, error) {
	if v, ok := value.(int64); ok {
		return v, nil
	}
	n, err := ParamInt(key, value)
	return int64(n), err
}

// ParamString はSetParamsの値を文字列として取り出す
func ParamString(key string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errors.NewConfigurationError(key, "must be a string", value)
	}
	return s, nil
}

// ParamBool はSetParamsの値を真偽値として取り出す
func ParamBool(key string, value interface{}) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, errors.NewConfigurationError(key, "must be a bool", value)
	}
	return b, nil
}

// UnknownParam は未知のキーに対するエラーを返す
func UnknownParam(key string, value interface{}) error {
	return errors.NewConfigurationError(key, "unknown parameter", value)
}
