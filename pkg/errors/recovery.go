// ワーカーgoroutineのパニック回復。学習タスク内のパニックはPanicErrorに変換され、
// 呼び出し側には通常の学習失敗として見える。

package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError は回復したパニックから作られたエラーです。
type PanicError struct {
	// PanicValue はpanic()に渡された元の値
	PanicValue interface{}

	// StackTrace はパニック時のgoroutineのスタック
	StackTrace string

	// Operation はパニックを回復した処理の名前
	Operation string
}

// Error はerrorインターフェースを実装します。
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String はスタックトレースを含めた表現を返します。
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError は現在のスタックを記録したPanicErrorを作成します。
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover は名前付きのエラー戻り値へのポインタを渡してdeferで使います:
//
//	func fitTree(...) (err error) {
//	    defer Recover(&err, "fitTree")
//	    ...
//	}
//
// 関数が既にエラーを設定していた場合、パニックはそのエラーと併せて報告されます。
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)", operation, r, *err)
			return
		}
		*err = NewPanicError(operation, r)
	}
}

// SafeExecute はfnを実行し、パニックをPanicErrorに変換します。
// parallel.Mapの各タスクはこの関数を通して実行されます。
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
