package model

import (
	"errors"
	"fmt"
)

// エラー分類:
//   - ErrUserNotFound / ErrEventNotFound は回復可能（Continueへのフォールバックや
//     「閉じる対象なし」として扱う）。
//   - InvariantViolationError は防御的チェックの失敗を表し、バグとして報告する。
//   - それ以外のストレージ起因のエラーはリトライせず呼び出し元へ伝播する。
var (
	// ErrUserNotFound は該当ユーザーが存在しないことを示す。
	ErrUserNotFound = errors.New("user not found")
	// ErrEventNotFound は該当イベントが存在しないことを示す。
	ErrEventNotFound = errors.New("presence event not found")
)

// InvariantViolationError はドメイン不変条件の破れを表す。
// 例: Continueで取得したイベントの種別が要求と一致しない場合。
// 握りつぶさず、バグ報告として呼び出し元へ伝播させる。
type InvariantViolationError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// NewInvariantViolationError はInvariantViolationErrorを生成する。
func NewInvariantViolationError(format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{Reason: fmt.Sprintf(format, args...)}
}
