// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, session, library, goal, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeBookNotFound        = "BOOK_NOT_FOUND"
	ErrCodeGoalNotFound        = "GOAL_NOT_FOUND"
	ErrCodeNoteNotFound        = "NOTE_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeActiveSessionExists = "ACTIVE_SESSION_EXISTS"
	ErrCodeDuplicateBook       = "DUPLICATE_BOOK"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeStoreError          = "STORE_ERROR"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid         = "CSRF_TOKEN_INVALID"
)

// HasCode はerrがAPIErrorであり、指定コードを持つかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewNotAuthenticatedError はログインユーザーが存在しない場合のエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionNotFoundError は読書セッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定された読書セッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッション一覧を再読み込みしてください。",
	}
}

// NewBookNotFoundError は本棚に存在しない本を参照した場合のエラーを生成する。
func NewBookNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定された本が本棚に見つかりません: %s", bookID),
		Category: "library",
		Action:   "本棚に本を追加してから再度お試しください。",
	}
}

// NewGoalNotFoundError は読書目標未検出エラーを生成する。
func NewGoalNotFoundError(goalID string) *APIError {
	return &APIError{
		Code:     ErrCodeGoalNotFound,
		Message:  fmt.Sprintf("指定された読書目標が見つかりません: %s", goalID),
		Category: "goal",
		Action:   "目標一覧を再読み込みしてください。",
	}
}

// NewNoteNotFoundError はメモ未検出エラーを生成する。
func NewNoteNotFoundError(noteID string) *APIError {
	return &APIError{
		Code:     ErrCodeNoteNotFound,
		Message:  fmt.Sprintf("指定されたメモが見つかりません: %s", noteID),
		Category: "library",
		Action:   "メモ一覧を再読み込みしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidTransitionError はセッションの状態遷移が許可されていない場合のエラーを生成する。
// fromは現在の状態、operationは要求された操作を表す。
func NewInvalidTransitionError(from SessionState, operation string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の状態（%s）では %s を実行できません。", from, operation),
		Category: "session",
		Action:   "画面を更新して最新の状態を確認してください。",
	}
}

// NewActiveSessionExistsError は同じ本で進行中のセッションがある場合のエラーを生成する。
func NewActiveSessionExistsError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeActiveSessionExists,
		Message:  fmt.Sprintf("この本には進行中の読書セッションがあります: %s", bookID),
		Category: "session",
		Action:   "進行中のセッションを終了するか取り消してから開始してください。",
	}
}

// NewDuplicateBookError は既に本棚にある本を再登録しようとした場合のエラーを生成する。
func NewDuplicateBookError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateBook,
		Message:  "この本は既に本棚にあります。",
		Category: "library",
		Action:   "本棚から該当の本を確認してください。",
	}
}

// NewValidationError は入力値が不正な場合のエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewStoreError はデータストアの呼び出しに失敗した場合のエラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewStoreError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreError,
		Message:  "データの保存または取得に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterで指定された秒数待ってから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
