// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: view, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeViewNotFound     = "VIEW_NOT_FOUND"
	ErrCodeCardNotFound     = "CARD_NOT_FOUND"
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeRefreshIgnored   = "REFRESH_IGNORED"
)

// NewViewNotFoundError はビューが存在しない場合のエラーを生成する。
func NewViewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeViewNotFound,
		Message:  "表示中のビューが見つかりません。",
		Category: "view",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewCardNotFoundError はカード番号が現在のスナップショットに存在しない場合のエラーを生成する。
func NewCardNotFoundError(index int) *APIError {
	return &APIError{
		Code:     ErrCodeCardNotFound,
		Message:  fmt.Sprintf("指定されたカードが見つかりません: %d", index),
		Category: "view",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewInvalidParameterError はリクエストパラメータが不正な場合のエラーを生成する。
func NewInvalidParameterError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("無効なパラメータです: %s", name),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewRefreshIgnoredError は更新が既に進行中のため無視された場合のエラーを生成する。
func NewRefreshIgnoredError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshIgnored,
		Message:  "ニュースの更新は既に進行中です。",
		Category: "view",
		Action:   "更新が完了するまでお待ちください。",
	}
}
