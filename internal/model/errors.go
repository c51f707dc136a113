// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Message はレスポンスボディの "error" にそのまま出力されるため、
// 外部に公開している文言（"Failed to fetch post" など）を変更しないこと。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, upstream, system
	Action   string // 運用者向けの対処方法（ログにのみ出力する）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingParameter       = "MISSING_PARAMETER"
	ErrCodePrePostResolveFailed   = "PRE_POST_RESOLVE_FAILED"
	ErrCodeShortLinkResolveFailed = "SHORT_LINK_RESOLVE_FAILED"
	ErrCodePostFetchFailed        = "POST_FETCH_FAILED"
	ErrCodeInvalidRedirectTarget  = "INVALID_REDIRECT_TARGET"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// NewMissingParameterError は必須クエリパラメータ未指定エラーを生成する。
func NewMissingParameterError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameter,
		Message:  fmt.Sprintf("Missing %s param", param),
		Category: "validation",
		Action:   fmt.Sprintf("クエリパラメータ %s を指定してください。", param),
	}
}

// NewPrePostResolveFailedError はプレポストIDの変換失敗エラーを生成する。
func NewPrePostResolveFailedError(prePostID string) *APIError {
	return &APIError{
		Code:     ErrCodePrePostResolveFailed,
		Message:  "Failed to resolve pre-post ID",
		Category: "upstream",
		Action:   fmt.Sprintf("getPostID APIの応答を確認してください（id=%s）。", prePostID),
	}
}

// NewShortLinkResolveFailedError はトランジットAPIによる短縮リンク解決の失敗エラーを生成する。
func NewShortLinkResolveFailedError(token string) *APIError {
	return &APIError{
		Code:     ErrCodeShortLinkResolveFailed,
		Message:  "Failed to resolve short link",
		Category: "upstream",
		Action:   fmt.Sprintf("transit APIの応答を確認してください（q=%s）。", token),
	}
}

// NewPostFetchFailedError は投稿詳細の取得失敗エラーを生成する。
func NewPostFetchFailedError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostFetchFailed,
		Message:  "Failed to fetch post",
		Category: "upstream",
		Action:   fmt.Sprintf("getPostFull APIの応答を確認してください（post_id=%s）。", postID),
	}
}

// NewInvalidRedirectTargetError はリダイレクト先として出力できないURLのエラーを生成する。
func NewInvalidRedirectTargetError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRedirectTarget,
		Message:  "Resolved link is not a valid redirect target",
		Category: "upstream",
		Action:   fmt.Sprintf("解決後のURLを確認してください: %s", reason),
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
