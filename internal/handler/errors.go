package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/hoyoembed/internal/middleware"
	"github.com/hitoshi/hoyoembed/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 運用者向けの対処方法はログにのみ出力する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		slog.Warn("リンクの解決に失敗しました",
			slog.String("code", apiErr.Code),
			slog.String("category", apiErr.Category),
			slog.String("action", apiErr.Action),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingParameter:
		return http.StatusBadRequest
	case model.ErrCodeInvalidRedirectTarget:
		return http.StatusBadGateway
	case model.ErrCodePrePostResolveFailed, model.ErrCodeShortLinkResolveFailed, model.ErrCodePostFetchFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
