package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/hoyoembed/internal/middleware"
	"github.com/hitoshi/hoyoembed/internal/model"
	"github.com/hitoshi/hoyoembed/internal/security"
)

// ResolverInterface は埋め込みハンドラーが必要とする解決パイプラインのインターフェース。
type ResolverInterface interface {
	// ResolveDirect は投稿IDを直接指定して投稿を取得する。
	ResolveDirect(ctx context.Context, postID, lang string) (*model.Resolution, error)
	// ResolveShortLink は短縮コードを展開して投稿または外部URLに解決する。
	ResolveShortLink(ctx context.Context, code, lang string) (*model.Resolution, error)
	// ResolveQuery はクエリトークンを解決して投稿または外部URLに解決する。
	ResolveQuery(ctx context.Context, token, lang string) (*model.Resolution, error)
}

// RendererInterface は投稿データから埋め込みHTMLを生成するインターフェース。
type RendererInterface interface {
	Render(post *model.PostRecord, canonicalURL string) string
}

// RedirectValidator は外部URLへのリダイレクト可否を検証するインターフェース。
// security.UpstreamGuardService の部分集合として定義する。
type RedirectValidator interface {
	ValidateRedirectTarget(rawURL string) error
}

// EmbedHandlerConfig は埋め込みハンドラーの設定。
type EmbedHandlerConfig struct {
	// DefaultLanguage は lang パラメータ省略時に使用する言語。
	DefaultLanguage string
}

// EmbedHandler はリンクを解決して埋め込みHTMLまたはリダイレクトを返すHTTPハンドラー。
type EmbedHandler struct {
	resolver  ResolverInterface
	renderer  RendererInterface
	validator RedirectValidator
	config    EmbedHandlerConfig
}

// NewEmbedHandler はEmbedHandlerを生成する。
// validatorがnilの場合はsecurity.NewUpstreamGuardの検証を使用する。
func NewEmbedHandler(resolver ResolverInterface, renderer RendererInterface, validator RedirectValidator, config EmbedHandlerConfig) *EmbedHandler {
	if validator == nil {
		validator = security.NewUpstreamGuard()
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en-us"
	}
	return &EmbedHandler{
		resolver:  resolver,
		renderer:  renderer,
		validator: validator,
		config:    config,
	}
}

// Post は投稿IDを直接指定したリンクを処理する。
// GET /post?post_id=<id>&lang=<lang>
func (h *EmbedHandler) Post(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post_id")
	if postID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError("post_id"))
		return
	}

	res, err := h.resolver.ResolveDirect(r.Context(), postID, h.language(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeResolution(w, r, res)
}

// ShortLink は hoyo.link の短縮コードを処理する。
// GET /sh?redirect=<code>&lang=<lang>
func (h *EmbedHandler) ShortLink(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("redirect")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError("redirect"))
		return
	}

	res, err := h.resolver.ResolveShortLink(r.Context(), code, h.language(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeResolution(w, r, res)
}

// Query はトランジットAPIのクエリトークンを処理する。
// GET /q?q=<token>&lang=<lang>
func (h *EmbedHandler) Query(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("q")
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError("q"))
		return
	}

	res, err := h.resolver.ResolveQuery(r.Context(), token, h.language(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeResolution(w, r, res)
}

// language はリクエストの lang パラメータを返す。省略時はデフォルト言語。
func (h *EmbedHandler) language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return h.config.DefaultLanguage
}

// writeResolution は解決結果をレスポンスに変換する。
// 外部URLはそのままリダイレクトし、投稿は埋め込みHTMLを返す。
func (h *EmbedHandler) writeResolution(w http.ResponseWriter, r *http.Request, res *model.Resolution) {
	if res.Target.IsExternal() {
		target := res.Target.ExternalURL()
		if err := h.validator.ValidateRedirectTarget(target); err != nil {
			slog.Warn("リダイレクト先として不正なURLに解決されました",
				slog.String("url", target),
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			)
			writeAPIErrorResponse(w, http.StatusBadGateway, model.NewInvalidRedirectTargetError(err.Error()))
			return
		}
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}

	doc := h.renderer.Render(res.Post, res.CanonicalURL)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
