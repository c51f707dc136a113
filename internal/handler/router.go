package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hoyoembed/internal/metrics"
	"github.com/hitoshi/hoyoembed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector

	// リンク解決と埋め込み
	Resolver          ResolverInterface
	Renderer          RendererInterface
	RedirectValidator RedirectValidator
	EmbedConfig       EmbedHandlerConfig

	// MetricsHandler は /metrics で公開するハンドラー。nilの場合は公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Metrics → Recovery → SecurityHeaders
//
// Recoveryはpanicを500レスポンスに変換するため、LoggingとMetricsより内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	embedHandler := NewEmbedHandler(deps.Resolver, deps.Renderer, deps.RedirectValidator, deps.EmbedConfig)

	// サービス情報
	r.Get("/", Root)
	r.Get("/health", Health)

	// リンク解決
	r.Get("/post", embedHandler.Post)
	r.Get("/sh", embedHandler.ShortLink)
	r.Get("/q", embedHandler.Query)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}
