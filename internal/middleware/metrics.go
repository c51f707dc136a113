package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hoyoembed/internal/metrics"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのラベル。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はルート別・ステータスコード別のリクエスト数を記録するミドルウェアを返す。
// ラベルの種類が増えないよう、パスではなくchiのルートパターンを使用する。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			collector.RecordRequest(route, rec.statusCode)
		})
	}
}
