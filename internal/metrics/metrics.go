// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上流呼び出しとリンク解決の結果ラベル。
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeFallback  = "fallback"
	OutcomeExternal  = "external"
	OutcomeMalformed = "malformed"
	OutcomeStatus    = "status"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流ゲートウェイ、解決パイプライン、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordUpstreamCall(endpoint, outcome string, duration time.Duration)
	RecordUpstreamStatus(endpoint string, statusCode int)
	RecordResolution(flow, outcome string)
	RecordPrePostFallback(flow string)
	RecordRequest(route string, statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamCalls   *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	resolutions     *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	requests        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoyoembed_upstream_calls_total",
			Help: "上流呼び出しの結果別の合計数",
		}, []string{"endpoint", "outcome"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoyoembed_upstream_http_status_total",
			Help: "上流レスポンスのHTTPステータスコード別の合計数",
		}, []string{"endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoyoembed_upstream_latency_seconds",
			Help:    "上流呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoyoembed_resolutions_total",
			Help: "リンク解決フロー別・結果別の合計数",
		}, []string{"flow", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoyoembed_pre_post_fallbacks_total",
			Help: "プレポストIDの変換に失敗し元のIDで続行した回数",
		}, []string{"flow"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoyoembed_http_requests_total",
			Help: "受信リクエストのルート別・ステータスコード別の合計数",
		}, []string{"route", "status_code"}),
	}

	reg.MustRegister(
		c.upstreamCalls,
		c.upstreamStatus,
		c.upstreamLatency,
		c.resolutions,
		c.fallbacks,
		c.requests,
	)

	return c
}

// RecordUpstreamCall は上流呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamCall(endpoint, outcome string, duration time.Duration) {
	c.upstreamCalls.WithLabelValues(endpoint, outcome).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamStatus は上流レスポンスのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(endpoint string, statusCode int) {
	c.upstreamStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordResolution はリンク解決フローの結果を記録する。
func (c *Collector) RecordResolution(flow, outcome string) {
	c.resolutions.WithLabelValues(flow, outcome).Inc()
}

// RecordPrePostFallback はプレポストIDの変換失敗を無視して続行したことを記録する。
// 解決結果そのものはRecordResolutionで別に1回だけ記録される。
func (c *Collector) RecordPrePostFallback(flow string) {
	c.fallbacks.WithLabelValues(flow).Inc()
}

// RecordRequest は受信リクエストのレスポンスステータスを記録する。
func (c *Collector) RecordRequest(route string, statusCode int) {
	c.requests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
// テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordUpstreamCall(string, string, time.Duration) {}
func (NopCollector) RecordUpstreamStatus(string, int) {}
func (NopCollector) RecordResolution(string, string) {}
func (NopCollector) RecordPrePostFallback(string) {}
func (NopCollector) RecordRequest(string, int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
