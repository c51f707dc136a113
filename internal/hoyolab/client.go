// Package hoyolab はHoYoLABの上流APIと短縮リンクサービスへのアクセスを提供する。
// 通信失敗や想定外のレスポンスはすべてこのパッケージ内でエラー値に変換し、
// 呼び出し元は戻り値で分岐する。
package hoyolab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/hoyoembed/internal/metrics"
)

const (
	defaultAPIBaseURL      = "https://bbs-api-os.hoyolab.com"
	defaultAppVersion      = "4.3.0"
	defaultLanguage        = "en-us"
	defaultTimeout         = 10 * time.Second
	defaultMaxResponseSize = 5 * 1024 * 1024
)

// メトリクスとログに使用するエンドポイント名。
const (
	EndpointRedirect    = "redirect"
	EndpointTransit     = "transit"
	EndpointGetPostID   = "getPostID"
	EndpointGetPostFull = "getPostFull"
)

var (
	// ErrTransport は通信エラーやタイムアウトを表す。
	ErrTransport = errors.New("hoyolab: transport failure")
	// ErrUpstreamStatus は上流が失敗ステータス（HTTPステータスまたはretcode）を返したことを表す。
	ErrUpstreamStatus = errors.New("hoyolab: upstream returned failure status")
	// ErrMalformedResponse はレスポンスのJSON形式が想定と異なることを表す。
	ErrMalformedResponse = errors.New("hoyolab: malformed upstream response")
)

// Config は上流クライアントの設定。起動時に1回構築し、変更しない。
type Config struct {
	APIBaseURL      string
	AppVersion      string
	DefaultLanguage string
	Timeout         time.Duration
	MaxResponseSize int64
}

// Client はHoYoLABの上流APIクライアント。
// http.Clientのコネクションプールを共有するため、複数のリクエストから並行に利用できる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	config     Config
}

// NewClient はClientの新しいインスタンスを生成する。
// Configのゼロ値の項目にはデフォルト値を使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = defaultAppVersion
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = defaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = defaultMaxResponseSize
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		config:     cfg,
	}
}

// get はクライアント識別ヘッダーを付与してGETリクエストを送信する。
// リダイレクトはhttp.Clientの設定に従って追跡される。
// ctxはタイムアウト付きで渡すこと。
func (c *Client) get(ctx context.Context, endpoint, rawURL, lang string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTPリクエストの作成に失敗しました: %v", ErrTransport, err)
	}

	if lang == "" {
		lang = c.config.DefaultLanguage
	}
	req.Header.Set("User-Agent", "HoYoLAB/"+c.config.AppVersion)
	req.Header.Set("x-rpc-app_version", c.config.AppVersion)
	req.Header.Set("x-rpc-language", lang)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.metrics.RecordUpstreamStatus(endpoint, resp.StatusCode)
	return resp, nil
}

// readBody はレスポンスボディを上限サイズまで読み取る。
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: レスポンスボディの読み取りに失敗しました: %v", ErrTransport, err)
	}
	if int64(len(body)) > c.config.MaxResponseSize {
		return nil, fmt.Errorf("%w: レスポンスが上限サイズ %d バイトを超えています", ErrMalformedResponse, c.config.MaxResponseSize)
	}
	return body, nil
}

// discardBody はコネクションを再利用できるようボディを読み捨てて閉じる。
func (c *Client) discardBody(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, c.config.MaxResponseSize))
	resp.Body.Close()
}

// apiURL はAPIベースURLにパスとクエリを連結したURLを返す。
func (c *Client) apiURL(path string, query url.Values) string {
	return c.config.APIBaseURL + path + "?" + query.Encode()
}

// record は呼び出し結果をメトリクスに記録する。
func (c *Client) record(endpoint string, start time.Time, err error) {
	c.metrics.RecordUpstreamCall(endpoint, outcomeOf(err), time.Since(start))
}

// outcomeOf はエラーの種別をメトリクスの結果ラベルに変換する。
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrUpstreamStatus):
		return metrics.OutcomeStatus
	case errors.Is(err, ErrMalformedResponse):
		return metrics.OutcomeMalformed
	default:
		return metrics.OutcomeFailure
	}
}
