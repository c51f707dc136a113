// Package security はアウトバウンド通信とレスポンス出力に関するセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// UpstreamGuardService は上流通信の安全性を担保する機能のインターフェース。
type UpstreamGuardService interface {
	// NewUpstreamClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// hoyo.link のリダイレクト先は任意のホストになり得るため、
	// リダイレクト追跡の各ホップでプライベートIP等への接続をブロックする。
	NewUpstreamClient(timeout time.Duration) *http.Client

	// ValidateUpstreamURL は設定された上流のベースURLを起動時に静的検証する。
	ValidateUpstreamURL(rawURL string) error

	// ValidateRedirectTarget は外部リダイレクト先としてLocationヘッダーに出力できるURLかを検証する。
	ValidateRedirectTarget(rawURL string) error
}

// allowedSchemes は上流通信およびリダイレクト先で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は上流のベースURLとして許可しないアドレス範囲。
// 実際の接続時の検証はsafeurlがDialerのControlフックで行う。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// upstreamGuard はUpstreamGuardServiceの実装。
type upstreamGuard struct{}

// NewUpstreamGuard はUpstreamGuardServiceの新しいインスタンスを生成する。
func NewUpstreamGuard() *upstreamGuard {
	return &upstreamGuard{}
}

// NewUpstreamClient はSSRF防止機能付きのHTTPクライアントを生成する。
// ポートは80/443のみ許可する。
func (g *upstreamGuard) NewUpstreamClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateUpstreamURL は上流のベースURLを静的に検証する。
// スキーム、ホスト、IPリテラルのアドレス範囲を確認する。
func (g *upstreamGuard) ValidateUpstreamURL(rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}

	host := parsed.Hostname()
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// ホスト名の場合はDNS解決後にsafeurlが検証する
		return nil
	}
	addr = addr.Unmap()
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
	}
	return nil
}

// ValidateRedirectTarget はリダイレクト先URLのスキームとホストを検証する。
// javascript: や data: などのスキームは拒否する。
func (g *upstreamGuard) ValidateRedirectTarget(rawURL string) error {
	_, err := parseHTTPURL(rawURL)
	return err
}

// parseHTTPURL はURLをパースし、http/httpsスキームかつホストを持つことを検証する。
func parseHTTPURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if !isAllowedScheme(parsed.Scheme) {
		return nil, fmt.Errorf("disallowed scheme: %q (allowed: %v)", parsed.Scheme, allowedSchemes)
	}

	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("empty host in URL: %s", rawURL)
	}

	return parsed, nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}
