package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string

	// Logging
	LogLevel string

	// HoYoLAB
	APIBaseURL       string
	ShortLinkBaseURL string
	WebBaseURL       string
	AppVersion       string
	DefaultLanguage  string

	// Upstream
	UpstreamTimeout         time.Duration
	UpstreamMaxResponseSize int64
	UpstreamSSRFProtection  bool
}

// Load は環境変数からConfigを読み込む。
// 必須の環境変数はなく、未設定の項目にはデフォルト値を使用する。
// URLやタイムアウトが不正な値の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:              getEnvString("SERVER_PORT", "8080"),
		LogLevel:                strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		APIBaseURL:              strings.TrimRight(getEnvString("HOYOLAB_API_BASE_URL", "https://bbs-api-os.hoyolab.com"), "/"),
		ShortLinkBaseURL:        strings.TrimRight(getEnvString("HOYOLAB_SHORT_LINK_BASE_URL", "https://hoyo.link"), "/"),
		WebBaseURL:              strings.TrimRight(getEnvString("HOYOLAB_WEB_BASE_URL", "https://www.hoyolab.com"), "/"),
		AppVersion:              getEnvString("HOYOLAB_APP_VERSION", "4.3.0"),
		DefaultLanguage:         getEnvString("DEFAULT_LANGUAGE", "en-us"),
		UpstreamTimeout:         getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		UpstreamMaxResponseSize: getEnvInt64("UPSTREAM_MAX_RESPONSE_SIZE", 5242880),
		UpstreamSSRFProtection:  getEnvBool("UPSTREAM_SSRF_PROTECTION", true),
	}

	var invalid []string

	for key, raw := range map[string]string{
		"HOYOLAB_API_BASE_URL":        cfg.APIBaseURL,
		"HOYOLAB_SHORT_LINK_BASE_URL": cfg.ShortLinkBaseURL,
		"HOYOLAB_WEB_BASE_URL":        cfg.WebBaseURL,
	} {
		if !isHTTPURL(raw) {
			invalid = append(invalid, key)
		}
	}

	if cfg.UpstreamTimeout <= 0 {
		invalid = append(invalid, "UPSTREAM_TIMEOUT")
	}
	if cfg.UpstreamMaxResponseSize <= 0 {
		invalid = append(invalid, "UPSTREAM_MAX_RESPONSE_SIZE")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "LOG_LEVEL")
	}

	if len(invalid) > 0 {
		slices.Sort(invalid)
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return cfg, nil
}

// PostURL は投稿IDから正規の投稿URLを組み立てる。
func (c *Config) PostURL(postID string) string {
	return c.WebBaseURL + "/article/" + postID
}

// isHTTPURL はhttp/httpsスキームかつホストを持つURLかを判定する。
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
