package hoyolab

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/hoyoembed/internal/metrics"
)

const (
	transitPath = "/community/misc/api/transit"
	// socialShareRedirectMarker はトランジットAPIが外部共有URLをラップして返す際のパス。
	socialShareRedirectMarker = "social_sea_share/redirectUrl"
)

// FollowRedirects はURLにGETリクエストを送り、リダイレクトを追跡した最終URLを返す。
// 通信に失敗した場合は入力URLをそのまま返す。
func (c *Client) FollowRedirects(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.get(ctx, EndpointRedirect, rawURL, "")
	if err != nil {
		c.logger.Warn("リダイレクトの追跡に失敗したため入力URLをそのまま使用します",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordUpstreamCall(EndpointRedirect, metrics.OutcomeFallback, time.Since(start))
		return rawURL
	}
	defer c.discardBody(resp)

	c.record(EndpointRedirect, start, nil)
	return resp.Request.URL.String()
}

// ResolveShortQuery はトランジットAPIでクエリトークンを解決し、最終的なURLを返す。
// 最終URLが外部共有のリダイレクトページの場合は、url パラメータをデコードして返す。
func (c *Client) ResolveShortQuery(ctx context.Context, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.get(ctx, EndpointTransit, c.apiURL(transitPath, url.Values{"q": {token}}), "")
	if err != nil {
		c.logger.Warn("トランジットAPIの呼び出しに失敗しました",
			slog.String("q", token),
			slog.String("error", err.Error()),
		)
		c.record(EndpointTransit, start, err)
		return "", err
	}
	defer c.discardBody(resp)

	c.record(EndpointTransit, start, nil)
	return unwrapSocialShare(resp.Request.URL), nil
}

// unwrapSocialShare は外部共有のリダイレクトURLから遷移先URLを取り出す。
// 該当しない場合は最終URLをそのまま返す。
func unwrapSocialShare(final *url.URL) string {
	finalURL := final.String()
	if !strings.Contains(finalURL, socialShareRedirectMarker) {
		return finalURL
	}

	target := final.Query().Get("url")
	if target == "" {
		return finalURL
	}

	// クエリのデコードに加えて、url パラメータ自体がエンコードされている場合に備えてもう一度デコードする
	if decoded, err := url.PathUnescape(target); err == nil {
		return decoded
	}
	return target
}
