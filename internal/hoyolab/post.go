package hoyolab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/hoyoembed/internal/model"
)

const (
	getPostIDPath   = "/community/post/wapi/getPostID"
	getPostFullPath = "/community/post/wapi/getPostFull"
)

// postID は文字列と数値のどちらのJSON表現も受け付ける投稿ID。
type postID string

// UnmarshalJSON はJSON文字列・数値・nullを投稿IDとして読み込む。
func (id *postID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = postID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("post_id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("post_id must be an integer: %w", err)
	}
	*id = postID(n.String())
	return nil
}

// getPostIDResponse は getPostID APIのレスポンス。
type getPostIDResponse struct {
	Data *struct {
		PostID postID `json:"post_id"`
	} `json:"data"`
}

// getPostFullResponse は getPostFull APIのレスポンス。
type getPostFullResponse struct {
	Retcode *int   `json:"retcode"`
	Message string `json:"message"`
	Data    *struct {
		Post *model.PostRecord `json:"post"`
	} `json:"data"`
}

// ResolvePrePostID はプレポストIDを投稿IDに変換する。
// 通信失敗、JSONのパース失敗、data.post_id の欠損はエラーになる。
func (c *Client) ResolvePrePostID(ctx context.Context, prePostID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	id, err := c.resolvePrePostID(ctx, prePostID)
	c.record(EndpointGetPostID, start, err)
	if err != nil {
		c.logger.Warn("プレポストIDの変換に失敗しました",
			slog.String("pre_post_id", prePostID),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return id, nil
}

func (c *Client) resolvePrePostID(ctx context.Context, prePostID string) (string, error) {
	resp, err := c.get(ctx, EndpointGetPostID, c.apiURL(getPostIDPath, url.Values{"id": {prePostID}}), "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTPステータス %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := c.readBody(resp)
	if err != nil {
		return "", err
	}

	var result getPostIDResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Data == nil || result.Data.PostID == "" {
		return "", fmt.Errorf("%w: data.post_id がありません", ErrMalformedResponse)
	}

	return string(result.Data.PostID), nil
}

// FetchPost は投稿詳細を取得する。
// langは x-rpc-language ヘッダーとして送信され、空の場合はデフォルト言語を使用する。
// retcode が0以外の場合は ErrUpstreamStatus を返す。
func (c *Client) FetchPost(ctx context.Context, postID, lang string) (*model.PostRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	post, err := c.fetchPost(ctx, postID, lang)
	c.record(EndpointGetPostFull, start, err)
	if err != nil {
		c.logger.Warn("投稿詳細の取得に失敗しました",
			slog.String("post_id", postID),
			slog.String("lang", lang),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return post, nil
}

func (c *Client) fetchPost(ctx context.Context, postID, lang string) (*model.PostRecord, error) {
	query := url.Values{
		"post_id": {postID},
		"read":    {"1"},
		"scene":   {"1"},
	}
	resp, err := c.get(ctx, EndpointGetPostFull, c.apiURL(getPostFullPath, query), lang)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTPステータス %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	var result getPostFullResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if result.Retcode == nil {
		return nil, fmt.Errorf("%w: retcode がありません", ErrUpstreamStatus)
	}
	if *result.Retcode != 0 {
		return nil, fmt.Errorf("%w: retcode=%d message=%q", ErrUpstreamStatus, *result.Retcode, result.Message)
	}

	if result.Data == nil || result.Data.Post == nil {
		return nil, fmt.Errorf("%w: data.post がありません", ErrMalformedResponse)
	}

	return result.Data.Post, nil
}
