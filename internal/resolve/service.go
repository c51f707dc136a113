// Package resolve は受け付けたリンクを正規の投稿IDまたは外部URLに解決するパイプラインを提供する。
//
// 入口は3つある。
//
//	ResolveDirect    : 投稿IDの直接指定（/post）
//	ResolveShortLink : hoyo.link の短縮コード（/sh）
//	ResolveQuery     : トランジットAPIのクエリトークン（/q）
//
// 上流呼び出しは1リクエスト内で逐次に行い、各ステップの結果を次のステップの入力にする。
package resolve

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/hoyoembed/internal/metrics"
	"github.com/hitoshi/hoyoembed/internal/model"
	"github.com/hitoshi/hoyoembed/internal/postref"
)

// メトリクスとログに使用するフロー名。
const (
	FlowDirect    = "direct"
	FlowShortLink = "short_link"
	FlowQuery     = "query"
)

// prePostIDMinLength を超える長さの直接指定IDはプレポストIDとみなして変換を試みる。
const prePostIDMinLength = 15

// Gateway は解決パイプラインが必要とする上流アクセスのインターフェース。
type Gateway interface {
	// FollowRedirects はリダイレクトを追跡した最終URLを返す。失敗時は入力URLを返す。
	FollowRedirects(ctx context.Context, rawURL string) string
	// ResolveShortQuery はクエリトークンを解決したURLを返す。
	ResolveShortQuery(ctx context.Context, token string) (string, error)
	// ResolvePrePostID はプレポストIDを投稿IDに変換する。
	ResolvePrePostID(ctx context.Context, prePostID string) (string, error)
	// FetchPost は投稿詳細を取得する。
	FetchPost(ctx context.Context, postID, lang string) (*model.PostRecord, error)
}

// Options は解決パイプラインの設定。
type Options struct {
	// ShortLinkBaseURL は短縮コードを展開するドメイン（例: https://hoyo.link）。
	ShortLinkBaseURL string
	// PostURL は投稿IDから正規の投稿URLを組み立てる。
	PostURL func(postID string) string
}

// Service は解決パイプラインのサービス層。
// 状態を持たないため、複数のリクエストから並行に利用できる。
type Service struct {
	gateway          Gateway
	logger           *slog.Logger
	metrics          metrics.MetricsCollector
	shortLinkBaseURL string
	postURL          func(postID string) string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(gateway Gateway, logger *slog.Logger, collector metrics.MetricsCollector, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	postURL := opts.PostURL
	if postURL == nil {
		postURL = func(postID string) string {
			return "https://www.hoyolab.com/article/" + postID
		}
	}

	return &Service{
		gateway:          gateway,
		logger:           logger,
		metrics:          collector,
		shortLinkBaseURL: strings.TrimRight(opts.ShortLinkBaseURL, "/"),
		postURL:          postURL,
	}
}

// ResolveDirect は直接指定された投稿IDの投稿を取得する。
// 長すぎるIDはプレポストIDとして変換を試みるが、変換に失敗しても元のIDで取得を続行する。
func (s *Service) ResolveDirect(ctx context.Context, postID, lang string) (*model.Resolution, error) {
	id := postID
	if utf8.RuneCountInString(postID) > prePostIDMinLength {
		translated, err := s.gateway.ResolvePrePostID(ctx, postID)
		if err != nil {
			s.logger.Info("プレポストIDとしての変換に失敗したため元のIDで投稿を取得します",
				slog.String("flow", FlowDirect),
				slog.String("post_id", postID),
			)
			s.metrics.RecordPrePostFallback(FlowDirect)
		} else {
			id = translated
		}
	}

	return s.fetch(ctx, FlowDirect, id, lang)
}

// ResolveShortLink は短縮コードを展開し、投稿であれば取得する。
// 展開先が投稿URLでない場合は外部URLへの解決結果を返す。
func (s *Service) ResolveShortLink(ctx context.Context, code, lang string) (*model.Resolution, error) {
	finalURL := s.gateway.FollowRedirects(ctx, s.shortLinkURL(code))
	return s.resolveFinalURL(ctx, FlowShortLink, finalURL, lang)
}

// ResolveQuery はクエリトークンをトランジットAPIで解決し、投稿であれば取得する。
func (s *Service) ResolveQuery(ctx context.Context, token, lang string) (*model.Resolution, error) {
	finalURL, err := s.gateway.ResolveShortQuery(ctx, token)
	if err != nil || finalURL == "" {
		s.metrics.RecordResolution(FlowQuery, metrics.OutcomeFailure)
		return nil, model.NewShortLinkResolveFailedError(token)
	}

	return s.resolveFinalURL(ctx, FlowQuery, finalURL, lang)
}

// resolveFinalURL は展開後のURLから投稿IDを抽出して投稿を取得する。
// ここでのプレポストIDの変換失敗は正規のIDを得られないことを意味するため、エラーとする。
func (s *Service) resolveFinalURL(ctx context.Context, flow, finalURL, lang string) (*model.Resolution, error) {
	ref, ok := postref.Extract(finalURL)
	if !ok {
		s.logger.Debug("投稿URLではないため外部URLとして扱います",
			slog.String("flow", flow),
			slog.String("url", finalURL),
		)
		s.metrics.RecordResolution(flow, metrics.OutcomeExternal)
		return &model.Resolution{Target: model.NewExternalTarget(finalURL)}, nil
	}

	id := ref.ID
	if ref.IsPrePost {
		translated, err := s.gateway.ResolvePrePostID(ctx, ref.ID)
		if err != nil {
			s.metrics.RecordResolution(flow, metrics.OutcomeFailure)
			return nil, model.NewPrePostResolveFailedError(ref.ID)
		}
		id = translated
	}

	return s.fetch(ctx, flow, id, lang)
}

// fetch は投稿詳細を取得して解決結果を組み立てる。
func (s *Service) fetch(ctx context.Context, flow, postID, lang string) (*model.Resolution, error) {
	post, err := s.gateway.FetchPost(ctx, postID, lang)
	if err != nil {
		s.metrics.RecordResolution(flow, metrics.OutcomeFailure)
		return nil, model.NewPostFetchFailedError(postID)
	}

	s.metrics.RecordResolution(flow, metrics.OutcomeSuccess)
	return &model.Resolution{
		Target:       model.NewPostTarget(postID),
		CanonicalURL: s.postURL(postID),
		Post:         post,
	}, nil
}

// shortLinkURL は短縮コードから展開元のURLを組み立てる。
// コードはパスセグメントとしてエスケープする。
func (s *Service) shortLinkURL(code string) string {
	return s.shortLinkBaseURL + "/" + url.PathEscape(code)
}
