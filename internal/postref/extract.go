// Package postref はHoYoLABの投稿URLから投稿IDを抽出する。
package postref

import (
	"regexp"

	"github.com/hitoshi/hoyoembed/internal/model"
)

// pattern はURL形状の認識パターンと、一致した場合のプレポストフラグの組。
type pattern struct {
	re        *regexp.Regexp
	isPrePost bool
}

// patterns は優先順に並べた認識パターン。先に一致したものを採用する。
// URL全体への一致は要求せず、部分一致で判定する。
var patterns = []pattern{
	{re: regexp.MustCompile(`hoyolab\.com/article_pre/(\d+)`), isPrePost: true},
	{re: regexp.MustCompile(`hoyolab\.com/article/(\d+)`), isPrePost: false},
	{re: regexp.MustCompile(`hoyolab\.com/#/article/(\d+)`), isPrePost: false},
	{re: regexp.MustCompile(`m\.hoyolab\.com/#/article/(\d+)`), isPrePost: false},
}

// Extract はURL文字列から投稿IDを抽出する。
// いずれのパターンにも一致しない場合は false を返す。
func Extract(rawURL string) (model.PostReference, bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		return model.PostReference{ID: m[1], IsPrePost: p.isPrePost}, true
	}
	return model.PostReference{}, false
}
