package security

import (
	"strings"

	"golang.org/x/net/html"
)

// TagStripperService はユーザー投稿テキストからHTMLマークアップを除去する機能のインターフェース。
type TagStripperService interface {
	// StripTags はすべてのタグを除去したプレーンテキストを返す。
	// 戻り値はエスケープされていないため、出力時に必ずエスケープすること。
	StripTags(raw string) string
}

// tagStripper はTagStripperServiceの実装。状態を持たないため並行に利用できる。
type tagStripper struct{}

// NewTagStripper はTagStripperServiceの新しいインスタンスを生成する。
func NewTagStripper() *tagStripper {
	return &tagStripper{}
}

// StripTags はタグとコメントを除去し、テキストトークンのみを連結して返す。
// script や style の中身もテキストとして残す。
// エンティティは文字に戻すため、エスケープは呼び出し元の責務とする。
func (s *tagStripper) StripTags(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF を含め、これ以上読めない時点で終了する
			return b.String()
		case html.TextToken:
			b.Write(tokenizer.Text())
		}
	}
}
