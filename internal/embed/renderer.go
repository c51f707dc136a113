// Package embed は投稿データからSNSクローラー向けの埋め込みHTMLを生成する。
package embed

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"log/slog"

	"github.com/hitoshi/hoyoembed/internal/model"
	"github.com/hitoshi/hoyoembed/internal/security"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	// DefaultColor は game.color が無い場合のアクセントカラー。
	DefaultColor = "#25A0E7"
	// MaxGalleryImages はギャラリーに表示する画像の上限数。
	MaxGalleryImages = 4
	// RedirectDelay は閲覧者を投稿ページへ遷移させるまでの待ち時間（ミリ秒）。
	RedirectDelay = 3000

	siteName = "HoYoLAB"
)

var postTemplate = template.Must(template.ParseFS(templatesFS, "templates/post.html"))

// document はテンプレートに渡す値。
// すべての値は html/template の文脈に応じたエスケープを経て出力される。
type document struct {
	CanonicalURL        string
	Subject             string
	Description         string
	Nickname            string
	AvatarURL           string
	Image               string
	Color               string
	Gallery             []string
	SiteName            string
	RedirectDelayMillis int
}

// Renderer は埋め込みHTMLの生成器。
type Renderer struct {
	stripper security.TagStripperService
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewRenderer はRendererの新しいインスタンスを生成する。
func NewRenderer(stripper security.TagStripperService, logger *slog.Logger) *Renderer {
	if stripper == nil {
		stripper = security.NewTagStripper()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		stripper: stripper,
		tmpl:     postTemplate,
		logger:   logger,
	}
}

// Render は投稿データと正規の投稿URLから埋め込みHTMLを生成する。
// 任意項目が欠けていても必ずHTMLを返す。
func (r *Renderer) Render(post *model.PostRecord, canonicalURL string) string {
	doc := r.buildDocument(post, canonicalURL)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		r.logger.Error("埋め込みHTMLの生成に失敗しました",
			slog.String("canonical_url", canonicalURL),
			slog.String("error", err.Error()),
		)
		return fallbackDocument(doc)
	}
	return buf.String()
}

// buildDocument は投稿データからテンプレートの値を組み立てる。
func (r *Renderer) buildDocument(post *model.PostRecord, canonicalURL string) document {
	if post == nil {
		post = &model.PostRecord{}
	}

	images := post.ImageList
	if post.Post.HasCover {
		images = post.CoverList
	}

	var image string
	if len(images) > 0 {
		image = images[0].URL
	}
	if post.Post.ViewType == model.ViewTypeVideo && post.Video != nil && post.Video.Cover != "" {
		image = post.Video.Cover
	}

	color := DefaultColor
	if post.Game != nil && post.Game.Color != "" {
		color = post.Game.Color
	}

	gallery := make([]string, 0, MaxGalleryImages)
	for _, img := range images {
		if len(gallery) == MaxGalleryImages {
			break
		}
		if img.URL != "" {
			gallery = append(gallery, img.URL)
		}
	}

	// タグの除去はエスケープより先に行う。エスケープはテンプレートが担う
	description := r.stripper.StripTags(post.Post.Desc)

	return document{
		CanonicalURL:        canonicalURL,
		Subject:             post.Post.Subject,
		Description:         description,
		Nickname:            post.User.Nickname,
		AvatarURL:           post.User.AvatarURL,
		Image:               image,
		Color:               color,
		Gallery:             gallery,
		SiteName:            siteName,
		RedirectDelayMillis: RedirectDelay,
	}
}

// fallbackDocument はテンプレートの実行に失敗した場合の最小限のHTMLを返す。
func fallbackDocument(doc document) string {
	title := html.EscapeString(doc.Subject)
	link := html.EscapeString(doc.CanonicalURL)
	return `<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8">` +
		`<meta property="og:title" content="` + title + `">` +
		`<title>` + title + ` - ` + siteName + `</title></head>` +
		`<body><a href="` + link + `">View on ` + siteName + `</a></body></html>`
}
