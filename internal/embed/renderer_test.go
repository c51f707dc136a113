package embed

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/hoyoembed/internal/model"
	"golang.org/x/net/html"
)

// --- テストヘルパー ---

func newTestRenderer(buf *bytes.Buffer) *Renderer {
	return NewRenderer(nil, slog.New(slog.NewJSONHandler(buf, nil)))
}

func parseDocument(t *testing.T, doc string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("生成されたHTMLのパースに失敗: %v", err)
	}
	return root
}

// findAll は条件に一致する要素ノードをすべて返す。
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		v, _ := attr(n, "class")
		return v == class
	}
}

// metaContent は property または name が key の meta 要素の content を返す。
func metaContent(root *html.Node, key string) (string, bool) {
	metas := findAll(root, func(n *html.Node) bool {
		if n.Data != "meta" {
			return false
		}
		p, _ := attr(n, "property")
		name, _ := attr(n, "name")
		return p == key || name == key
	})
	if len(metas) == 0 {
		return "", false
	}
	return attr(metas[0], "content")
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func imagesOf(n int) []model.PostImage {
	images := make([]model.PostImage, n)
	for i := range images {
		images[i] = model.PostImage{URL: fmt.Sprintf("https://img.example/%d.png", i)}
	}
	return images
}

const canonical = "https://www.hoyolab.com/article/12345"

// --- Render ---

func TestRender_FullPost(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{
		Post:      model.PostContent{Subject: "Patch 4.3", Desc: "<p>New <b>banner</b></p>", HasCover: true, ViewType: 1},
		User:      model.PostAuthor{Nickname: "Paimon", AvatarURL: "https://img.example/avatar.png"},
		CoverList: []model.PostImage{{URL: "https://img.example/cover.png"}},
		ImageList: imagesOf(2),
		Game:      &model.PostGame{Color: "#FFAA00"},
	}

	root := parseDocument(t, r.Render(post, canonical))

	tests := []struct {
		key  string
		want string
	}{
		{"og:type", "article"},
		{"og:url", canonical},
		{"og:title", "Patch 4.3"},
		{"og:description", "New banner"},
		{"og:image", "https://img.example/cover.png"},
		{"og:site_name", "HoYoLAB"},
		{"twitter:card", "summary_large_image"},
		{"twitter:title", "Patch 4.3"},
		{"twitter:description", "New banner"},
		{"twitter:image", "https://img.example/cover.png"},
		{"theme-color", "#FFAA00"},
		{"author", "Paimon"},
	}
	for _, tt := range tests {
		got, ok := metaContent(root, tt.key)
		if !ok {
			t.Errorf("meta %s が出力されていない", tt.key)
			continue
		}
		if got != tt.want {
			t.Errorf("meta %s = %q, want %q", tt.key, got, tt.want)
		}
	}

	titles := findAll(root, byTag("title"))
	if len(titles) != 1 || textOf(titles[0]) != "Patch 4.3 - HoYoLAB" {
		t.Errorf("title が不正: %d 件", len(titles))
	}

	links := findAll(root, byClass("redirect-btn"))
	if len(links) != 1 {
		t.Fatalf("redirect-btn = %d 件, want 1", len(links))
	}
	if href, _ := attr(links[0], "href"); href != canonical {
		t.Errorf("href = %q, want %q", href, canonical)
	}
	if text := textOf(links[0]); text != "View on HoYoLAB" {
		t.Errorf("リンクテキスト = %q", text)
	}

	// has_cover の場合ギャラリーはカバー画像から作られる
	gallery := findAll(root, byClass("image-gallery"))
	if len(gallery) != 1 {
		t.Fatalf("image-gallery = %d 件, want 1", len(gallery))
	}
	if imgs := findAll(gallery[0], byTag("img")); len(imgs) != 1 {
		t.Errorf("ギャラリーの画像 = %d 件, want 1", len(imgs))
	}

	avatars := findAll(findAll(root, byClass("author"))[0], byTag("img"))
	if len(avatars) != 1 {
		t.Fatalf("アバター画像 = %d 件, want 1", len(avatars))
	}
	if src, _ := attr(avatars[0], "src"); src != "https://img.example/avatar.png" {
		t.Errorf("avatar src = %q", src)
	}
}

func TestRender_RedirectScript(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	root := parseDocument(t, r.Render(&model.PostRecord{}, canonical))

	scripts := findAll(root, byTag("script"))
	if len(scripts) != 1 {
		t.Fatalf("script = %d 件, want 1", len(scripts))
	}
	body := textOf(scripts[0])
	if !strings.Contains(body, "setTimeout") || !strings.Contains(body, "3000") {
		t.Errorf("遷移スクリプトが不正: %s", body)
	}
	// 正規URLはJS文字列リテラルとして埋め込まれる
	if !strings.Contains(body, `"`+canonical+`"`) {
		t.Errorf("遷移先URLが含まれていない: %s", body)
	}
}

func TestRender_UsesImageListWithoutCover(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{
		Post:      model.PostContent{HasCover: false},
		CoverList: []model.PostImage{{URL: "https://img.example/cover.png"}},
		ImageList: imagesOf(3),
	}

	root := parseDocument(t, r.Render(post, canonical))

	if got, _ := metaContent(root, "og:image"); got != "https://img.example/0.png" {
		t.Errorf("og:image = %q", got)
	}
	gallery := findAll(root, byClass("image-gallery"))
	if len(gallery) != 1 || len(findAll(gallery[0], byTag("img"))) != 3 {
		t.Error("ギャラリーに image_list の画像が3件出力されていない")
	}
}

func TestRender_VideoCoverOverridesImage(t *testing.T) {
	tests := []struct {
		name     string
		viewType int
		video    *model.PostVideo
		want     string
	}{
		{"動画投稿", model.ViewTypeVideo, &model.PostVideo{Cover: "https://img.example/video.png"}, "https://img.example/video.png"},
		{"動画投稿だがvideoなし", model.ViewTypeVideo, nil, "https://img.example/0.png"},
		{"動画投稿だがカバーが空", model.ViewTypeVideo, &model.PostVideo{}, "https://img.example/0.png"},
		{"動画以外の投稿", 1, &model.PostVideo{Cover: "https://img.example/video.png"}, "https://img.example/0.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := newTestRenderer(&buf)

			post := &model.PostRecord{
				Post:      model.PostContent{ViewType: tt.viewType},
				ImageList: imagesOf(1),
				Video:     tt.video,
			}

			root := parseDocument(t, r.Render(post, canonical))
			if got, _ := metaContent(root, "og:image"); got != tt.want {
				t.Errorf("og:image = %q, want %q", got, tt.want)
			}
			if got, _ := metaContent(root, "twitter:image"); got != tt.want {
				t.Errorf("twitter:image = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_VideoCoverWithoutImages(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{
		Post:  model.PostContent{ViewType: model.ViewTypeVideo},
		Video: &model.PostVideo{Cover: "https://img.example/video.png"},
	}

	root := parseDocument(t, r.Render(post, canonical))
	if got, _ := metaContent(root, "og:image"); got != "https://img.example/video.png" {
		t.Errorf("og:image = %q", got)
	}
	if len(findAll(root, byClass("image-gallery"))) != 0 {
		t.Error("画像が無いのにギャラリーが出力された")
	}
}

func TestRender_MissingOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	tests := []struct {
		name string
		post *model.PostRecord
	}{
		{"空の投稿", &model.PostRecord{}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := r.Render(tt.post, canonical)
			if !strings.HasPrefix(doc, "<!DOCTYPE html>") {
				t.Errorf("HTML文書として出力されていない: %.40s", doc)
			}

			root := parseDocument(t, doc)
			if _, ok := metaContent(root, "og:image"); ok {
				t.Error("画像が無いのに og:image が出力された")
			}
			if _, ok := metaContent(root, "twitter:image"); ok {
				t.Error("画像が無いのに twitter:image が出力された")
			}
			if got, _ := metaContent(root, "theme-color"); got != DefaultColor {
				t.Errorf("theme-color = %q, want %q", got, DefaultColor)
			}
			if len(findAll(root, byClass("image-gallery"))) != 0 {
				t.Error("画像が無いのにギャラリーが出力された")
			}
			styles := findAll(root, byTag("style"))
			if len(styles) != 1 || !strings.Contains(textOf(styles[0]), "background: "+DefaultColor) {
				t.Error("ボタンの背景色にデフォルト色が使われていない")
			}
		})
	}

	if buf.Len() != 0 {
		t.Errorf("エラーログが出力された: %s", buf.String())
	}
}

func TestRender_GalleryIsCapped(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{ImageList: imagesOf(10)}

	root := parseDocument(t, r.Render(post, canonical))
	gallery := findAll(root, byClass("image-gallery"))
	if len(gallery) != 1 {
		t.Fatalf("image-gallery = %d 件, want 1", len(gallery))
	}

	imgs := findAll(gallery[0], byTag("img"))
	if len(imgs) != MaxGalleryImages {
		t.Fatalf("ギャラリーの画像 = %d 件, want %d", len(imgs), MaxGalleryImages)
	}
	for i, img := range imgs {
		want := fmt.Sprintf("https://img.example/%d.png", i)
		if src, _ := attr(img, "src"); src != want {
			t.Errorf("img[%d] src = %q, want %q", i, src, want)
		}
	}
}

func TestRender_EscapesHostileDescription(t *testing.T) {
	tests := []struct {
		name     string
		desc     string
		wantText string
	}{
		{"scriptタグ", "<script>alert(1)</script>", "alert(1)"},
		{"styleタグ", "<style>body{display:none}</style>visible", "body{display:none}visible"},
		{"エンティティで書かれたscriptタグ", "&lt;script&gt;alert(1)&lt;/script&gt;", "<script>alert(1)</script>"},
		{"属性からの脱出", `"><img src=x onerror=alert(1)>`, `">`},
		{"イベントハンドラ付きタグ", `<img src=x onerror="alert(1)">caption`, "caption"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := newTestRenderer(&buf)

			doc := r.Render(&model.PostRecord{Post: model.PostContent{Desc: tt.desc}}, canonical)
			root := parseDocument(t, doc)

			if scripts := findAll(root, byTag("script")); len(scripts) != 1 {
				t.Errorf("script = %d 件, want 1（遷移スクリプトのみ）", len(scripts))
			}
			if strings.Contains(doc, "onerror") && len(findAll(root, func(n *html.Node) bool {
				_, ok := attr(n, "onerror")
				return ok
			})) != 0 {
				t.Error("onerror 属性を持つ要素が出力された")
			}

			desc := findAll(root, byClass("description"))
			if len(desc) != 1 {
				t.Fatalf("description = %d 件, want 1", len(desc))
			}
			if got := textOf(desc[0]); got != tt.wantText {
				t.Errorf("本文 = %q, want %q", got, tt.wantText)
			}
			if len(findAll(desc[0], func(*html.Node) bool { return true })) != 1 {
				t.Error("本文に要素が出力された")
			}
			if got, _ := metaContent(root, "og:description"); got != tt.wantText {
				t.Errorf("og:description = %q, want %q", got, tt.wantText)
			}
		})
	}
}

func TestRender_KeepsScriptTextAsLiteral(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	doc := r.Render(&model.PostRecord{Post: model.PostContent{Desc: "<script>alert(1)</script>"}}, canonical)

	if !strings.Contains(doc, `<div class="description">alert(1)</div>`) {
		t.Errorf("本文に script の中身がテキストとして出力されていない:\n%s", doc)
	}
	if !strings.Contains(doc, `<meta property="og:description" content="alert(1)">`) {
		t.Errorf("og:description に script の中身が出力されていない:\n%s", doc)
	}
	if got := strings.Count(strings.ToLower(doc), "<script"); got != 1 {
		t.Errorf("<script 出現数 = %d, want 1", got)
	}
}

func TestRender_StripsTagsBeforeEscaping(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	doc := r.Render(&model.PostRecord{Post: model.PostContent{Desc: "a <b>bold</b>&c"}}, canonical)

	if !strings.Contains(doc, `<div class="description">a bold&amp;c</div>`) {
		t.Errorf("タグが除去され & がエスケープされていない: %s", doc)
	}
	if strings.Contains(doc, "<b>") {
		t.Error("<b> タグが残っている")
	}
}

func TestRender_PreservesLiteralAngleBrackets(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	doc := r.Render(&model.PostRecord{Post: model.PostContent{Desc: "1 < 2 > 0"}}, canonical)

	if !strings.Contains(doc, "1 &lt; 2 &gt; 0") {
		t.Errorf("本文中の < > がエスケープされて残っていない: %s", doc)
	}
}

func TestRender_EscapesSubjectAndNickname(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{
		Post: model.PostContent{Subject: `</title><script>alert("t")</script>`},
		User: model.PostAuthor{Nickname: `<b onmouseover="x">Nick</b>`},
	}

	doc := r.Render(post, canonical)
	root := parseDocument(t, doc)

	if scripts := findAll(root, byTag("script")); len(scripts) != 1 {
		t.Errorf("script = %d 件, want 1", len(scripts))
	}
	if got, _ := metaContent(root, "og:title"); got != post.Post.Subject {
		t.Errorf("og:title = %q", got)
	}
	if got, _ := metaContent(root, "author"); got != post.User.Nickname {
		t.Errorf("author = %q", got)
	}
	h1 := findAll(root, byTag("h1"))
	if len(h1) != 1 || textOf(h1[0]) != post.Post.Subject {
		t.Error("見出しがテキストとして出力されていない")
	}
	if len(findAll(root, byTag("b"))) != 0 {
		t.Error("ニックネームのタグが要素として出力された")
	}
}

func TestRender_HostileURLsAndColor(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{
		User:      model.PostAuthor{AvatarURL: "javascript:alert(1)"},
		ImageList: []model.PostImage{{URL: `x" onerror="alert(1)`}, {URL: "javascript:alert(2)"}},
		Game:      &model.PostGame{Color: "red;}</style><script>alert(3)</script>"},
	}

	doc := r.Render(post, canonical)
	root := parseDocument(t, doc)

	if scripts := findAll(root, byTag("script")); len(scripts) != 1 {
		t.Errorf("script = %d 件, want 1", len(scripts))
	}
	if n := len(findAll(root, func(n *html.Node) bool { _, ok := attr(n, "onerror"); return ok })); n != 0 {
		t.Errorf("onerror 属性を持つ要素 = %d 件", n)
	}
	for _, img := range findAll(root, byTag("img")) {
		src, _ := attr(img, "src")
		if strings.HasPrefix(strings.ToLower(src), "javascript:") {
			t.Errorf("javascript: URL が src に出力された: %q", src)
		}
	}
	styles := findAll(root, byTag("style"))
	if len(styles) != 1 {
		t.Fatalf("style = %d 件, want 1", len(styles))
	}
	if strings.Contains(textOf(styles[0]), "alert") {
		t.Error("色の値からスタイルを脱出できた")
	}
}

func TestRender_IsDeterministic(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRenderer(&buf)

	post := &model.PostRecord{
		Post:      model.PostContent{Subject: "s", Desc: "d"},
		ImageList: imagesOf(5),
	}

	if a, b := r.Render(post, canonical), r.Render(post, canonical); a != b {
		t.Error("同じ入力で異なるHTMLが生成された")
	}
}

func TestFallbackDocument_EscapesValues(t *testing.T) {
	doc := fallbackDocument(document{Subject: `<script>x</script>`, CanonicalURL: canonical})

	if strings.Contains(doc, "<script>") {
		t.Errorf("フォールバック文書に script タグが出力された: %s", doc)
	}
	if !strings.Contains(doc, canonical) {
		t.Error("フォールバック文書に正規URLが含まれていない")
	}
}
