package model

// ViewTypeVideo は動画投稿を表す view_type の値。
const ViewTypeVideo = 5

// PostReference はURLから抽出した投稿IDを表す。
// IsPrePost が true の場合、ID はプレポストIDであり、
// 投稿詳細の取得前に getPostID による変換が必要になる。
type PostReference struct {
	ID        string
	IsPrePost bool
}

// TargetKind は解決結果の種別を表す。
type TargetKind int

const (
	// TargetPost はHoYoLABの投稿を指す解決結果。
	TargetPost TargetKind = iota
	// TargetExternal はHoYoLAB以外の外部URLを指す解決結果。
	TargetExternal
)

// CanonicalTarget は受け付けたリンクの解決結果。
// 投稿ID か 外部URL のどちらか一方のみを保持する。
type CanonicalTarget struct {
	kind  TargetKind
	value string
}

// NewPostTarget は投稿IDを指す解決結果を生成する。
func NewPostTarget(postID string) CanonicalTarget {
	return CanonicalTarget{kind: TargetPost, value: postID}
}

// NewExternalTarget は外部URLを指す解決結果を生成する。
func NewExternalTarget(rawURL string) CanonicalTarget {
	return CanonicalTarget{kind: TargetExternal, value: rawURL}
}

// Kind は解決結果の種別を返す。
func (t CanonicalTarget) Kind() TargetKind {
	return t.kind
}

// IsExternal は外部URLへの解決結果かを返す。
func (t CanonicalTarget) IsExternal() bool {
	return t.kind == TargetExternal
}

// PostID は投稿IDを返す。外部URLの場合は空文字列。
func (t CanonicalTarget) PostID() string {
	if t.kind != TargetPost {
		return ""
	}
	return t.value
}

// ExternalURL は外部URLを返す。投稿の場合は空文字列。
func (t CanonicalTarget) ExternalURL() string {
	if t.kind != TargetExternal {
		return ""
	}
	return t.value
}

// PostRecord は getPostFull API の data.post に相当する投稿データ。
// 欠損しているフィールドはゼロ値またはnilになる。
type PostRecord struct {
	Post      PostContent `json:"post"`
	User      PostAuthor  `json:"user"`
	CoverList []PostImage `json:"cover_list"`
	ImageList []PostImage `json:"image_list"`
	Video     *PostVideo  `json:"video"`
	Game      *PostGame   `json:"game"`
}

// PostContent は投稿本文のメタデータ。
type PostContent struct {
	Subject  string `json:"subject"`
	Desc     string `json:"desc"`
	HasCover bool   `json:"has_cover"`
	ViewType int    `json:"view_type"`
}

// PostAuthor は投稿者の情報。
type PostAuthor struct {
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
}

// PostImage は投稿に添付された画像。
type PostImage struct {
	URL string `json:"url"`
}

// PostVideo は動画投稿の動画情報。
type PostVideo struct {
	Cover string `json:"cover"`
}

// PostGame は投稿が属するゲームの情報。
type PostGame struct {
	Color string `json:"color"`
}

// Resolution は解決パイプラインの最終結果。
// Target が外部URLの場合、Post と CanonicalURL は空になる。
type Resolution struct {
	Target       CanonicalTarget
	CanonicalURL string
	Post         *PostRecord
}
