package middleware

import "net/http"

// embedContentSecurityPolicy は埋め込みHTMLに適用するCSP。
// 遷移用のインラインスクリプトとインラインスタイルのみを許可し、外部からは画像の読み込みだけを許可する。
const embedContentSecurityPolicy = "default-src 'none'; img-src https: http: data:; " +
	"style-src 'unsafe-inline'; script-src 'unsafe-inline'; base-uri 'none'; form-action 'none'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", embedContentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}
