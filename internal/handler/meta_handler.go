package handler

import (
	"encoding/json"
	"net/http"
)

// serviceName はルートエンドポイントで返すサービス名。
const serviceName = "HoYoLAB Embed Fixer"

// rootResponse はサービス情報のAPIレスポンス。
type rootResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// healthResponse はヘルスチェックのAPIレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// Root は利用可能なエンドポイントの一覧を返す。
// GET /
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message: serviceName,
		Endpoints: map[string]string{
			"short_query":    "/q?q={query_id}&lang={lang}",
			"short_redirect": "/sh?redirect={short_link_id}&lang={lang}",
			"long_link":      "/post?post_id={post_id}&lang={lang}",
		},
	})
}

// Health はプロセスの稼働状態を返す。上流APIの状態は確認しない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// writeJSON はJSONレスポンスを書き込む。
// エンドポイントの例に含まれる & をそのまま出力するため、HTMLエスケープは行わない。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
