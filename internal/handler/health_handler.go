package handler

import (
	"net/http"

	"github.com/hitoshi/topnews/internal/middleware"
)

// ViewCounter はマウント中のビュー数を返す。view.Registryが実装する。
type ViewCounter interface {
	Count() int
}

// healthResponse はGET /healthのレスポンス。
type healthResponse struct {
	Status      string `json:"status"`
	ActiveViews int    `json:"active_views"`
}

// NewHealthHandler はGET /healthのハンドラーを返す。
// プロセスが応答できることだけを示し、ニュース集約サービスの状態は含めない。
func NewHealthHandler(counter ViewCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if counter != nil {
			resp.ActiveViews = counter.Count()
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
