package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/topnews/internal/middleware"
	"github.com/hitoshi/topnews/internal/model"
	"github.com/hitoshi/topnews/internal/render"
	"github.com/hitoshi/topnews/internal/view"
)

// ViewHandler はニュースグリッドの表示と操作のHTTPハンドラー。
type ViewHandler struct {
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewViewHandler はViewHandlerを生成する。
func NewViewHandler(renderer *render.Renderer, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{
		renderer: renderer,
		logger:   logger,
	}
}

// refreshResponse はJSONクライアント向けの更新操作のレスポンス。
type refreshResponse struct {
	Started bool       `json:"started"`
	Phase   view.Phase `json:"phase"`
}

// Page はGET /のハンドラー。
// セッションのビューを描画する。取得中はページ自身が再読み込みを促す。
func (h *ViewHandler) Page(w http.ResponseWriter, r *http.Request) {
	v, ok := middleware.ViewFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	frame := v.Frame()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := h.renderer.Render(w, frame, render.Request{
		AcceptLanguage: r.Header.Get("Accept-Language"),
		CSRFToken:      middleware.CSRFTokenFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("ページの描画に失敗しました",
			slog.String("view_id", v.ID()),
			slog.String("phase", frame.Phase.String()),
			slog.String("error", err.Error()),
		)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Refresh はPOST /refreshのハンドラー。
// 更新中は何もしない。フォーム送信には303で/に戻し、JSONクライアントには結果を返す。
func (h *ViewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	v, ok := middleware.ViewFromContext(r.Context())
	if !ok {
		// アンマウント済みのセッションは/で新しいビューをマウントし直す
		if wantsJSON(r) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewViewNotFoundError())
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	_, started := v.Refresh()

	if wantsJSON(r) {
		if !started {
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewRefreshIgnoredError())
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, refreshResponse{
			Started: true,
			Phase:   v.State().Phase,
		})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ImageError はPOST /cards/{index}/image-errorのハンドラー。
// ブラウザで読み込めなかった画像のカードだけを代替画像に切り替える。
// 既に更新で置き換わった世代の通知は無視する。
func (h *ViewHandler) ImageError(w http.ResponseWriter, r *http.Request) {
	v, ok := middleware.ViewFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewViewNotFoundError())
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("index"))
		return
	}

	generation, err := strconv.ParseUint(r.URL.Query().Get("generation"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("generation"))
		return
	}

	frame := v.Frame()
	if generation == frame.Generation && index >= len(frame.Cards) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewCardNotFoundError(index))
		return
	}

	v.MarkImageBroken(generation, index)
	w.WriteHeader(http.StatusNoContent)
}

// ViewJSON はGET /api/viewのハンドラー。現在のフレームをJSONで返す。
func (h *ViewHandler) ViewJSON(w http.ResponseWriter, r *http.Request) {
	v, ok := middleware.ViewFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewViewNotFoundError())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v.Frame())
}

// wantsJSON はクライアントがJSONレスポンスを求めているかを判定する。
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
