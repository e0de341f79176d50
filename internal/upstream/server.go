package upstream

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/topnews/internal/middleware"
	"github.com/hitoshi/topnews/internal/model"
)

// EnvelopeSource はGET /api/newsで返すエンベロープを組み立てる。
// Aggregatorが実装する。
type EnvelopeSource interface {
	Envelope(ctx context.Context) model.Envelope
}

// NewRouter は開発用集約サーバーのルーティングを構成したハンドラーを返す。
//
//	GET /api/news  ニュースAPIと同じ形式のエンベロープ
//	GET /healthz   {"status":"ok"}
func NewRouter(source EnvelopeSource, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger, nil))
	r.Use(middleware.NewRecoveryMiddleware(logger))

	r.Get("/api/news", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, source.Envelope(r.Context()))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
