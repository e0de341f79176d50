package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/topnews/internal/middleware"
	"github.com/hitoshi/topnews/internal/render"
	"github.com/hitoshi/topnews/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Registry *view.Registry
	Renderer *render.Renderer

	// ミドルウェア依存
	RateLimiter    *middleware.RateLimiter
	MountLimiter   *middleware.RateLimiter   // nilの場合はマウントを制限しない
	StatusRecorder middleware.StatusRecorder // nilの場合はステータスを記録しない
	CookieSecure   bool

	// MetricsHandler はGET /metricsのハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CSRF → ViewSession(マウント制限)/ViewLookup → RateLimit(/refreshのみ)
//
// /health, /metrics, /static/* はビューとCSRFのチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	viewHandler := NewViewHandler(deps.Renderer, logger)

	// --- ビューに依存しないルート ---
	r.Get("/health", NewHealthHandler(deps.Registry))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(render.Static()))))

	// --- ビューのルート ---
	// ミドルウェアスタック: CSRF → ViewSession/ViewLookup
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{CookieSecure: deps.CookieSecure}))

		// GET / は初回アクセスでビューをマウントする
		r.With(middleware.NewViewSessionMiddleware(deps.Registry, middleware.ViewSessionConfig{
			CookieSecure: deps.CookieSecure,
			MountLimiter: deps.MountLimiter,
		})).Get("/", viewHandler.Page)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewViewLookupMiddleware(deps.Registry))

			r.With(deps.RateLimiter.Middleware()).Post("/refresh", viewHandler.Refresh)
			r.Post("/cards/{index}/image-error", viewHandler.ImageError)
			r.Get("/api/view", viewHandler.ViewJSON)
		})
	})

	return r
}
