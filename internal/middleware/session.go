// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/topnews/internal/view"
)

// viewCookieName はビューインスタンスのIDを保持するCookieの名前。
const viewCookieName = "view_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	viewContextKey        = contextKey("view")
	requestInfoContextKey = contextKey("request_info")
	csrfTokenContextKey   = contextKey("csrf_token")
)

// ViewRegistry はビューインスタンスの検索とマウントに必要なインターフェース。
// view.Registryが実装する。
type ViewRegistry interface {
	Get(id string) (*view.View, bool)
	Mount() *view.View
}

// ViewSessionConfig はビューセッションCookieの設定。
type ViewSessionConfig struct {
	CookieSecure bool
	// MountLimiter はクライアントIPごとのマウント数を制限する。nilの場合は制限しない。
	MountLimiter *RateLimiter
}

// NewViewSessionMiddleware はCookieのビューIDに対応するビューをコンテキストに注入する。
// ビューが存在しない場合（初回アクセスまたはアンマウント後）は新しいビューをマウントし、
// そのIDをCookieに設定する。マウントと同時に初回ロードが開始される。
// マウントはMountLimiterの対象で、制限を超えたクライアントには429を返す。既存ビューへのアクセスは制限しない。
func NewViewSessionMiddleware(registry ViewRegistry, config ViewSessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := lookupView(registry, r)
			if !ok {
				if limiter := config.MountLimiter; limiter != nil {
					key := clientIPKey(r)
					if !limiter.Allow(key) {
						limiter.reject(w, r, key)
						return
					}
				}
				v = registry.Mount()
				http.SetCookie(w, &http.Cookie{
					Name:     viewCookieName,
					Value:    v.ID(),
					Path:     "/",
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
				slog.Debug("ビューをマウントしました", slog.String("view_id", v.ID()))
			}

			next.ServeHTTP(w, r.WithContext(withView(r.Context(), v)))
		})
	}
}

// NewViewLookupMiddleware はCookieのビューIDに対応するビューが存在すればコンテキストに注入する。
// 存在しない場合もマウントはせず、そのまま次のハンドラーに渡す。
func NewViewLookupMiddleware(registry ViewRegistry) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := lookupView(registry, r); ok {
				r = r.WithContext(withView(r.Context(), v))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func lookupView(registry ViewRegistry, r *http.Request) (*view.View, bool) {
	cookie, err := r.Cookie(viewCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return registry.Get(cookie.Value)
}

func withView(ctx context.Context, v *view.View) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.viewID = v.ID()
	}
	return context.WithValue(ctx, viewContextKey, v)
}

// ViewFromContext はリクエストコンテキストからビューを取得する。
func ViewFromContext(ctx context.Context) (*view.View, bool) {
	v, ok := ctx.Value(viewContextKey).(*view.View)
	return v, ok && v != nil
}

// ContextWithView はコンテキストにビューを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithView(ctx context.Context, v *view.View) context.Context {
	return withView(ctx, v)
}
