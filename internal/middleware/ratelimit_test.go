package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1.0 / 60.0),
		Burst:           burst,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})
}

func TestRateLimitMiddleware_LimitsPerView(t *testing.T) {
	rl := newTestRateLimiter(t, 2)
	reg := newFakeRegistry("view-a", "view-b")
	handler := NewViewLookupMiddleware(reg)(rl.Middleware()(okHandler()))

	send := func(viewID string) int {
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		req.AddCookie(&http.Cookie{Name: viewCookieName, Value: viewID})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("view-a"); code != http.StatusSeeOther {
			t.Fatalf("request %d: status = %d, want 303", i+1, code)
		}
	}
	if code := send("view-a"); code != http.StatusTooManyRequests {
		t.Errorf("3回目はレート制限されるべき: status = %d", code)
	}
	if code := send("view-b"); code != http.StatusSeeOther {
		t.Errorf("別ビューは独立して制限されるべき: status = %d", code)
	}
}

func TestRateLimitMiddleware_FallsBackToClientIP(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	handler := rl.Middleware()(okHandler())

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("192.0.2.1:1234"); code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", code)
	}
	if code := send("192.0.2.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("同一IPの別ポートも同じキーで制限されるべき: status = %d", code)
	}
	if code := send("192.0.2.2:1234"); code != http.StatusSeeOther {
		t.Errorf("別IPは制限されない: status = %d", code)
	}
}

func TestRateLimitMiddleware_429ResponseIsJSONWithRetryAfter(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	handler := rl.Middleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/refresh", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/refresh", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	rl.Allow("view:a")
	rl.Allow("view:b")

	if rl.LimiterCount() != 2 {
		t.Fatalf("LimiterCount = %d, want 2", rl.LimiterCount())
	}

	rl.cleanup(time.Now())
	if rl.LimiterCount() != 2 {
		t.Errorf("期限内のエントリは削除しない: LimiterCount = %d", rl.LimiterCount())
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.LimiterCount() != 0 {
		t.Errorf("期限切れのエントリは削除するべき: LimiterCount = %d", rl.LimiterCount())
	}
}

func TestRefreshRateLimiterConfig(t *testing.T) {
	cfg := RefreshRateLimiterConfig(30)
	if cfg.Burst != 30 || cfg.Rate != rate.Limit(0.5) {
		t.Errorf("config = %+v", cfg)
	}

	def := RefreshRateLimiterConfig(0)
	if def.Burst != 30 {
		t.Errorf("0以下は既定値を使う: Burst = %d", def.Burst)
	}
}

func TestMountRateLimiterConfig(t *testing.T) {
	cfg := MountRateLimiterConfig(12)
	if cfg.Burst != 12 || cfg.Rate != rate.Limit(0.2) {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Message == "" {
		t.Error("マウント用のメッセージが設定されるべき")
	}

	def := MountRateLimiterConfig(-1)
	if def.Burst != 10 {
		t.Errorf("0以下は既定値を使う: Burst = %d", def.Burst)
	}
}

func TestRateLimitMiddleware_429UsesConfiguredMessage(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(1.0 / 60.0), Burst: 1, CleanupInterval: time.Hour, Message: "アクセスが多すぎます。"})
	t.Cleanup(rl.Stop)
	handler := rl.Middleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Message != "アクセスが多すぎます。" {
		t.Errorf("Message = %q", body.Message)
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1})
	rl.Stop()
	rl.Stop()
}
