package thumbnail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/topnews/internal/security"
)

type fakeRecorder struct {
	ok     atomic.Int32
	broken atomic.Int32
}

func (r *fakeRecorder) RecordThumbnailProbe(ok bool) {
	if ok {
		r.ok.Add(1)
	} else {
		r.broken.Add(1)
	}
}

type rejectValidator struct {
	prefix string
}

func (v rejectValidator) Validate(rawURL string) error {
	if strings.HasPrefix(rawURL, v.prefix) {
		return errors.New("rejected")
	}
	return nil
}

// newImageServer は /ok.jpg, /missing.jpg, /gone.jpg, /page.html, /nohead.png, /forbidden.jpg,
// /error.jpg を返すテストサーバーを起動する。
func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/gone.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/forbidden.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/error.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/nohead.png", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func collectBroken(t *testing.T, c *Checker, ctx context.Context, urls []string) []int {
	t.Helper()
	var mu sync.Mutex
	var got []int
	c.CheckThumbnails(ctx, urls, func(index int) {
		mu.Lock()
		got = append(got, index)
		mu.Unlock()
	})
	sort.Ints(got)
	return got
}

func TestProbe(t *testing.T) {
	ts := newImageServer(t)
	c := NewChecker(Config{Client: ts.Client()})

	tests := []struct {
		name       string
		path       string
		wantErr    bool
		wantBroken bool
	}{
		{"画像は成功", "/ok.jpg", false, false},
		{"404は確定的な失敗", "/missing.jpg", true, true},
		{"410は確定的な失敗", "/gone.jpg", true, true},
		{"HTMLは確定的な失敗", "/page.html", true, true},
		{"HEAD非対応はGETで再試行", "/nohead.png", false, false},
		{"403は判定不能", "/forbidden.jpg", true, false},
		{"500は判定不能", "/error.jpg", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Probe(context.Background(), ts.URL+tt.path)
			if tt.wantErr && err == nil {
				t.Errorf("Probe(%s) should return error", tt.path)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Probe(%s) returned unexpected error: %v", tt.path, err)
			}
			if got := IsBroken(err); got != tt.wantBroken {
				t.Errorf("IsBroken(%v) = %v, want %v", err, got, tt.wantBroken)
			}
		})
	}
}

func TestProbe_NotImageError(t *testing.T) {
	ts := newImageServer(t)
	c := NewChecker(Config{Client: ts.Client()})

	err := c.Probe(context.Background(), ts.URL+"/page.html")
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
}

func TestCheckThumbnails_ReportsOnlyBrokenIndexes(t *testing.T) {
	ts := newImageServer(t)
	rec := &fakeRecorder{}
	c := NewChecker(Config{Client: ts.Client(), Recorder: rec, MaxConcurrency: 2})

	urls := []string{
		ts.URL + "/ok.jpg",
		ts.URL + "/missing.jpg",
		ts.URL + "/ok.jpg",
		ts.URL + "/page.html",
		ts.URL + "/nohead.png",
	}

	got := collectBroken(t, c, context.Background(), urls)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("broken = %v, want [1 3]", got)
	}
	if rec.ok.Load() != 3 || rec.broken.Load() != 2 {
		t.Errorf("recorder ok=%d broken=%d, want 3 and 2", rec.ok.Load(), rec.broken.Load())
	}
}

func TestCheckThumbnails_InconclusiveResultsAreNotBroken(t *testing.T) {
	ts := newImageServer(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	unreachable := closed.URL + "/a.jpg"
	closed.Close()

	rec := &fakeRecorder{}
	c := NewChecker(Config{Client: ts.Client(), Recorder: rec})

	urls := []string{
		unreachable,
		ts.URL + "/forbidden.jpg",
		ts.URL + "/error.jpg",
		ts.URL + "/gone.jpg",
	}

	got := collectBroken(t, c, context.Background(), urls)
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("broken = %v, want [3]", got)
	}
	if rec.ok.Load() != 0 || rec.broken.Load() != 1 {
		t.Errorf("recorder ok=%d broken=%d, want 0 and 1", rec.ok.Load(), rec.broken.Load())
	}
}

func TestCheckThumbnails_OutboundGuardFailuresAreNotBroken(t *testing.T) {
	guard := security.NewOutboundGuard()
	c := NewChecker(Config{
		Client:    guard.Client(2 * time.Second),
		Validator: guard,
	})

	urls := []string{
		"https://images.example.com:8443/a.jpg",
		"https://images.topnews.invalid/b.jpg",
	}

	if got := collectBroken(t, c, context.Background(), urls); len(got) != 0 {
		t.Errorf("サーバー側の到達失敗で代替画像に切り替えてはならない: %v", got)
	}
}

func TestCheckThumbnails_SkipsEmptyFallbackAndRejected(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	fallback := ts.URL + "/fallback.jpg"
	c := NewChecker(Config{
		Client:    ts.Client(),
		Validator: rejectValidator{prefix: ts.URL + "/internal"},
		SkipURL:   fallback,
	})

	urls := []string{"", fallback, ts.URL + "/internal/a.jpg"}
	got := collectBroken(t, c, context.Background(), urls)
	if len(got) != 0 {
		t.Errorf("broken = %v, want none", got)
	}
	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0", hits.Load())
	}
}

func TestCheckThumbnails_CanceledContextReportsNothing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	c := NewChecker(Config{Client: ts.Client()})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	got := collectBroken(t, c, ctx, []string{ts.URL + "/slow.jpg", ts.URL + "/slow2.jpg"})
	if len(got) != 0 {
		t.Errorf("キャンセルされた検査は壊れた画像として報告されるべきではない: %v", got)
	}
}

func TestCheckThumbnails_RespectsMaxConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		w.Header().Set("Content-Type", "image/webp")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewChecker(Config{Client: ts.Client(), MaxConcurrency: 2})
	urls := make([]string, 6)
	for i := range urls {
		urls[i] = ts.URL + "/img.webp"
	}

	if got := collectBroken(t, c, context.Background(), urls); len(got) != 0 {
		t.Errorf("broken = %v, want none", got)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestIsImageContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/png; charset=binary", true},
		{"IMAGE/GIF", true},
		{"text/html", false},
		{"", false},
		{";;;", false},
	}
	for _, tt := range tests {
		if got := isImageContentType(tt.contentType); got != tt.want {
			t.Errorf("isImageContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
