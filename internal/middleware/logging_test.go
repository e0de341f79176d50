package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeStatusRecorder struct {
	codes []int
}

func (r *fakeStatusRecorder) RecordHTTPStatus(code int) {
	r.codes = append(r.codes, code)
}

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newJSONLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/view", nil))

	entry := decodeLog(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" || entry["path"] != "/api/view" {
		t.Errorf("method/path = %v %v", entry["method"], entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms should be present")
	}
	if _, ok := entry["view_id"]; ok {
		t.Error("ビューがない場合はview_idを出力しない")
	}
}

func TestLoggingMiddleware_IncludesViewIDFromInnerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	reg := newFakeRegistry("view-42")

	inner := NewViewLookupMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	handler := NewLoggingMiddleware(newJSONLogger(&buf), nil)(inner)

	req := httptest.NewRequest(http.MethodPost, "/cards/0/image-error", nil)
	req.AddCookie(&http.Cookie{Name: viewCookieName, Value: "view-42"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLog(t, &buf)
	if entry["view_id"] != "view-42" {
		t.Errorf("view_id = %v, want view-42", entry["view_id"])
	}
}

func TestLoggingMiddleware_LevelAndMetricsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"2xxはINFO", http.StatusOK, "INFO"},
		{"3xxはINFO", http.StatusSeeOther, "INFO"},
		{"4xxはWARN", http.StatusTooManyRequests, "WARN"},
		{"5xxはERROR", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rec := &fakeStatusRecorder{}
			handler := NewLoggingMiddleware(newJSONLogger(&buf), rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			entry := decodeLog(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if len(rec.codes) != 1 || rec.codes[0] != tt.status {
				t.Errorf("recorded = %v, want [%d]", rec.codes, tt.status)
			}
		})
	}
}

func TestLoggingMiddleware_BodyWriteCapture(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newJSONLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
	if entry := decodeLog(t, &buf); entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}
