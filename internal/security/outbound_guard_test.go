package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestOutboundGuard_ClientTimeout はタイムアウト設定が反映されることをテストする。
func TestOutboundGuard_ClientTimeout(t *testing.T) {
	guard := NewOutboundGuard()
	client := guard.Client(3 * time.Second)
	if client.Timeout != 3*time.Second {
		t.Errorf("expected timeout %v, got %v", 3*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestOutboundGuard_ClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestOutboundGuard_ClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundGuard().Client(5 * time.Second)

	resp, err := client.Get(ts.URL + "/photo.jpg")
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestOutboundGuard_Validate は画像URLの静的検証をテストする。
func TestOutboundGuard_Validate(t *testing.T) {
	guard := NewOutboundGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"公開HTTPS画像", "https://images.unsplash.com/photo-1?w=400", false},
		{"公開HTTP画像", "http://cdn.example.org/a.png", false},
		{"空文字列", "", true},
		{"dataスキーム", "data:image/png;base64,AAAA", true},
		{"javascriptスキーム", "javascript:alert(1)", true},
		{"ftpスキーム", "ftp://example.com/a.png", true},
		{"ホストなし", "https:///a.png", true},
		{"プライベートIP 10.x", "http://10.0.0.1/a.png", true},
		{"プライベートIP 192.168.x", "http://192.168.1.10/a.png", true},
		{"ループバック", "http://127.0.0.1:8080/a.png", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data", true},
		{"IPv6ループバック", "http://[::1]/a.png", true},
		{"localhost", "http://LOCALHOST/a.png", true},
		{"ゼロアドレス", "http://0.0.0.0/a.png", true},
		{"明示的な443", "https://images.example.com:443/a.jpg", false},
		{"明示的な80", "http://images.example.com:80/a.jpg", false},
		{"許可外のポート", "https://images.example.com:8443/a.jpg", true},
		{"許可外のポートのHTTP", "http://cdn.example.org:8080/a.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Validate(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("Validate(%q) should return error", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate(%q) returned unexpected error: %v", tt.url, err)
			}
		})
	}
}
