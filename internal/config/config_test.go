package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("NEWS_API_URL", "http://localhost:8000")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.NewsAPIURL != "http://localhost:8000" {
		t.Errorf("NewsAPIURL = %q, want %q", cfg.NewsAPIURL, "http://localhost:8000")
	}
}

func TestLoad_TrimsTrailingSlash(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("NEWS_API_URL", "http://localhost:8000/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.NewsAPIURL != "http://localhost:8000" {
		t.Errorf("NewsAPIURL = %q, want %q", cfg.NewsAPIURL, "http://localhost:8000")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// News API defaults
	if cfg.NewsAPITimeout != 15*time.Second {
		t.Errorf("NewsAPITimeout = %v, want %v", cfg.NewsAPITimeout, 15*time.Second)
	}
	if cfg.NewsAPIMaxSize != 2097152 {
		t.Errorf("NewsAPIMaxSize = %d, want %d", cfg.NewsAPIMaxSize, 2097152)
	}

	// Display defaults
	if cfg.DisplayLocale != "ja-JP" {
		t.Errorf("DisplayLocale = %q, want %q", cfg.DisplayLocale, "ja-JP")
	}
	if cfg.DisplayTimezone != "Asia/Tokyo" {
		t.Errorf("DisplayTimezone = %q, want %q", cfg.DisplayTimezone, "Asia/Tokyo")
	}
	if cfg.ShowFetchErrors {
		t.Error("ShowFetchErrors = true, want false")
	}

	// View defaults
	if cfg.ViewIdleTTL != 30*time.Minute {
		t.Errorf("ViewIdleTTL = %v, want %v", cfg.ViewIdleTTL, 30*time.Minute)
	}
	if cfg.RefreshRatePerMin != 30 {
		t.Errorf("RefreshRatePerMin = %d, want %d", cfg.RefreshRatePerMin, 30)
	}
	if cfg.MaxViews != 1000 {
		t.Errorf("MaxViews = %d, want %d", cfg.MaxViews, 1000)
	}
	if cfg.MountRatePerMin != 10 {
		t.Errorf("MountRatePerMin = %d, want %d", cfg.MountRatePerMin, 10)
	}

	// Thumbnail defaults
	if !cfg.ThumbnailCheck {
		t.Error("ThumbnailCheck = false, want true")
	}
	if cfg.ThumbnailTimeout != 5*time.Second {
		t.Errorf("ThumbnailTimeout = %v, want %v", cfg.ThumbnailTimeout, 5*time.Second)
	}
	if cfg.ThumbnailMaxConcurrent != 4 {
		t.Errorf("ThumbnailMaxConcurrent = %d, want %d", cfg.ThumbnailMaxConcurrent, 4)
	}

	// Server defaults
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure = true, want false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	// Upstream defaults
	if cfg.UpstreamPort != "8000" {
		t.Errorf("UpstreamPort = %q, want %q", cfg.UpstreamPort, "8000")
	}
	if cfg.UpstreamMaxItems != 6 {
		t.Errorf("UpstreamMaxItems = %d, want %d", cfg.UpstreamMaxItems, 6)
	}
}

func TestLoad_MissingRequiredVar_ReturnsError(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("NEWS_API_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("NEWS_API_URL未設定時にエラーが返されるべき")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("NEWS_API_TIMEOUT", "3s")
	t.Setenv("SHOW_FETCH_ERRORS", "true")
	t.Setenv("THUMBNAIL_CHECK", "false")
	t.Setenv("DISPLAY_LOCALE", "en-US")
	t.Setenv("REFRESH_RATE_PER_MIN", "5")
	t.Setenv("MOUNT_RATE_PER_MIN", "3")
	t.Setenv("MAX_VIEWS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.NewsAPITimeout != 3*time.Second {
		t.Errorf("NewsAPITimeout = %v, want 3s", cfg.NewsAPITimeout)
	}
	if !cfg.ShowFetchErrors {
		t.Error("ShowFetchErrors = false, want true")
	}
	if cfg.ThumbnailCheck {
		t.Error("ThumbnailCheck = true, want false")
	}
	if cfg.DisplayLocale != "en-US" {
		t.Errorf("DisplayLocale = %q, want en-US", cfg.DisplayLocale)
	}
	if cfg.RefreshRatePerMin != 5 {
		t.Errorf("RefreshRatePerMin = %d, want 5", cfg.RefreshRatePerMin)
	}
	if cfg.MountRatePerMin != 3 {
		t.Errorf("MountRatePerMin = %d, want 3", cfg.MountRatePerMin)
	}
	if cfg.MaxViews != 50 {
		t.Errorf("MaxViews = %d, want 50", cfg.MaxViews)
	}
}

func TestLoad_InvalidValues_FallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("NEWS_API_TIMEOUT", "not-a-duration")
	t.Setenv("SHOW_FETCH_ERRORS", "maybe")
	t.Setenv("UPSTREAM_MAX_ITEMS", "six")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.NewsAPITimeout != 15*time.Second {
		t.Errorf("NewsAPITimeout = %v, want default 15s", cfg.NewsAPITimeout)
	}
	if cfg.ShowFetchErrors {
		t.Error("ShowFetchErrors should fall back to false")
	}
	if cfg.UpstreamMaxItems != 6 {
		t.Errorf("UpstreamMaxItems = %d, want default 6", cfg.UpstreamMaxItems)
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("NEWS_API_URL=http://from-env-file:8000\nSERVER_PORT=9090\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	// godotenvは既存の環境変数を上書きしないため、空にした上で後始末をt.Setenvに任せる
	t.Setenv("NEWS_API_URL", "")
	os.Unsetenv("NEWS_API_URL")
	t.Setenv("SERVER_PORT", "")
	os.Unsetenv("SERVER_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.NewsAPIURL != "http://from-env-file:8000" {
		t.Errorf("NewsAPIURL = %q, want value from env file", cfg.NewsAPIURL)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
}

func TestConfig_Location_InvalidFallsBackToLocal(t *testing.T) {
	cfg := &Config{DisplayTimezone: "Nowhere/Invalid"}
	if cfg.Location() != time.Local {
		t.Error("無効なタイムゾーンではtime.Localを返すべき")
	}
}
