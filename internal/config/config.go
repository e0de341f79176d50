// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// News API
	NewsAPIURL     string
	NewsAPITimeout time.Duration
	NewsAPIMaxSize int64

	// Display
	DisplayLocale   string
	DisplayTimezone string
	ShowFetchErrors bool

	// View
	ViewIdleTTL       time.Duration
	MaxViews          int
	RefreshRatePerMin int
	MountRatePerMin   int

	// Thumbnail
	ThumbnailCheck         bool
	ThumbnailTimeout       time.Duration
	ThumbnailMaxConcurrent int

	// Logging
	LogLevel string

	// Server
	ServerPort   string
	CookieSecure bool

	// Upstream (開発用集約サーバー)
	UpstreamPort      string
	UpstreamFeedsFile string
	UpstreamMaxItems  int
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（デフォルト .env）が存在する場合は先に読み込む。既存の環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.NewsAPIURL = strings.TrimRight(os.Getenv("NEWS_API_URL"), "/")
	if cfg.NewsAPIURL == "" {
		missing = append(missing, "NEWS_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NewsAPITimeout = getEnvDuration("NEWS_API_TIMEOUT", 15*time.Second)
	cfg.NewsAPIMaxSize = getEnvInt64("NEWS_API_MAX_SIZE", 2097152)
	cfg.DisplayLocale = getEnvString("DISPLAY_LOCALE", "ja-JP")
	cfg.DisplayTimezone = getEnvString("DISPLAY_TIMEZONE", "Asia/Tokyo")
	cfg.ShowFetchErrors = getEnvBool("SHOW_FETCH_ERRORS", false)
	cfg.ViewIdleTTL = getEnvDuration("VIEW_IDLE_TTL", 30*time.Minute)
	cfg.MaxViews = getEnvInt("MAX_VIEWS", 1000)
	cfg.RefreshRatePerMin = getEnvInt("REFRESH_RATE_PER_MIN", 30)
	cfg.MountRatePerMin = getEnvInt("MOUNT_RATE_PER_MIN", 10)
	cfg.ThumbnailCheck = getEnvBool("THUMBNAIL_CHECK", true)
	cfg.ThumbnailTimeout = getEnvDuration("THUMBNAIL_TIMEOUT", 5*time.Second)
	cfg.ThumbnailMaxConcurrent = getEnvInt("THUMBNAIL_MAX_CONCURRENT", 4)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.UpstreamPort = getEnvString("UPSTREAM_PORT", "8000")
	cfg.UpstreamFeedsFile = getEnvString("UPSTREAM_FEEDS_FILE", "")
	cfg.UpstreamMaxItems = getEnvInt("UPSTREAM_MAX_ITEMS", 6)

	return cfg, nil
}

// Location はDisplayTimezoneを解決する。解決できない場合はtime.Localを返す。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// loadEnvFile は.envファイルを読み込む。ファイルが存在しない場合はエラーにしない。
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
