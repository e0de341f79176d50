package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/topnews/internal/config"
	"github.com/hitoshi/topnews/internal/handler"
	"github.com/hitoshi/topnews/internal/logger"
	"github.com/hitoshi/topnews/internal/metrics"
	"github.com/hitoshi/topnews/internal/middleware"
	"github.com/hitoshi/topnews/internal/newsapi"
	"github.com/hitoshi/topnews/internal/render"
	"github.com/hitoshi/topnews/internal/security"
	"github.com/hitoshi/topnews/internal/thumbnail"
	"github.com/hitoshi/topnews/internal/upstream"
	"github.com/hitoshi/topnews/internal/view"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("news_api_url", cfg.NewsAPIURL),
	)

	switch cmd {
	case CommandUpstream:
		return runUpstream(cfg)
	default:
		return runServe(cfg)
	}
}

// server は起動前のWebサーバーと、停止時に解放するリソースをまとめる。
type server struct {
	handler http.Handler
	close   func()
}

// newServer は設定から全依存関係をワイヤリングし、ルーターを構築する。
func newServer(cfg *config.Config, log *slog.Logger) (*server, error) {
	// 1. メトリクス
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(promReg)

	// 2. ニュースAPIクライアント
	newsClient := newsapi.NewClient(
		&http.Client{Timeout: cfg.NewsAPITimeout},
		log,
		cfg.NewsAPIURL,
		cfg.NewsAPIMaxSize,
	)

	// 3. サムネイル検査（無効化されている場合はブラウザからの通知のみで代替画像に切り替える）
	var checker view.ThumbnailChecker
	if cfg.ThumbnailCheck {
		guard := security.NewOutboundGuard()
		checker = thumbnail.NewChecker(thumbnail.Config{
			Client:         guard.Client(cfg.ThumbnailTimeout),
			Validator:      guard,
			Recorder:       collector,
			Logger:         log,
			MaxConcurrency: cfg.ThumbnailMaxConcurrent,
			SkipURL:        view.DefaultFallbackImageURL,
		})
	}

	// 4. ビューレジストリ
	registry := view.NewRegistry(view.RegistryConfig{
		Fetcher:  newsClient,
		Checker:  checker,
		Recorder: collector,
		Logger:   log,
		IdleTTL:  cfg.ViewIdleTTL,
		MaxViews: cfg.MaxViews,
	})

	// 5. レンダラー
	renderer, err := render.NewRenderer(render.Options{
		DefaultLocale:   cfg.DisplayLocale,
		Location:        cfg.Location(),
		ShowFetchErrors: cfg.ShowFetchErrors,
	})
	if err != nil {
		registry.Stop()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RefreshRateLimiterConfig(cfg.RefreshRatePerMin))
	mountLimiter := middleware.NewRateLimiter(middleware.MountRateLimiterConfig(cfg.MountRatePerMin))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		Registry:       registry,
		Renderer:       renderer,
		RateLimiter:    rateLimiter,
		MountLimiter:   mountLimiter,
		StatusRecorder: collector,
		CookieSecure:   cfg.CookieSecure,
		MetricsHandler: metrics.Handler(promReg),
	})

	return &server{
		handler: router,
		close: func() {
			rateLimiter.Stop()
			mountLimiter.Stop()
			registry.Stop()
		},
	}, nil
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行い、
// すべてのビューをアンマウントする。
func runServe(cfg *config.Config) error {
	srv, err := newServer(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer srv.close()

	return listenAndServe(&http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, "web server")
}

// runUpstream は開発用のニュース集約サーバーとして起動する。
func runUpstream(cfg *config.Config) error {
	feeds, err := upstream.LoadFeeds(cfg.UpstreamFeedsFile)
	if err != nil {
		return fmt.Errorf("failed to load feeds: %w", err)
	}

	aggregator := upstream.NewAggregator(upstream.Config{
		Client:    security.NewOutboundGuard().Client(cfg.NewsAPITimeout),
		Feeds:     feeds,
		Sanitizer: security.NewTextSanitizer(),
		Logger:    slog.Default(),
		MaxItems:  cfg.UpstreamMaxItems,
	})

	slog.Info("upstream feeds loaded", slog.Int("feeds_count", len(feeds)))

	return listenAndServe(&http.Server{
		Addr:         ":" + cfg.UpstreamPort,
		Handler:      upstream.NewRouter(aggregator, slog.Default()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 全フィードの取得を待つ
		IdleTimeout:  60 * time.Second,
	}, "upstream server")
}

// listenAndServe はサーバーを起動し、SIGINTまたはSIGTERMを受信するまでブロックする。
func listenAndServe(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
