package view

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	Fetcher          NewsFetcher
	Checker          ThumbnailChecker
	Recorder         Recorder
	Logger           *slog.Logger
	FallbackImageURL string
	IdleTTL          time.Duration // 最終アクセスからアンマウントまでの時間
	CleanupInterval  time.Duration // 期限切れビューのクリーンアップ間隔
	MaxViews         int           // 同時にマウントできるビュー数の上限。0以下は上限なし
}

// ActiveViewsRecorder はマウント中のビュー数を記録する。metrics.Collectorが実装する。
type ActiveViewsRecorder interface {
	SetActiveViews(n int)
}

// Registry はセッションごとのビューインスタンスを管理する。
// 初回アクセスでビューを生成してLoadを1回だけ呼び、一定時間アクセスのないビューをアンマウントする。
// MaxViewsに達している場合は最終アクセスが最も古いビューをアンマウントしてから新しいビューを登録する。
type Registry struct {
	config RegistryConfig
	logger *slog.Logger

	mu    sync.RWMutex
	views map[string]*View

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry は新しいRegistryを生成する。
// バックグラウンドで期限切れビューのクリーンアップを開始する。
func NewRegistry(config RegistryConfig) *Registry {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 30 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		config: config,
		logger: logger,
		views:  make(map[string]*View),
		stopCh: make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Mount は新しいビューインスタンスを生成し、初回ロードを開始する。
func (r *Registry) Mount() *View {
	v := New(Options{
		ID:               uuid.NewString(),
		Fetcher:          r.config.Fetcher,
		Checker:          r.config.Checker,
		Recorder:         r.config.Recorder,
		Logger:           r.logger,
		FallbackImageURL: r.config.FallbackImageURL,
	})

	r.mu.Lock()
	var evicted *View
	if r.config.MaxViews > 0 && len(r.views) >= r.config.MaxViews {
		evicted = r.oldestLocked()
		delete(r.views, evicted.ID())
	}
	r.views[v.ID()] = v
	count := len(r.views)
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
		r.logger.Warn("ビュー数の上限に達したため最も古いビューをアンマウントしました",
			slog.String("evicted_view_id", evicted.ID()),
			slog.Int("max_views", r.config.MaxViews),
		)
	}
	r.recordActive(count)
	v.Load()
	return v
}

// oldestLocked は最終アクセスが最も古いビューを返す。r.muを保持して呼ぶ。
func (r *Registry) oldestLocked() *View {
	var oldest *View
	for _, v := range r.views {
		if oldest == nil || v.LastAccess().Before(oldest.LastAccess()) {
			oldest = v
		}
	}
	return oldest
}

// Get はIDに対応するビューを返し、最終アクセス時刻を更新する。
func (r *Registry) Get(id string) (*View, bool) {
	r.mu.RLock()
	v, ok := r.views[id]
	r.mu.RUnlock()

	if ok {
		v.Touch()
	}
	return v, ok
}

// Unmount は指定ビューをアンマウントして破棄する。
func (r *Registry) Unmount(id string) bool {
	r.mu.Lock()
	v, ok := r.views[id]
	if ok {
		delete(r.views, id)
	}
	count := len(r.views)
	r.mu.Unlock()

	if !ok {
		return false
	}
	v.Close()
	r.recordActive(count)
	return true
}

// Count はマウント中のビュー数を返す。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// Stop はクリーンアップを停止し、すべてのビューをアンマウントする。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})

	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	r.recordActive(0)
}

// cleanupLoop はバックグラウンドで期限切れビューを定期的にアンマウントする。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTTLを超えたビューをアンマウントする。
func (r *Registry) evictIdle(now time.Time) int {
	var expired []*View

	r.mu.Lock()
	for id, v := range r.views {
		if now.Sub(v.LastAccess()) > r.config.IdleTTL {
			expired = append(expired, v)
			delete(r.views, id)
		}
	}
	count := len(r.views)
	r.mu.Unlock()

	for _, v := range expired {
		v.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("アイドル状態のビューをアンマウントしました",
			slog.Int("evicted_count", len(expired)),
			slog.Int("active_count", count),
		)
		r.recordActive(count)
	}
	return len(expired)
}

func (r *Registry) recordActive(n int) {
	if rec, ok := r.config.Recorder.(ActiveViewsRecorder); ok {
		rec.SetActiveViews(n)
	}
}
