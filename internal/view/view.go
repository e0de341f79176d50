package view

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/topnews/internal/model"
	"github.com/hitoshi/topnews/internal/newsapi"
)

// DefaultFallbackImageURL は画像の読み込みに失敗したカードに表示する代替画像。
const DefaultFallbackImageURL = "https://images.unsplash.com/photo-1504711434969-e33886168f5c?w=400&h=300&fit=crop"

// フェッチの種類（ログ・メトリクス用）。
const (
	FetchKindLoad    = "load"
	FetchKindRefresh = "refresh"
)

// NewsFetcher はニュース集約エンドポイントからの取得を抽象化する。
// newsapi.Clientが実装する。
type NewsFetcher interface {
	FetchNews(ctx context.Context) (*model.Envelope, error)
}

// ThumbnailChecker はコミットされたカードの画像URLを検査する。
// 読み込めない画像を見つけたらbrokenにそのカード番号を渡す。
type ThumbnailChecker interface {
	CheckThumbnails(ctx context.Context, urls []string, broken func(index int))
}

// Recorder はビューのライフサイクルイベントを記録する。metrics.Collectorが実装する。
type Recorder interface {
	RecordFetch(kind, reason string, duration time.Duration)
	RecordRefreshIgnored()
	RecordImageFallback()
}

// Options はNewに渡す依存関係。
type Options struct {
	ID               string
	Fetcher          NewsFetcher
	Checker          ThumbnailChecker // nilの場合は画像検査を行わない
	Recorder         Recorder         // nilの場合は記録しない
	Logger           *slog.Logger
	FallbackImageURL string // 空の場合はDefaultFallbackImageURL
}

// View はビューインスタンス1つ分の状態とフェッチコントローラ。
// 状態はViewが排他的に所有し、フェッチの完了コールバックと更新トリガーからのみ変更される。
type View struct {
	id       string
	fetcher  NewsFetcher
	checker  ThumbnailChecker
	recorder Recorder
	logger   *slog.Logger
	fallback string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	state  State
	cards  []*Card
	closed bool

	lastAccess atomic.Int64
}

// New はマウント前のViewを生成する。初回ロードはLoadで明示的に開始する。
func New(opts Options) *View {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fallback := opts.FallbackImageURL
	if fallback == "" {
		fallback = DefaultFallbackImageURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		id:       opts.ID,
		fetcher:  opts.Fetcher,
		checker:  opts.Checker,
		recorder: opts.Recorder,
		logger:   logger.With(slog.String("view_id", opts.ID)),
		fallback: fallback,
		ctx:      ctx,
		cancel:   cancel,
	}
	v.Touch()
	return v
}

// ID はビューインスタンスのIDを返す。
func (v *View) ID() string {
	return v.id
}

// FallbackImageURL は代替画像のURLを返す。
func (v *View) FallbackImageURL() string {
	return v.fallback
}

// Load はマウント時の初回ロードを開始する。
// 1インスタンスにつき1回だけリクエストを発行し、2回目以降はfalseを返す。
// 返されるチャネルはフェッチが確定（コミットまたは失敗）した時点で閉じられる。
func (v *View) Load() (<-chan struct{}, bool) {
	v.mu.Lock()
	next, ok := Mount(v.state)
	if !ok || v.closed {
		v.mu.Unlock()
		return closedChan(), false
	}
	v.state = next
	v.mu.Unlock()

	v.logger.Info("初回ロードを開始しました")
	return v.startFetch(FetchKindLoad), true
}

// Refresh はユーザー操作による更新を開始する。
// 更新中（Refreshing）または初回ロード中はリクエストを発行せずfalseを返す。
func (v *View) Refresh() (<-chan struct{}, bool) {
	v.mu.Lock()
	next, ok := BeginRefresh(v.state)
	if !ok || v.closed {
		phase := v.state.Phase
		v.mu.Unlock()
		v.logger.Debug("更新リクエストを無視しました", slog.String("phase", phase.String()))
		if v.recorder != nil {
			v.recorder.RecordRefreshIgnored()
		}
		return closedChan(), false
	}
	v.state = next
	v.mu.Unlock()

	v.logger.Info("ニュースの更新を開始しました")
	return v.startFetch(FetchKindRefresh), true
}

// startFetch はフェッチをバックグラウンドで実行し、完了時に状態へ反映する。
func (v *View) startFetch(kind string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		start := time.Now()
		env, err := v.fetcher.FetchNews(v.ctx)
		v.settle(kind, env, err, time.Since(start))
	}()
	return done
}

// settle はフェッチ結果を1回の遷移で状態に反映する。
// 失敗はここで握りつぶし、ログとメトリクスにのみ残す。
func (v *View) settle(kind string, env *model.Envelope, err error, duration time.Duration) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		v.logger.Debug("アンマウント後のフェッチ完了を破棄しました", slog.String("kind", kind))
		return
	}

	if err != nil {
		v.state = Fail(v.state, Failure{Reason: newsapi.Reason(err), At: time.Now()})
		hasSnapshot := v.state.Snapshot != nil
		v.mu.Unlock()

		v.logger.Warn("ニュースの取得に失敗しました",
			slog.String("kind", kind),
			slog.String("reason", newsapi.Reason(err)),
			slog.String("error", err.Error()),
			slog.Bool("stale_snapshot", hasSnapshot),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		if v.recorder != nil {
			v.recorder.RecordFetch(kind, newsapi.Reason(err), duration)
		}
		return
	}

	snap := model.SnapshotFromEnvelope(env)
	v.state = Commit(v.state, snap)
	v.cards = newCards(snap.Items, v.fallback)
	generation := v.state.Generation
	urls := make([]string, len(v.cards))
	for i, c := range v.cards {
		urls[i], _ = c.ImageSrc()
	}
	v.mu.Unlock()

	v.logger.Info("ニュースを反映しました",
		slog.String("kind", kind),
		slog.Int("items_count", len(snap.Items)),
		slog.String("generated_at", snap.LastUpdated),
		slog.Uint64("generation", generation),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	if v.recorder != nil {
		v.recorder.RecordFetch(kind, "", duration)
	}

	if v.checker != nil {
		v.checker.CheckThumbnails(v.ctx, urls, func(index int) {
			v.MarkImageBroken(generation, index)
		})
	}
}

// MarkImageBroken は指定カードの画像を代替画像に切り替える。
// generationが現在のスナップショットと異なる場合（更新で置き換わった後）は何もしない。
// 切り替えはそのカードだけに閉じており、他のカードやスナップショットには影響しない。
func (v *View) MarkImageBroken(generation uint64, index int) bool {
	v.mu.RLock()
	if v.closed || generation != v.state.Generation || index < 0 || index >= len(v.cards) {
		v.mu.RUnlock()
		return false
	}
	card := v.cards[index]
	v.mu.RUnlock()

	if !card.markBroken(v.fallback) {
		return false
	}

	v.logger.Info("画像を代替画像に切り替えました",
		slog.Int("card_index", index),
		slog.String("image_url", card.Item.ImageURL),
	)
	if v.recorder != nil {
		v.recorder.RecordImageFallback()
	}
	return true
}

// State は現在の状態のコピーを返す。
func (v *View) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Frame は描画用に現在の状態を1回の読み取りで固定したコピーを返す。
// items, overallSummary, lastUpdatedは常に同じレスポンス由来の組になる。
func (v *View) Frame() Frame {
	v.mu.RLock()
	defer v.mu.RUnlock()

	f := Frame{
		ViewID:           v.id,
		Phase:            v.state.Phase,
		Generation:       v.state.Generation,
		FallbackImageURL: v.fallback,
	}
	if v.state.LastFailure != nil {
		failure := *v.state.LastFailure
		f.LastFailure = &failure
	}
	if v.state.Snapshot == nil {
		return f
	}

	f.HasSnapshot = true
	f.OverallSummary = v.state.Snapshot.OverallSummary
	f.LastUpdated = v.state.Snapshot.LastUpdated
	f.Cards = make([]CardFrame, len(v.cards))
	for i, c := range v.cards {
		src, fallback := c.ImageSrc()
		f.Cards[i] = CardFrame{
			Index:         i,
			Item:          c.Item,
			ImageSrc:      src,
			ImageFallback: fallback,
		}
	}
	return f
}

// Touch は最終アクセス時刻を更新する。
func (v *View) Touch() {
	v.lastAccess.Store(time.Now().UnixNano())
}

// LastAccess は最終アクセス時刻を返す。
func (v *View) LastAccess() time.Time {
	return time.Unix(0, v.lastAccess.Load())
}

// Close はビューをアンマウントする。進行中のリクエストはキャンセルされ、
// 以後のフェッチ完了は状態に反映されない。
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.cancel()
	v.logger.Info("ビューをアンマウントしました")
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
