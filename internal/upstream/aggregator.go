package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/topnews/internal/model"
	"github.com/hitoshi/topnews/internal/security"
)

const (
	// entriesPerFeed は1フィードから採用する記事数。
	entriesPerFeed = 3
	// generatedAtLayout はgenerated_atと公開日時の代替値の書式。
	generatedAtLayout = "2006-01-02 15:04:05"
	// failureSummary は集約に失敗したときのoverall_summary。
	failureSummary = "ニュースの取得中にエラーが発生しました。"
)

// ErrNoItems はどのフィードからも記事を取得できなかったことを示す。
var ErrNoItems = errors.New("upstream: no items collected from any feed")

// TextSanitizer はRSS由来のタイトルと要約からマークアップを除去する。
// security.TextSanitizerが実装する。
type TextSanitizer interface {
	Text(raw string) string
}

// Config はAggregatorの設定。
type Config struct {
	Client         *http.Client
	Feeds          []FeedSource
	Sanitizer      TextSanitizer // nilの場合はsecurity.NewTextSanitizer()
	Logger         *slog.Logger
	MaxItems       int   // 返す記事の上限。0以下の場合は6
	MaxBodySize    int64 // フィード1件のレスポンスサイズ上限。0以下の場合は2MB
	MaxConcurrency int   // 同時に取得するフィード数。0以下の場合は4
	Now            func() time.Time
}

// Aggregator はRSSフィードから記事を集めてエンベロープを組み立てる。
type Aggregator struct {
	client         *http.Client
	feeds          []FeedSource
	sanitizer      TextSanitizer
	logger         *slog.Logger
	maxItems       int
	maxBodySize    int64
	maxConcurrency int
	now            func() time.Time
}

// NewAggregator は新しいAggregatorを生成する。
func NewAggregator(cfg Config) *Aggregator {
	a := &Aggregator{
		client:         cfg.Client,
		feeds:          cfg.Feeds,
		sanitizer:      cfg.Sanitizer,
		logger:         cfg.Logger,
		maxItems:       cfg.MaxItems,
		maxBodySize:    cfg.MaxBodySize,
		maxConcurrency: cfg.MaxConcurrency,
		now:            cfg.Now,
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 10 * time.Second}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.sanitizer == nil {
		a.sanitizer = security.NewTextSanitizer()
	}
	if a.maxItems <= 0 {
		a.maxItems = 6
	}
	if a.maxBodySize <= 0 {
		a.maxBodySize = 2 << 20
	}
	if a.maxConcurrency <= 0 {
		a.maxConcurrency = 4
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Envelope は全フィードを取得してエンベロープを返す。
// 1件も記事を集められなかった場合はsuccess=falseのエンベロープを返す。
func (a *Aggregator) Envelope(ctx context.Context) model.Envelope {
	generatedAt := a.now().Format(generatedAtLayout)

	items, err := a.Collect(ctx)
	if err != nil {
		a.logger.Error("ニュースの集約に失敗しました", slog.String("error", err.Error()))
		return model.Envelope{
			Success:        false,
			Data:           []model.NewsItem{},
			Count:          0,
			GeneratedAt:    generatedAt,
			OverallSummary: failureSummary,
		}
	}

	return model.Envelope{
		Success:        true,
		Data:           items,
		Count:          len(items),
		GeneratedAt:    generatedAt,
		OverallSummary: OverallSummary(items),
	}
}

// Collect は全フィードを並行に取得し、フィードの設定順に記事を連結してMaxItems件まで返す。
// 取得に失敗したフィードはログに残して読み飛ばす。
func (a *Aggregator) Collect(ctx context.Context) ([]model.NewsItem, error) {
	results := make([][]model.NewsItem, len(a.feeds))

	sem := make(chan struct{}, a.maxConcurrency)
	var wg sync.WaitGroup

	for i, feed := range a.feeds {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, feed FeedSource) {
			defer wg.Done()
			defer func() { <-sem }()

			items, err := a.fetchFeed(ctx, feed)
			if err != nil {
				a.logger.Warn("フィードの取得に失敗しました",
					slog.String("feed_url", feed.URL),
					slog.String("error", err.Error()),
				)
				return
			}
			results[i] = items
		}(i, feed)
	}
	wg.Wait()

	var items []model.NewsItem
	for _, r := range results {
		items = append(items, r...)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if len(items) > a.maxItems {
		items = items[:a.maxItems]
	}
	return items, nil
}

// fetchFeed はフィード1件を取得し、先頭の記事をNewsItemに変換する。
func (a *Aggregator) fetchFeed(ctx context.Context, feed FeedSource) ([]model.NewsItem, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "TopNews/1.0 upstream")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	source := feed.Source
	if source == "" {
		source = a.sanitizer.Text(parsed.Title)
	}

	items := make([]model.NewsItem, 0, entriesPerFeed)
	for _, entry := range parsed.Items {
		if len(items) == entriesPerFeed {
			break
		}
		if entry == nil {
			continue
		}
		items = append(items, a.convertEntry(entry, source))
	}

	a.logger.Info("フィードを取得しました",
		slog.String("feed_url", feed.URL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("items_used", len(items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return items, nil
}

// convertEntry はgofeedの記事をNewsItemに変換する。
func (a *Aggregator) convertEntry(entry *gofeed.Item, source string) model.NewsItem {
	title := a.sanitizer.Text(entry.Title)

	summary := entry.Description
	if summary == "" {
		summary = entry.Content
	}
	summary = ShortenSummary(a.sanitizer.Text(summary), title)

	published := entry.Published
	if published == "" {
		published = a.now().Format(generatedAtLayout)
	}

	return model.NewsItem{
		Title:     title,
		Summary:   summary,
		Published: published,
		Source:    source,
		URL:       entry.Link,
		ImageURL:  entryImage(entry),
		Category:  Category(title),
	}
}
