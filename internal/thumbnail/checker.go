// Package thumbnail はカードのサムネイル画像が読み込めるかをサーバー側で検査する。
//
// ブラウザ側のonerrorによる切り替えに加え、コミット直後に各画像URLを検査し、
// 配信元が存在しないと答えた画像、または画像以外を返した画像を持つカードだけを代替画像に切り替えさせる。
// サーバー側からの到達可否（DNS、経路、ポート制限、HEADへの403など）はブラウザでの読み込み可否を
// 表さないため、判定には使わない。
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
)

// userAgent は画像検査リクエストのUser-Agent。
const userAgent = "TopNews/1.0 thumbnail-check"

var (
	// ErrNotImage はレスポンスが画像でないことを示す。
	ErrNotImage = errors.New("thumbnail: response is not an image")
	// ErrGone は配信元が画像の不存在（404/410）を返したことを示す。
	ErrGone = errors.New("thumbnail: image not found")
)

// URLValidator は検査前に画像URLを静的に検証する。security.OutboundGuardが実装する。
type URLValidator interface {
	Validate(rawURL string) error
}

// Recorder は検査結果を記録する。metrics.Collectorが実装する。
type Recorder interface {
	RecordThumbnailProbe(ok bool)
}

// Config はCheckerの設定を保持する。
type Config struct {
	Client         *http.Client
	Validator      URLValidator // nilの場合は静的検証を行わない
	Recorder       Recorder     // nilの場合は記録しない
	Logger         *slog.Logger
	MaxConcurrency int
	SkipURL        string // このURLは検査しない（代替画像）
}

// Checker は画像URLを並列に検査する。view.ThumbnailCheckerを満たす。
type Checker struct {
	client         *http.Client
	validator      URLValidator
	recorder       Recorder
	logger         *slog.Logger
	maxConcurrency int
	skipURL        string
}

// NewChecker は新しいCheckerを生成する。
func NewChecker(cfg Config) *Checker {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	return &Checker{
		client:         client,
		validator:      cfg.Validator,
		recorder:       cfg.Recorder,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		skipURL:        cfg.SkipURL,
	}
}

// CheckThumbnails はurlsを並列に検査し、読み込めない画像のインデックスをbrokenに渡す。
// brokenに渡すのはIsBrokenがtrueとなる確定的な応答だけで、通信エラー、静的検証で拒否したURL、
// ctxのキャンセルで中断した検査は壊れているとはみなさない。
// すべての検査が終わるまでブロックする。
func (c *Checker) CheckThumbnails(ctx context.Context, urls []string, broken func(index int)) {
	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		if u == "" || u == c.skipURL {
			continue
		}
		if c.validator != nil {
			if err := c.validator.Validate(u); err != nil {
				c.logger.Debug("画像URLの検査をスキップしました",
					slog.Int("card_index", i),
					slog.String("image_url", u),
					slog.String("error", err.Error()),
				)
				continue
			}
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(index int, imageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := c.Probe(ctx, imageURL)
			if ctx.Err() != nil {
				return
			}
			if err != nil && !IsBroken(err) {
				c.logger.Debug("画像の検査結果が確定しませんでした",
					slog.Int("card_index", index),
					slog.String("image_url", imageURL),
					slog.String("error", err.Error()),
				)
				return
			}
			if c.recorder != nil {
				c.recorder.RecordThumbnailProbe(err == nil)
			}
			if err != nil {
				c.logger.Info("読み込めない画像を検出しました",
					slog.Int("card_index", index),
					slog.String("image_url", imageURL),
					slog.String("error", err.Error()),
				)
				broken(index)
			}
		}(i, u)
	}

	wg.Wait()
}

// Probe は画像URLにHEADリクエストを送り、2xxかつ画像のContent-Typeであればnilを返す。
// HEADを受け付けないサーバーにはGETで再試行する。
// 404/410はErrGone、2xxで画像以外はErrNotImageを返す。それ以外のエラーは判定不能を表す。
func (c *Checker) Probe(ctx context.Context, imageURL string) error {
	resp, err := c.do(ctx, http.MethodHead, imageURL)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = c.do(ctx, http.MethodGet, imageURL)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: status %d", ErrGone, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("thumbnail: unexpected status %d", resp.StatusCode)
	}
	if !isImageContentType(resp.Header.Get("Content-Type")) {
		return fmt.Errorf("%w: %q", ErrNotImage, resp.Header.Get("Content-Type"))
	}
	return nil
}

// IsBroken はProbeのエラーが画像の読み込み失敗を確定させるものかを判定する。
func IsBroken(err error) bool {
	return errors.Is(err, ErrGone) || errors.Is(err, ErrNotImage)
}

// do はリクエストを送り、ボディを読まずに閉じたレスポンスを返す。
func (c *Checker) do(ctx context.Context, method, imageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: request failed: %w", err)
	}
	resp.Body.Close()
	return resp, nil
}

// isImageContentType はContent-Typeが画像かどうかを判定する。
func isImageContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
