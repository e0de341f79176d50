// Package newsapi はニュース集約エンドポイント（GET /api/news）のクライアントを提供する。
// レスポンスのエンベロープを検証し、コミット可能なEnvelopeだけを返す。
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/topnews/internal/model"
)

// newsPath は集約エンドポイントのパス。
const newsPath = "/api/news"

// defaultMaxBodySize はレスポンスボディの最大サイズ（2MB）。
const defaultMaxBodySize int64 = 2 * 1024 * 1024

// フェッチ失敗の分類。呼び出し元はerrors.Isで判定する。
var (
	// ErrNetwork はリクエストを送信できなかった、またはトランスポート層でタイムアウトした場合のエラー。
	ErrNetwork = errors.New("news api: network failure")
	// ErrUnexpectedStatus は2xx以外のHTTPステータスが返された場合のエラー。
	ErrUnexpectedStatus = errors.New("news api: unexpected http status")
	// ErrMalformedResponse はJSONとして不正、または必須フィールドが欠けている場合のエラー。
	ErrMalformedResponse = errors.New("news api: malformed response")
	// ErrDeclaredFailure はsuccess=falseが返された場合のエラー。
	ErrDeclaredFailure = errors.New("news api: declared failure")
)

// Reason はエラーをメトリクス・ログ用の短い分類名に変換する。
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeclaredFailure):
		return "declared_failure"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrUnexpectedStatus):
		return "unexpected_status"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "network"
	}
}

// Client はニュース集約エンドポイントのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュなしの集約サービスのURL（例: http://localhost:8000）。
// maxBodySizeが0以下の場合はデフォルト値2MBを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, maxBodySize int64) *Client {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxBodySize: maxBodySize,
	}
}

// Endpoint はリクエスト先のURLを返す。
func (c *Client) Endpoint() string {
	return c.baseURL + newsPath
}

// wireEnvelope は必須フィールドの欠落を検出するためのデコード用構造体。
type wireEnvelope struct {
	Success        *bool       `json:"success"`
	Data           *[]wireItem `json:"data"`
	Count          *int        `json:"count"`
	GeneratedAt    *string     `json:"generated_at"`
	OverallSummary *string     `json:"overall_summary"`
}

// wireItem はtitle, summary, urlの欠落を検出するためのデコード用構造体。
// 値が空文字列であることは欠落とはみなさない。
type wireItem struct {
	Title     *string `json:"title"`
	Summary   *string `json:"summary"`
	Published string  `json:"published"`
	Source    string  `json:"source"`
	URL       *string `json:"url"`
	ImageURL  string  `json:"image_url"`
	Category  string  `json:"category"`
}

// item は必須キーを検証してNewsItemに変換する。
func (w wireItem) item(index int) (model.NewsItem, error) {
	var missing []string
	if w.Title == nil {
		missing = append(missing, "title")
	}
	if w.Summary == nil {
		missing = append(missing, "summary")
	}
	if w.URL == nil {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return model.NewsItem{}, fmt.Errorf("%w: data[%d] に必須フィールドがありません: %v", ErrMalformedResponse, index, missing)
	}
	return model.NewsItem{
		Title:     *w.Title,
		Summary:   *w.Summary,
		Published: w.Published,
		Source:    w.Source,
		URL:       *w.URL,
		ImageURL:  w.ImageURL,
		Category:  w.Category,
	}, nil
}

// FetchNews は集約エンドポイントからニュースを1回取得する。
// success=trueかつ必須フィールドが揃っている場合のみEnvelopeを返す。
// それ以外はErrNetwork, ErrUnexpectedStatus, ErrMalformedResponse, ErrDeclaredFailureのいずれかをラップして返す。
func (c *Client) FetchNews(ctx context.Context) (*model.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエストの作成に失敗しました: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TopNews/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("ニュースAPIがエラーステータスを返しました",
			slog.String("url", c.Endpoint()),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: レスポンスボディの読み取りに失敗しました: %v", ErrNetwork, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: レスポンスサイズが上限 %d バイトを超えています", ErrMalformedResponse, c.maxBodySize)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ニュースAPIのレスポンスを受信しました",
		slog.String("url", c.Endpoint()),
		slog.Int("items_count", len(env.Data)),
		slog.String("generated_at", env.GeneratedAt),
	)

	return env, nil
}

// decodeEnvelope はレスポンスボディをEnvelopeにデコードし、形を検証する。
func decodeEnvelope(body []byte) (*model.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if w.Success == nil {
		return nil, fmt.Errorf("%w: success フィールドがありません", ErrMalformedResponse)
	}
	if !*w.Success {
		return nil, ErrDeclaredFailure
	}

	var missing []string
	if w.Data == nil {
		missing = append(missing, "data")
	}
	if w.GeneratedAt == nil {
		missing = append(missing, "generated_at")
	}
	if w.OverallSummary == nil {
		missing = append(missing, "overall_summary")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: 必須フィールドがありません: %v", ErrMalformedResponse, missing)
	}

	items := make([]model.NewsItem, len(*w.Data))
	for i, wi := range *w.Data {
		item, err := wi.item(i)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}

	env := &model.Envelope{
		Success:        true,
		Data:           items,
		GeneratedAt:    *w.GeneratedAt,
		OverallSummary: *w.OverallSummary,
	}
	if w.Count != nil {
		env.Count = *w.Count
	}
	return env, nil
}
