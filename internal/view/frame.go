package view

import "github.com/hitoshi/topnews/internal/model"

// Frame は1回の描画に使う、ビュー状態の不変なコピー。
type Frame struct {
	ViewID           string      `json:"view_id"`
	Phase            Phase       `json:"phase"`
	Generation       uint64      `json:"generation"`
	HasSnapshot      bool        `json:"has_snapshot"`
	OverallSummary   string      `json:"overall_summary"`
	LastUpdated      string      `json:"last_updated"`
	Cards            []CardFrame `json:"cards"`
	LastFailure      *Failure    `json:"last_failure,omitempty"`
	FallbackImageURL string      `json:"fallback_image_url"`
}

// CardFrame はカード1枚分の描画データ。Indexはスナップショット内の位置で、カードの識別子を兼ねる。
type CardFrame struct {
	Index         int            `json:"index"`
	Item          model.NewsItem `json:"item"`
	ImageSrc      string         `json:"image_src"`
	ImageFallback bool           `json:"image_fallback"`
}

// Refreshing は更新フェッチが進行中かどうかを返す。更新ボタンの無効化に使う。
func (f Frame) Refreshing() bool {
	return f.Phase == PhaseRefreshing
}

// Settled はフェッチが進行していないかどうかを返す。
func (f Frame) Settled() bool {
	return f.Phase == PhaseReady
}
