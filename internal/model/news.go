// Package model はドメインモデルを定義する。
package model

// NewsItem は集約エンドポイントから受け取ったニュース1件を表す。
// 受信後は変更しない。
type NewsItem struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Published string `json:"published"`
	Source    string `json:"source"`
	URL       string `json:"url"`
	ImageURL  string `json:"image_url"`
	Category  string `json:"category"`
}

// Envelope は GET /api/news のレスポンス全体を表す。
// Count は参考値であり、表示件数は len(Data) を使う。
type Envelope struct {
	Success        bool       `json:"success"`
	Data           []NewsItem `json:"data"`
	Count          int        `json:"count"`
	GeneratedAt    string     `json:"generated_at"`
	OverallSummary string     `json:"overall_summary"`
}

// Snapshot は1回のレスポンスから一括でコミットされる表示データ。
// Items の順序はサーバーが決めた順位のまま保持する。
type Snapshot struct {
	Items          []NewsItem
	OverallSummary string
	LastUpdated    string
}

// SnapshotFromEnvelope はEnvelopeからSnapshotを組み立てる。
// Itemsは呼び出し元と共有しないようコピーする。
func SnapshotFromEnvelope(env *Envelope) Snapshot {
	items := make([]NewsItem, len(env.Data))
	copy(items, env.Data)
	return Snapshot{
		Items:          items,
		OverallSummary: env.OverallSummary,
		LastUpdated:    env.GeneratedAt,
	}
}
