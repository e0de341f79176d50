// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// view.Recorder, view.ActiveViewsRecorder, thumbnail.Recorderを満たす。
type Collector struct {
	fetchTotal     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	refreshIgnored prometheus.Counter
	imageFallback  prometheus.Counter
	activeViews    prometheus.Gauge
	thumbnailProbe *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topnews_fetch_total",
			Help: "ニュース取得の合計数（種類・結果別）",
		}, []string{"kind", "result"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topnews_fetch_latency_seconds",
			Help:    "ニュース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		refreshIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topnews_refresh_ignored_total",
			Help: "取得中のため無視された更新操作の合計数",
		}),
		imageFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topnews_image_fallback_total",
			Help: "代替画像に切り替えたカードの合計数",
		}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topnews_active_views",
			Help: "マウント中のビューインスタンス数",
		}),
		thumbnailProbe: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topnews_thumbnail_probe_total",
			Help: "サムネイル画像検査の合計数（結果別）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topnews_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fetchTotal,
		c.fetchLatency,
		c.refreshIgnored,
		c.imageFallback,
		c.activeViews,
		c.thumbnailProbe,
		c.httpStatus,
	)

	return c
}

// RecordFetch はニュース取得の結果とレイテンシを記録する。
// reasonが空の場合は成功として扱う。
func (c *Collector) RecordFetch(kind, reason string, duration time.Duration) {
	result := reason
	if result == "" {
		result = "success"
	}
	c.fetchTotal.WithLabelValues(kind, result).Inc()
	c.fetchLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRefreshIgnored は無視された更新操作を記録する。
func (c *Collector) RecordRefreshIgnored() {
	c.refreshIgnored.Inc()
}

// RecordImageFallback は代替画像への切り替えを記録する。
func (c *Collector) RecordImageFallback() {
	c.imageFallback.Inc()
}

// SetActiveViews はマウント中のビュー数を設定する。
func (c *Collector) SetActiveViews(n int) {
	c.activeViews.Set(float64(n))
}

// RecordThumbnailProbe はサムネイル検査の結果を記録する。
func (c *Collector) RecordThumbnailProbe(ok bool) {
	result := "ok"
	if !ok {
		result = "broken"
	}
	c.thumbnailProbe.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
