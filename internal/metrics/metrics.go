// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 画像キャッシュ、検索クライアント、お気に入りハンドラーから利用する。
type MetricsCollector interface {
	RecordImageCacheHit()
	RecordImageCacheMiss()
	RecordImageFetchFailure(reason string)
	RecordImageFetchLatency(duration time.Duration)
	RecordImageCacheEntries(count int)
	RecordSearchStatus(statusCode int)
	RecordSearchFailure(reason string)
	RecordSearchLatency(duration time.Duration)
	RecordFavoritesChange(op string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	imageCacheHit     prometheus.Counter
	imageCacheMiss    prometheus.Counter
	imageFetchFail    *prometheus.CounterVec
	imageFetchLatency prometheus.Histogram
	imageCacheEntries prometheus.Gauge
	searchStatus      *prometheus.CounterVec
	searchFail        *prometheus.CounterVec
	searchLatency     prometheus.Histogram
	favoritesChange   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		imageCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photoshelf_image_cache_hit_total",
			Help: "画像キャッシュのヒット数",
		}),
		imageCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photoshelf_image_cache_miss_total",
			Help: "画像キャッシュのミス数（ネットワーク取得を行った回数）",
		}),
		imageFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoshelf_image_fetch_fail_total",
			Help: "画像取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		imageFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photoshelf_image_fetch_latency_seconds",
			Help:    "画像取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		imageCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photoshelf_image_cache_entries",
			Help: "画像キャッシュのエントリ数",
		}),
		searchStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoshelf_search_http_status_total",
			Help: "検索APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		searchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoshelf_search_fail_total",
			Help: "検索失敗の合計数（理由別）",
		}, []string{"reason"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photoshelf_search_latency_seconds",
			Help:    "検索APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		favoritesChange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoshelf_favorites_change_total",
			Help: "お気に入りの変更数（操作別）",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.imageCacheHit,
		c.imageCacheMiss,
		c.imageFetchFail,
		c.imageFetchLatency,
		c.imageCacheEntries,
		c.searchStatus,
		c.searchFail,
		c.searchLatency,
		c.favoritesChange,
	)

	return c
}

// RecordImageCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordImageCacheHit() {
	c.imageCacheHit.Inc()
}

// RecordImageCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordImageCacheMiss() {
	c.imageCacheMiss.Inc()
}

// RecordImageFetchFailure は画像取得失敗を記録する。
func (c *Collector) RecordImageFetchFailure(reason string) {
	c.imageFetchFail.WithLabelValues(reason).Inc()
}

// RecordImageFetchLatency は画像取得のレイテンシを記録する。
func (c *Collector) RecordImageFetchLatency(duration time.Duration) {
	c.imageFetchLatency.Observe(duration.Seconds())
}

// RecordImageCacheEntries はキャッシュのエントリ数を記録する。
func (c *Collector) RecordImageCacheEntries(count int) {
	c.imageCacheEntries.Set(float64(count))
}

// RecordSearchStatus は検索APIのHTTPステータスコードを記録する。
func (c *Collector) RecordSearchStatus(statusCode int) {
	c.searchStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSearchFailure は検索失敗を記録する。
func (c *Collector) RecordSearchFailure(reason string) {
	c.searchFail.WithLabelValues(reason).Inc()
}

// RecordSearchLatency は検索のレイテンシを記録する。
func (c *Collector) RecordSearchLatency(duration time.Duration) {
	c.searchLatency.Observe(duration.Seconds())
}

// RecordFavoritesChange はお気に入りの変更を記録する。
func (c *Collector) RecordFavoritesChange(op string) {
	c.favoritesChange.WithLabelValues(op).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordImageCacheHit()                  {}
func (Nop) RecordImageCacheMiss()                 {}
func (Nop) RecordImageFetchFailure(string)        {}
func (Nop) RecordImageFetchLatency(time.Duration) {}
func (Nop) RecordImageCacheEntries(int)           {}
func (Nop) RecordSearchStatus(int)                {}
func (Nop) RecordSearchFailure(string)            {}
func (Nop) RecordSearchLatency(time.Duration)     {}
func (Nop) RecordFavoritesChange(string)          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
