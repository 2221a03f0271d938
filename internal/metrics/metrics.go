// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// オーケストレータやワーカー、取り込み層から利用する。
type MetricsCollector interface {
	RecordProviderCall(provider, result string)
	RecordResolveLatency(platform string, d time.Duration)
	RecordRecordsSaved(count int)
	RecordDedupeMerged(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	providerCalls  *prometheus.CounterVec
	resolveLatency *prometheus.HistogramVec
	recordsSaved   prometheus.Counter
	dedupeMerged   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notevault_provider_calls_total",
			Help: "プロバイダ呼び出しの合計数（プロバイダ・結果別）",
		}, []string{"provider", "result"}),
		resolveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notevault_resolve_latency_seconds",
			Help:    "コンテンツ解決のレイテンシ（秒、プラットフォーム別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		recordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notevault_records_saved_total",
			Help: "保管庫へ取り込まれたレコードの合計数",
		}),
		dedupeMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notevault_dedupe_merged_total",
			Help: "重複排除で併合されたレコードの合計数",
		}),
	}

	reg.MustRegister(
		c.providerCalls,
		c.resolveLatency,
		c.recordsSaved,
		c.dedupeMerged,
	)

	return c
}

// RecordProviderCall はプロバイダ呼び出しの成否を記録する。
func (c *Collector) RecordProviderCall(provider, result string) {
	c.providerCalls.WithLabelValues(provider, result).Inc()
}

// RecordResolveLatency はコンテンツ解決のレイテンシを記録する。
func (c *Collector) RecordResolveLatency(platform string, d time.Duration) {
	c.resolveLatency.WithLabelValues(platform).Observe(d.Seconds())
}

// RecordRecordsSaved は保管庫へ取り込まれたレコード数を記録する。
func (c *Collector) RecordRecordsSaved(count int) {
	c.recordsSaved.Add(float64(count))
}

// RecordDedupeMerged は重複排除で併合されたレコード数を記録する。
func (c *Collector) RecordDedupeMerged(count int) {
	c.dedupeMerged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
