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
// 購入フローのサービス層から利用する。
type MetricsCollector interface {
	RecordCheckoutCreated()
	RecordFinalizeGranted()
	RecordFinalizeDuplicate()
	RecordFinalizeUnpaid()
	RecordGatewayError()
	RecordHTTPStatus(statusCode int)
	RecordGatewayLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checkoutCreated   prometheus.Counter
	finalizeGranted   prometheus.Counter
	finalizeDuplicate prometheus.Counter
	finalizeUnpaid    prometheus.Counter
	gatewayError      prometheus.Counter
	httpStatus        *prometheus.CounterVec
	gatewayLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkoutCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courseman_checkout_created_total",
			Help: "作成されたCheckout Intentの合計数",
		}),
		finalizeGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courseman_finalize_granted_total",
			Help: "新規に付与されたエンタイトルメントの合計数",
		}),
		finalizeDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courseman_finalize_duplicate_total",
			Help: "付与済みとして吸収された重複finalizeの合計数",
		}),
		finalizeUnpaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courseman_finalize_unpaid_total",
			Help: "支払い未完了のためスキップされたfinalizeの合計数",
		}),
		gatewayError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courseman_gateway_error_total",
			Help: "決済ゲートウェイ呼び出し失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courseman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courseman_gateway_latency_seconds",
			Help:    "決済ゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.checkoutCreated,
		c.finalizeGranted,
		c.finalizeDuplicate,
		c.finalizeUnpaid,
		c.gatewayError,
		c.httpStatus,
		c.gatewayLatency,
	)

	return c
}

// RecordCheckoutCreated はCheckout Intent作成を記録する。
func (c *Collector) RecordCheckoutCreated() {
	c.checkoutCreated.Inc()
}

// RecordFinalizeGranted はエンタイトルメントの新規付与を記録する。
func (c *Collector) RecordFinalizeGranted() {
	c.finalizeGranted.Inc()
}

// RecordFinalizeDuplicate は重複finalizeの吸収を記録する。
func (c *Collector) RecordFinalizeDuplicate() {
	c.finalizeDuplicate.Inc()
}

// RecordFinalizeUnpaid は支払い未完了によるスキップを記録する。
func (c *Collector) RecordFinalizeUnpaid() {
	c.finalizeUnpaid.Inc()
}

// RecordGatewayError はゲートウェイ呼び出し失敗を記録する。
func (c *Collector) RecordGatewayError() {
	c.gatewayError.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGatewayLatency はゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
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
