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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordSessionTransition(transition string)
	RecordSessionDuration(seconds int64)
	RecordGoalEvaluation(goalType string, completed bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCleanupDeleted(target string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionTransitions *prometheus.CounterVec
	sessionDuration    prometheus.Histogram
	goalEvaluations    *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	cleanupDeleted     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quietly_session_transitions_total",
			Help: "読書セッションの状態遷移数",
		}, []string{"transition"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quietly_session_duration_seconds",
			Help:    "終了した読書セッションの読書時間（秒）",
			Buckets: []float64{60, 300, 600, 900, 1800, 2700, 3600, 5400, 7200, 14400},
		}),
		goalEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quietly_goal_evaluations_total",
			Help: "読書目標の進捗計算回数",
		}, []string{"goal_type", "completed"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quietly_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quietly_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quietly_cleanup_deleted_total",
			Help: "クリーンアップジョブで削除したレコード数",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.sessionTransitions,
		c.sessionDuration,
		c.goalEvaluations,
		c.httpStatus,
		c.requestLatency,
		c.cleanupDeleted,
	)

	return c
}

// RecordSessionTransition は読書セッションの状態遷移を記録する。
func (c *Collector) RecordSessionTransition(transition string) {
	c.sessionTransitions.WithLabelValues(transition).Inc()
}

// RecordSessionDuration は終了したセッションの読書秒数を記録する。
func (c *Collector) RecordSessionDuration(seconds int64) {
	c.sessionDuration.Observe(float64(seconds))
}

// RecordGoalEvaluation は目標の進捗計算結果を記録する。
func (c *Collector) RecordGoalEvaluation(goalType string, completed bool) {
	c.goalEvaluations.WithLabelValues(goalType, strconv.FormatBool(completed)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCleanupDeleted はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanupDeleted(target string, count int64) {
	c.cleanupDeleted.WithLabelValues(target).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewWorkerMux はワーカープロセス用のHTTPハンドラーを返す。
// /metrics でメトリクスを公開し、/health はhealthcheckコマンドの疎通確認に200を返す。
func NewWorkerMux(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
