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
// ゲート判定・ワーカー・サービス層から利用する。
type MetricsCollector interface {
	RecordGateDecision(kind string, outcome string)
	RecordBootstrapRace()
	RecordProgressUpserted()
	RecordSessionLookupLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordAnnouncementFetchSuccess(courseID string)
	RecordAnnouncementFetchFailure(courseID string, reason string)
	RecordAnnouncementsUpserted(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions        *prometheus.CounterVec
	bootstrapRaces       prometheus.Counter
	progressUpserts      prometheus.Counter
	sessionLookupLatency prometheus.Histogram
	httpStatus           *prometheus.CounterVec
	announceFetchSuccess prometheus.Counter
	announceFetchFail    prometheus.Counter
	announcementsUpsert  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegate_gate_decisions_total",
			Help: "保護種別・結果別のゲート判定数",
		}, []string{"kind", "outcome"}),
		bootstrapRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegate_profile_bootstrap_races_total",
			Help: "UNIQUE違反で再読み込みに解決されたプロフィール作成競合の合計数",
		}),
		progressUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegate_progress_upserts_total",
			Help: "進捗完了UPSERTの合計数",
		}),
		sessionLookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagegate_session_lookup_latency_seconds",
			Help:    "セッション照会のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		announceFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegate_announcement_fetch_success_total",
			Help: "お知らせフィード取得成功の合計数",
		}),
		announceFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegate_announcement_fetch_fail_total",
			Help: "お知らせフィード取得失敗の合計数",
		}),
		announcementsUpsert: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegate_announcements_upserted_total",
			Help: "アップサートされたお知らせの合計数",
		}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.bootstrapRaces,
		c.progressUpserts,
		c.sessionLookupLatency,
		c.httpStatus,
		c.announceFetchSuccess,
		c.announceFetchFail,
		c.announcementsUpsert,
	)

	return c
}

// RecordGateDecision はゲート判定の結果を記録する。
func (c *Collector) RecordGateDecision(kind string, outcome string) {
	c.gateDecisions.WithLabelValues(kind, outcome).Inc()
}

// RecordBootstrapRace はプロフィール作成競合の解決を記録する。
func (c *Collector) RecordBootstrapRace() {
	c.bootstrapRaces.Inc()
}

// RecordProgressUpserted は進捗完了UPSERTを記録する。
func (c *Collector) RecordProgressUpserted() {
	c.progressUpserts.Inc()
}

// RecordSessionLookupLatency はセッション照会のレイテンシを記録する。
func (c *Collector) RecordSessionLookupLatency(duration time.Duration) {
	c.sessionLookupLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAnnouncementFetchSuccess はお知らせフィード取得成功を記録する。
func (c *Collector) RecordAnnouncementFetchSuccess(courseID string) {
	c.announceFetchSuccess.Inc()
}

// RecordAnnouncementFetchFailure はお知らせフィード取得失敗を記録する。
func (c *Collector) RecordAnnouncementFetchFailure(courseID string, reason string) {
	c.announceFetchFail.Inc()
}

// RecordAnnouncementsUpserted はアップサートされたお知らせ数を記録する。
func (c *Collector) RecordAnnouncementsUpserted(count int) {
	c.announcementsUpsert.Add(float64(count))
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
