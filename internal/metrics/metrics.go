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
// 認証サービス、ユーザーサービス、ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	// RecordAuthOutcome はアイデンティティ解決の結果（linked, existing, attached, created, conflict）を記録する。
	RecordAuthOutcome(outcome string)
	// RecordSignup はユーザー作成を登録ルール別に記録する。
	RecordSignup(policy string)
	// RecordProviderExchange はOAuthプロバイダーとのコード交換の所要時間と成否を記録する。
	RecordProviderExchange(provider string, duration time.Duration, err error)
	RecordHTTPStatus(statusCode int)
	RecordSessionsExpired(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOutcomes     *prometheus.CounterVec
	signups          *prometheus.CounterVec
	exchangeLatency  *prometheus.HistogramVec
	exchangeFailures *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	sessionsExpired  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountlink_auth_outcomes_total",
			Help: "アイデンティティ解決の結果別の件数",
		}, []string{"outcome"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountlink_signups_total",
			Help: "登録ルール別のユーザー作成数",
		}, []string{"policy"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accountlink_provider_exchange_seconds",
			Help:    "OAuthプロバイダーとのコード交換のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		exchangeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountlink_provider_exchange_failures_total",
			Help: "OAuthプロバイダーとのコード交換の失敗数",
		}, []string{"provider"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountlink_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountlink_sessions_expired_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authOutcomes,
		c.signups,
		c.exchangeLatency,
		c.exchangeFailures,
		c.httpStatus,
		c.sessionsExpired,
	)

	return c
}

// RecordAuthOutcome はアイデンティティ解決の結果を記録する。
func (c *Collector) RecordAuthOutcome(outcome string) {
	c.authOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSignup はユーザー作成を記録する。
func (c *Collector) RecordSignup(policy string) {
	c.signups.WithLabelValues(policy).Inc()
}

// RecordProviderExchange はコード交換のレイテンシを記録し、失敗時は失敗数も加算する。
func (c *Collector) RecordProviderExchange(provider string, duration time.Duration, err error) {
	c.exchangeLatency.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		c.exchangeFailures.WithLabelValues(provider).Inc()
	}
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsExpired は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsExpired(count int64) {
	c.sessionsExpired.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスが単独でメトリクスを公開する際に使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var _ MetricsCollector = (*Collector)(nil)
