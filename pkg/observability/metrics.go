package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 链路指标
// 使用独立的 Registry，避免重复注册到全局默认 Registry
type Metrics struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	stageInFlight *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "promptchain",
			Name:      "stage_duration_seconds",
			Help:      "Duration of chain stages.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage", "status"}),
		stageInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "promptchain",
			Name:      "stage_in_flight",
			Help:      "Chain stages currently executing.",
		}, []string{"stage"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptchain",
			Name:      "runs_total",
			Help:      "Completed chain runs by approach and outcome.",
		}, []string{"approach", "status"}),
	}
	reg.MustRegister(m.stageDuration, m.stageInFlight, m.runsTotal)
	return m
}

// OnStageStart 阶段开始
func (m *Metrics) OnStageStart(_ context.Context, stage string) {
	m.stageInFlight.WithLabelValues(stage).Inc()
}

// OnStageEnd 阶段结束
func (m *Metrics) OnStageEnd(_ context.Context, stage string, d time.Duration, err error) {
	m.stageInFlight.WithLabelValues(stage).Dec()
	m.stageDuration.WithLabelValues(stage, statusLabel(err)).Observe(d.Seconds())
}

// ObserveRun 记录一次完整的链路执行结果
func (m *Metrics) ObserveRun(approach string, err error) {
	m.runsTotal.WithLabelValues(approach, statusLabel(err)).Inc()
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 Registry（用于测试）
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
