package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opsoms_stream_clients",
		Help: "Number of connected stream clients",
	})
	pushCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsoms_stream_push_total",
		Help: "Total number of sync events pushed to stream clients",
	})
	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opsoms_queue_pending",
		Help: "Number of intents waiting for replay",
	})
	enqueuedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsoms_queue_enqueued_total",
		Help: "Total intents enqueued",
	}, []string{"kind"})
	syncedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsoms_sync_applied_total",
		Help: "Total intents confirmed applied to the central store",
	}, []string{"kind"})
	retryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsoms_sync_retries_total",
		Help: "Total failed replay attempts that stayed queued",
	}, []string{"kind"})
	terminalCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsoms_sync_terminal_failures_total",
		Help: "Total intents dropped after exhausting retries",
	}, []string{"kind"})
	drainSummary = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "opsoms_sync_drain_duration_seconds",
		Help: "Duration of drain cycles",
	})
	connectivityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opsoms_connectivity_online",
		Help: "1 while the central store is reachable, 0 otherwise",
	})
)

type prometheusObserver struct{}

func NewPrometheusObserver() Observer {
	return &prometheusObserver{}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) IncOnline()  { onlineGauge.Inc() }
func (p *prometheusObserver) DecOnline()  { onlineGauge.Dec() }
func (p *prometheusObserver) RecordPush() { pushCounter.Inc() }

func (p *prometheusObserver) SetPending(n int64) { pendingGauge.Set(float64(n)) }

func (p *prometheusObserver) RecordEnqueued(kind string) {
	enqueuedCounter.WithLabelValues(kind).Inc()
}

func (p *prometheusObserver) RecordSynced(kind string) {
	syncedCounter.WithLabelValues(kind).Inc()
}

func (p *prometheusObserver) RecordRetry(kind string) {
	retryCounter.WithLabelValues(kind).Inc()
}

func (p *prometheusObserver) RecordTerminalFailure(kind string) {
	terminalCounter.WithLabelValues(kind).Inc()
}

func (p *prometheusObserver) ObserveDrainDuration(seconds float64) {
	drainSummary.Observe(seconds)
}

func (p *prometheusObserver) SetConnectivity(online bool) {
	if online {
		connectivityGauge.Set(1)
	} else {
		connectivityGauge.Set(0)
	}
}
