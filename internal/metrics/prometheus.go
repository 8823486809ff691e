package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements [Recorder] with Prometheus collectors.
type PrometheusRecorder struct {
	ingested      *prom.CounterVec
	rejected      *prom.CounterVec
	decodeFailure prom.Counter
	expirations   prom.Counter
	notifications prom.Counter
	storeErrors   *prom.CounterVec
	nextExpiry    prom.Gauge
}

// NewPrometheusRecorder creates the glance collectors and registers them on reg. A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		ingested: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "glance",
			Name:      "updates_ingested_total",
			Help:      "Card updates accepted for a slot",
		}, []string{"slot"}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "glance",
			Name:      "updates_rejected_total",
			Help:      "Card updates dropped before apply",
		}, []string{"reason"}),
		decodeFailure: prom.NewCounter(prom.CounterOpts{
			Namespace: "glance",
			Name:      "decode_failures_total",
			Help:      "Payloads or persisted cards that failed to decode",
		}),
		expirations: prom.NewCounter(prom.CounterOpts{
			Namespace: "glance",
			Name:      "expirations_total",
			Help:      "Expiry passes that cleared at least one slot",
		}),
		notifications: prom.NewCounter(prom.CounterOpts{
			Namespace: "glance",
			Name:      "notifications_total",
			Help:      "Subscriber notification passes",
		}),
		storeErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "glance",
			Name:      "store_errors_total",
			Help:      "Blob store failures by operation",
		}, []string{"op"}),
		nextExpiry: prom.NewGauge(prom.GaugeOpts{
			Namespace: "glance",
			Name:      "next_expiry_timestamp_seconds",
			Help:      "Unix time of the armed expiry deadline, 0 when none",
		}),
	}
	reg.MustRegister(pr.ingested, pr.rejected, pr.decodeFailure, pr.expirations, pr.notifications, pr.storeErrors, pr.nextExpiry)
	return pr
}

func (p *PrometheusRecorder) IncUpdateIngested(slot string) {
	p.ingested.WithLabelValues(slot).Inc()
}

func (p *PrometheusRecorder) IncUpdateRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncDecodeFailure() { p.decodeFailure.Inc() }
func (p *PrometheusRecorder) IncExpiration()    { p.expirations.Inc() }
func (p *PrometheusRecorder) IncNotification()  { p.notifications.Inc() }

func (p *PrometheusRecorder) IncStoreError(op string) {
	p.storeErrors.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) SetNextExpiry(at time.Time) {
	if at.IsZero() {
		p.nextExpiry.Set(0)
		return
	}
	p.nextExpiry.Set(float64(at.UnixMilli()) / 1000)
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
