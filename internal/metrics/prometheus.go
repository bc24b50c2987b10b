package metrics

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// labelNames lists every label a Gauge for this domain may carry; unused
// labels on a given measurement are left empty, mirroring MetricsConfig's
// per-metric label allowlist in mozalert/metrics/thread.py.
var labelNames = []string{"name", "namespace", "status", "escalated"}

// PrometheusSink is the primary MetricsSink: every recorded Measurement
// updates (or creates, on first use) a Gauge named after it and, if a push
// gateway address was configured, pushes the whole registry. Grounded on
// mozalert/metrics/thread.py's CollectorRegistry + push_to_gateway loop;
// metric vectors are created lazily here (rather than from the Python
// original's closed MetricsConfig dict) since telemetry keys are arbitrary
// strings supplied by check authors and cannot be enumerated up front.
type PrometheusSink struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

// NewPrometheusSink builds a sink with its own registry. gatewayURL may be
// empty, in which case measurements update the registry but are never
// pushed (useful for a pull-based /metrics endpoint instead).
func NewPrometheusSink(gatewayURL, job string) *PrometheusSink {
	registry := prometheus.NewRegistry()

	var pusher *push.Pusher
	if gatewayURL != "" {
		pusher = push.New(gatewayURL, job).Gatherer(registry)
	}

	return &PrometheusSink{
		registry: registry,
		pusher:   pusher,
		gauges:   map[string]*prometheus.GaugeVec{},
	}
}

// Registry exposes the underlying registry for a pull-based /metrics
// handler in the webserver.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// Record sets the named gauge to m.Value for the check/namespace/status/
// escalated label tuple, then pushes the registry if a gateway was
// configured. check_failures_total/check_escalations_total are set to 1/0
// per tick rather than incremented, so they read as point-in-time gauges,
// not cumulative counters; correct under the push-every-tick model since
// each push already carries the current tick's outcome.
func (s *PrometheusSink) Record(m Measurement) {
	gauge := s.gaugeFor(m.Name)

	labels := prometheus.Labels{
		"name":      m.Check,
		"namespace": m.Namespace,
		"status":    m.Labels["status"],
		"escalated": m.Labels["escalated"],
	}
	gauge.With(labels).Set(m.Value)

	if s.pusher != nil {
		if err := s.pusher.Push(); err != nil {
			log.WithError(err).Debug("failed to push metrics to gateway")
		}
	}
}

func (s *PrometheusSink) gaugeFor(name string) *prometheus.GaugeVec {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gauges[name]; ok {
		return g
	}

	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: "checkoperator " + name,
	}, labelNames)
	s.registry.MustRegister(g)
	s.gauges[name] = g
	return g
}

// Consume drains q until stop is closed, recording every measurement with
// Record. Run as the Controller's dedicated metrics-consumer task.
func Consume(q *Queue, sink Sink, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		m, ok := q.Get(pollInterval)
		if !ok {
			continue
		}
		sink.Record(m)
	}
}
