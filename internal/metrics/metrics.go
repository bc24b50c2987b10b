// Package metrics is the lossy handoff from CheckRunner ticks to an
// external telemetry gateway, grounded on mozalert/metrics/{queue,thread}.py
// and kuberhealthy-kuberhealthy's pkg/metrics package (which informs the Influx secondary
// backend).
package metrics

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Measurement is one data point destined for the telemetry backend: a
// metric name, the check identity as labels, any additional labels
// (status, escalated), and a value. This plays the role of mozalert's
// QueueItem namedtuple.
type Measurement struct {
	Name      string
	Check     string
	Namespace string
	Labels    map[string]string
	Value     float64
}

// Sink is the capability CheckRunner consumes to emit metrics; the core
// never touches a registry or a push client directly.
type Sink interface {
	Record(m Measurement)
}

// Queue is the bounded, best-effort FIFO between CheckRunner goroutines (one
// producer each) and the single MetricsSink consumer task run by the
// Controller, mirroring mozalert/metrics/queue.py's MetricsQueue. It is
// intentionally lossy: a full queue drops the newest measurement rather
// than blocking a check's tick, since losing one data point is preferable
// to stalling the scheduler.
type Queue struct {
	ch chan Measurement
}

// defaultCapacity bounds how many measurements may be buffered before Put
// starts dropping.
const defaultCapacity = 512

// pollInterval is how long Consume waits on an empty queue before checking
// its stop channel again.
const pollInterval = 3 * time.Second

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{ch: make(chan Measurement, defaultCapacity)}
}

// Put enqueues m, dropping it with a log line if the queue is full.
func (q *Queue) Put(m Measurement) {
	select {
	case q.ch <- m:
	default:
		log.WithField("metric", m.Name).Warn("metrics queue full, dropping measurement")
	}
}

// PutMany enqueues one measurement per key/value pair, mirroring
// MetricsQueue.put_many.
func (q *Queue) PutMany(check, namespace string, labels map[string]string, values map[string]float64) {
	for name, v := range values {
		q.Put(Measurement{Name: name, Check: check, Namespace: namespace, Labels: labels, Value: v})
	}
}

// Get waits up to timeout for the next measurement, returning ok=false on
// timeout, mirroring MetricsQueue.get's queue.Empty handling.
func (q *Queue) Get(timeout time.Duration) (m Measurement, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m = <-q.ch:
		return m, true
	case <-timer.C:
		return Measurement{}, false
	}
}
