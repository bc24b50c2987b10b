// Package healthmonitor implements a periodic sanity audit against the
// cluster's check resources, independent of and observing-only relative to
// the CheckHandler's own runners, grounded on mozalert/checks/monitor.py's
// CheckMonitor.
package healthmonitor

import (
	"context"
	"time"

	"github.com/afrank/checkoperator/internal/cluster"

	log "github.com/sirupsen/logrus"
)

// defaultInterval is how often the audit runs, matching CheckMonitor's
// interval default of 60s.
const defaultInterval = 60 * time.Second

// staleGrace is how far past next_check a non-running check is allowed to
// drift before being counted as a sanity failure, matching the original's
// hardcoded 30s grace window.
const staleGrace = 30 * time.Second

// defaultFailedThreshold is the per-run count of sanity failures tolerated
// before a run itself counts against the circuit breaker, matching
// failed_threshold's default of 0 (any failure counts).
const defaultFailedThreshold = 0

// defaultSequentialThreshold is how many consecutive failing runs trigger
// the circuit-breaker log, matching sequential_failed_run_threshold's
// default of 2.
const defaultSequentialThreshold = 2

// Options configures the monitor's operational knobs.
type Options struct {
	Interval            time.Duration
	FailedThreshold     int
	SequentialThreshold int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.SequentialThreshold <= 0 {
		o.SequentialThreshold = defaultSequentialThreshold
	}
	return o
}

// Monitor periodically lists every check resource and flags ones whose
// next_check has drifted into the past while not RUNNING. It never mutates
// state; it only logs (spec.md §4.6).
type Monitor struct {
	cluster cluster.ClusterClient
	opts    Options

	sequentialFailedRuns int
}

// New constructs a Monitor auditing cc.
func New(cc cluster.ClusterClient, opts Options) *Monitor {
	return &Monitor{cluster: cc, opts: opts.withDefaults()}
}

// Run audits every Interval until stop is closed.
func (m *Monitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.auditOnce()
		}
	}
}

// auditOnce lists all checks and counts how many look stale, matching
// check_monitor.
func (m *Monitor) auditOnce() {
	log.Info("running check monitor sanity audit")

	listed, err := m.cluster.List(context.Background())
	if err != nil {
		log.WithError(err).Error("failed to list checks for sanity audit")
		listed = nil
	}

	now := time.Now()
	success, failed := 0, 0

	for _, lc := range listed {
		st := lc.Status
		stale := st.NextCheck.IsZero() || st.NextCheck.Add(staleGrace).Before(now)
		if stale && !st.IsRunning() {
			failed++
			log.WithField("check", lc.Config.Key()).
				Warn("sanity check failed: next_check is in the past but status is not RUNNING")
			continue
		}
		success++
	}

	if failed > m.opts.FailedThreshold {
		m.sequentialFailedRuns++
		log.WithField("sequential_failures", m.sequentialFailedRuns).
			Warn("sequential failed sanity checks")
	} else {
		m.sequentialFailedRuns = 0
	}

	log.WithFields(log.Fields{"success": success, "failed": failed}).Debug("sanity audit finished")

	if m.sequentialFailedRuns > m.opts.SequentialThreshold {
		log.WithFields(log.Fields{
			"sequential_failures": m.sequentialFailedRuns,
			"threshold":           m.opts.SequentialThreshold,
		}).Error("circuit breaker triggered: sanity check sequential failures exceeded threshold")
	}

	log.Info("check monitor finished")
}
