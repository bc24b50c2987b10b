// Package runner implements CheckRunner, the per-check scheduler state
// machine: timer-driven execution, retry/escalation policy, and status
// write-back. Grounded on mozalert/base.py's BaseCheck and mozalert/check.py's
// Check, the two classes this package merges into one type.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/cluster"
	"github.com/afrank/checkoperator/internal/escalation"
	"github.com/afrank/checkoperator/internal/metrics"
	"github.com/afrank/checkoperator/internal/status"

	log "github.com/sirupsen/logrus"
)

// defaultJobPollInterval is how often a tick polls the worker workload for
// completion, matching mozalert's job_poll_interval default of 3s.
const defaultJobPollInterval = 3 * time.Second

// defaultShutdownMaxWait bounds how long an in-flight tick may keep polling
// after shutdown was requested before being forced to a CRITICAL/IDLE
// finalization, matching mozalert's shutdown_max_wait_sec default of 10s.
const defaultShutdownMaxWait = 10 * time.Second

// Options configures operational knobs that otherwise default to the
// values mozalert hardcodes.
type Options struct {
	JobPollInterval time.Duration
	ShutdownMaxWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.JobPollInterval <= 0 {
		o.JobPollInterval = defaultJobPollInterval
	}
	if o.ShutdownMaxWait <= 0 {
		o.ShutdownMaxWait = defaultShutdownMaxWait
	}
	return o
}

// Runner owns one check's entire lifecycle: it arms its own timer, executes
// one attempt per tick, applies the retry/escalation policy, emits metrics,
// and writes status back to the cluster. Exactly one tick runs at a time;
// the timer is only re-armed once a tick completes (spec.md §5's ordering
// guarantee).
type Runner struct {
	cfg         checkconfig.CheckConfig
	cluster     cluster.ClusterClient
	escalations *escalation.Registry
	metricsQ    *metrics.Queue
	opts        Options

	mu           sync.Mutex
	status       status.Status
	escalated    bool
	runtime      time.Duration
	nextInterval time.Duration

	timer *time.Timer
	wg    sync.WaitGroup // tracks the in-flight tick, if any

	shuttingDown        int32 // atomic bool
	shutdownRequestedAt atomic.Value // time.Time
}

// New constructs a Runner for cfg. preStatus, if non-nil, is the status
// persisted on the resource before this process started or before a
// reconfigure replaced the prior runner; it seeds continuity across the
// gap per spec.md §4.4.
func New(cfg checkconfig.CheckConfig, cc cluster.ClusterClient, escalations *escalation.Registry, metricsQ *metrics.Queue, preStatus *status.Status, opts Options) *Runner {
	r := &Runner{
		cfg:         cfg,
		cluster:     cc,
		escalations: escalations,
		metricsQ:    metricsQ,
		opts:        opts.withDefaults(),
	}

	if preStatus == nil {
		r.status = status.New()
		r.nextInterval = cfg.CheckInterval
	} else {
		r.status = status.SeedFromPrior(*preStatus)
		r.escalated = false
		now := time.Now()
		switch {
		case r.status.IsRunning():
			r.nextInterval = time.Second
		case !r.status.NextCheck.IsZero():
			r.nextInterval = r.status.NextInterval(now)
		default:
			r.nextInterval = cfg.CheckInterval
		}
	}

	r.arm()
	return r
}

// Key identifies this runner's check, matching CheckConfig.Key.
func (r *Runner) Key() string {
	return r.cfg.Key()
}

// Config returns the configuration this runner was constructed with, used
// by CheckHandler to detect a genuine config change vs. a status echo.
func (r *Runner) Config() checkconfig.CheckConfig {
	return r.cfg
}

// Status returns a snapshot of the current status, safe for concurrent
// callers (e.g. tests or a debug endpoint).
func (r *Runner) Status() status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// arm sets NextCheck, persists status, and schedules tick to fire after
// r.nextInterval, matching BaseCheck.start_thread.
func (r *Runner) arm() {
	r.mu.Lock()
	interval := r.nextInterval
	if interval <= 0 {
		interval = time.Second
	}
	r.status.NextCheck = time.Now().UTC().Add(interval)
	snapshot := r.status
	r.mu.Unlock()

	r.writeStatus(snapshot)

	log.WithFields(log.Fields{"check": r.cfg.Key(), "interval": interval}).
		Info("scheduling next check attempt")
	r.timer = time.AfterFunc(interval, r.tick)
}

// Terminate requests shutdown: the pending timer is cancelled and, if no
// tick is in flight, nothing further happens. If a tick is in flight it
// observes the shutdown predicate on its next poll cycle and winds down
// within ShutdownMaxWait. If join is true, Terminate blocks until that tick
// (if any) has fully finished, matching CheckHandler.terminate's join loop.
func (r *Runner) Terminate(join bool) {
	atomic.StoreInt32(&r.shuttingDown, 1)
	r.shutdownRequestedAt.Store(time.Now())

	if r.timer != nil {
		r.timer.Stop()
	}

	if join {
		r.wg.Wait()
	}
}

func (r *Runner) isShuttingDown() bool {
	return atomic.LoadInt32(&r.shuttingDown) == 1
}

func (r *Runner) shutdownElapsed() time.Duration {
	v := r.shutdownRequestedAt.Load()
	if v == nil {
		return 0
	}
	return time.Since(v.(time.Time))
}

// tick is the timer callback: one complete attempt plus the policy
// decision for the next one, matching BaseCheck.check.
func (r *Runner) tick() {
	r.wg.Add(1)
	defer r.wg.Done()

	if r.isShuttingDown() {
		return
	}

	r.mu.Lock()
	r.status.Attempt++
	attempt := r.status.Attempt
	r.mu.Unlock()

	log.WithFields(log.Fields{"check": r.cfg.Key(), "attempt": attempt}).Info("starting check attempt")

	ctx := context.Background()
	r.runJob(ctx)

	r.mu.Lock()
	wasEscalated := r.escalated
	r.applyPolicy()
	snapshot := r.status
	nowEscalated := r.escalated
	shuttingDown := r.isShuttingDown()
	r.mu.Unlock()

	r.emitMetrics(snapshot, nowEscalated)
	r.notifyEscalation(snapshot, wasEscalated, nowEscalated)

	if shuttingDown {
		return
	}
	r.arm()
}

// runJob executes exactly one attempt: create the worker workload, poll it
// to completion (or forced finalization), retrieve logs/telemetry, delete
// the workload, and record last_check. Matches mozalert/check.py's run_job.
func (r *Runner) runJob(ctx context.Context) {
	if err := r.cluster.CreateWorkload(ctx, r.cfg); err != nil {
		log.WithError(err).WithField("check", r.cfg.Key()).Warn("failed to create worker workload")
	}

	r.mu.Lock()
	r.status.State = status.RUNNING
	r.runtime = 0
	snapshot := r.status
	r.mu.Unlock()
	r.writeStatus(snapshot)

	r.pollUntilDone(ctx)

	r.mu.Lock()
	r.status.State = status.IDLE
	r.mu.Unlock()

	logs, err := r.cluster.FetchLogs(ctx, r.cfg)
	if err != nil {
		log.WithError(err).WithField("check", r.cfg.Key()).Debug("failed to fetch logs")
	}
	cleaned, telemetry := cluster.ExtractTelemetry(logs)

	r.mu.Lock()
	r.status.Logs = cleaned
	if len(telemetry) > 0 {
		r.status.Telemetry = telemetry
	}
	r.status.LastCheck = time.Now().UTC()
	snapshot = r.status
	r.mu.Unlock()

	if err := r.cluster.DeleteWorkload(ctx, r.cfg); err != nil {
		log.WithError(err).WithField("check", r.cfg.Key()).Warn("failed to delete worker workload")
	}

	r.writeStatus(snapshot)
}

// pollUntilDone polls the worker workload at JobPollInterval until it
// succeeds, fails, times out, or a shutdown's grace window elapses,
// matching run_job's polling while-loop.
func (r *Runner) pollUntilDone(ctx context.Context) {
	for {
		time.Sleep(r.opts.JobPollInterval)

		ws, err := r.cluster.PollWorkload(ctx, r.cfg)
		if err != nil {
			log.WithError(err).WithField("check", r.cfg.Key()).Debug("failed to poll worker workload")
		}

		r.mu.Lock()
		if !ws.StartTime.IsZero() {
			r.runtime = time.Since(ws.StartTime)
		} else {
			r.runtime += r.opts.JobPollInterval
		}
		runtime := r.runtime

		switch {
		case ws.Succeeded:
			r.status.Status = status.OK
			r.status.State = status.IDLE
		case ws.Failed:
			r.status.Status = status.CRITICAL
			r.status.State = status.IDLE
		}

		timedOut := r.cfg.Timeout > 0 && runtime > r.cfg.Timeout
		shutdownExpired := r.isShuttingDown() && r.shutdownElapsed() >= r.opts.ShutdownMaxWait
		if timedOut || shutdownExpired {
			log.WithField("check", r.cfg.Key()).Warn("check attempt timed out or was force-finalized on shutdown")
			r.status.State = status.IDLE
			r.status.Status = status.CRITICAL
		}

		done := r.status.State != status.RUNNING
		r.mu.Unlock()

		if done {
			return
		}
	}
}

// applyPolicy decides the next interval and escalation state after an
// attempt completes, called with r.mu held. Matches BaseCheck.check's
// post-execution branching.
func (r *Runner) applyPolicy() {
	switch {
	case r.status.IsOK() && r.escalated:
		r.escalated = false
		r.status.Attempt = 0
		r.nextInterval = r.cfg.CheckInterval
	case r.status.IsOK():
		r.status.Attempt = 0
		r.nextInterval = r.cfg.CheckInterval
	case r.status.Attempt < r.cfg.MaxAttempts:
		r.nextInterval = r.cfg.RetryInterval
	default:
		r.escalated = true
		r.nextInterval = r.cfg.NotificationInterval
	}
}

// emitMetrics pushes this tick's measurements onto the metrics queue,
// matching MetricsMixin's metric_values.
func (r *Runner) emitMetrics(snapshot status.Status, escalated bool) {
	labels := map[string]string{
		"status":    string(snapshot.Status),
		"escalated": boolLabel(escalated),
	}

	failures := 0.0
	if snapshot.IsCritical() {
		failures = 1
	}
	escalations := 0.0
	if escalated {
		escalations = 1
	}

	values := map[string]float64{
		"check_runtime_seconds":   r.runtime.Seconds(),
		"check_failures_total":    failures,
		"check_escalations_total": escalations,
	}
	for k, v := range snapshot.Telemetry {
		values["check_telemetry_"+k] = v
	}
	r.metricsQ.PutMany(r.cfg.Name, r.cfg.Namespace, labels, values)
}

// notifyEscalation sends a recovery notification the tick that clears an
// escalated state, and a failure notification on every tick that remains
// escalated (not just the transition into it) — matching BaseCheck.check's
// non-OK/attempt>=max_attempts branch, which calls self.escalate() again on
// every subsequent failing tick at the notification_interval cadence, not
// only on the first crossing.
func (r *Runner) notifyEscalation(snapshot status.Status, wasEscalated, nowEscalated bool) {
	switch {
	case snapshot.IsOK() && wasEscalated && !nowEscalated:
		r.sendEscalation(snapshot, true)
	case nowEscalated:
		r.sendEscalation(snapshot, false)
	}
}

func (r *Runner) sendEscalation(snapshot status.Status, recovery bool) {
	if len(r.cfg.Escalations) == 0 {
		return
	}
	req := escalation.Request{Config: r.cfg, Status: snapshot, Recovery: recovery}
	for _, err := range r.escalations.EscalateAll(context.Background(), req) {
		log.WithError(err).WithField("check", r.cfg.Key()).Warn("escalation delivery failed")
	}
}

func (r *Runner) writeStatus(s status.Status) {
	if err := r.cluster.WriteStatus(context.Background(), r.cfg, s); err != nil {
		log.WithError(err).WithField("check", r.cfg.Key()).Debug("failed to write status")
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
