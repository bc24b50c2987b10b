// Package handler implements CheckHandler, the single consumer of decoded
// events that owns the live set of CheckRunners, grounded on
// mozalert/checks/handler.py.
package handler

import (
	"sync"
	"time"

	"github.com/afrank/checkoperator/internal/cluster"
	"github.com/afrank/checkoperator/internal/escalation"
	"github.com/afrank/checkoperator/internal/event"
	"github.com/afrank/checkoperator/internal/eventqueue"
	"github.com/afrank/checkoperator/internal/metrics"
	"github.com/afrank/checkoperator/internal/runner"
	"github.com/afrank/checkoperator/internal/status"

	log "github.com/sirupsen/logrus"
)

// getTimeout bounds how long Run waits on an empty EventQueue before
// re-checking its stop channel, mirroring EventQueue.get's default timeout.
const getTimeout = 3 * time.Second

// Handler owns map<key, *runner.Runner> and is the sole consumer of an
// eventqueue.Queue, matching CheckHandler's single-threaded run loop.
type Handler struct {
	queue       *eventqueue.Queue
	cluster     cluster.ClusterClient
	escalations *escalation.Registry
	metricsQ    *metrics.Queue
	opts        runner.Options

	mu     sync.Mutex
	checks map[string]*runner.Runner

	// Fatal is closed when an ERROR event is received, signaling the
	// Controller that this worker died for a reason that should not be
	// auto-restarted silently (spec.md §4.7).
	Fatal chan struct{}
}

// New constructs a Handler draining q.
func New(q *eventqueue.Queue, cc cluster.ClusterClient, escalations *escalation.Registry, metricsQ *metrics.Queue, opts runner.Options) *Handler {
	return &Handler{
		queue:       q,
		cluster:     cc,
		escalations: escalations,
		metricsQ:    metricsQ,
		opts:        opts,
		checks:      map[string]*runner.Runner{},
		Fatal:       make(chan struct{}),
	}
}

// Run drains the queue until stop is closed, dispatching each event per
// spec.md §4.5. It always terminates every runner before returning,
// matching CheckHandler.run's trailing self.terminate() call.
func (h *Handler) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.terminateAll()
			return
		default:
		}

		evt, ok := h.queue.Get(getTimeout)
		if !ok {
			continue
		}

		switch evt.Kind {
		case event.ERROR:
			log.Error("received ERROR event, shutting down check handler")
			h.terminateAll()
			close(h.Fatal)
			return
		case event.BADEVENT:
			log.Warn("received unexpected event kind, dropping")
		case event.ADDED:
			h.handleAdded(evt)
		case event.DELETED:
			h.handleDeleted(evt)
		case event.MODIFIED:
			h.handleModified(evt)
		}
	}
}

func (h *Handler) handleAdded(evt event.Event) {
	key := evt.Config.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.checks[key]; ok {
		log.WithField("check", key).Warn("ADDED for an already-tracked check, replacing")
		existing.Terminate(false)
	}

	log.WithField("check", key).Info("creating check runner")
	h.checks[key] = h.newRunner(evt)
}

func (h *Handler) handleDeleted(evt event.Event) {
	h.killCheck(evt.Config.Key())
}

func (h *Handler) handleModified(evt event.Event) {
	key := evt.Config.Key()

	h.mu.Lock()
	existing, ok := h.checks[key]
	h.mu.Unlock()

	if !ok {
		log.WithField("check", key).Warn("MODIFIED for an untracked check, creating")
		h.mu.Lock()
		h.checks[key] = h.newRunner(evt)
		h.mu.Unlock()
		return
	}

	// Compare structurally to distinguish a genuine user edit from a
	// status-subresource echo of our own write-back (spec.md §4.5, and the
	// original's note that patching the status subresource unexpectedly
	// also triggers a MODIFIED event).
	if existing.Config().Equal(evt.Config) {
		log.WithField("check", key).Debug("status echo detected, ignoring")
		return
	}

	log.WithField("check", key).Info("config change detected, recreating check runner")
	h.mu.Lock()
	existing.Terminate(false)
	h.checks[key] = h.newRunner(evt)
	h.mu.Unlock()
}

func (h *Handler) newRunner(evt event.Event) *runner.Runner {
	var pre *status.Status
	if evt.Status.Status != "" || !evt.Status.NextCheck.IsZero() {
		s := evt.Status
		pre = &s
	}
	return runner.New(evt.Config, h.cluster, h.escalations, h.metricsQ, pre, h.opts)
}

// killCheck terminates and forgets a single runner, matching kill_check.
func (h *Handler) killCheck(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.checks[key]
	if !ok {
		log.WithField("check", key).Warn("not found in checks")
		return
	}
	r.Terminate(false)
	delete(h.checks, key)
}

// terminateAll terminates and joins every runner, matching
// CheckHandler.terminate.
func (h *Handler) terminateAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Info("shutting down checks")
	for _, r := range h.checks {
		r.Terminate(false)
	}
	for _, r := range h.checks {
		r.Terminate(true)
	}
	h.checks = map[string]*runner.Runner{}
	log.Info("finished shutting down checks")
}

// Len reports how many runners are currently tracked, useful for tests and
// health reporting.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.checks)
}
