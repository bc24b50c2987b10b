// Package controller implements the supervisor that starts, restarts, and
// joins the long-running workers — Watcher, CheckHandler, the metrics
// consumer, and HealthMonitor — grounded on mozalert/controller.py's
// Controller and its new_thread/restart_thread pattern.
package controller

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/afrank/checkoperator/internal/handler"
	"github.com/afrank/checkoperator/internal/healthmonitor"
	"github.com/afrank/checkoperator/internal/metrics"
	"github.com/afrank/checkoperator/internal/watcher"

	log "github.com/sirupsen/logrus"
)

// livenessPollInterval is how often the supervisor checks for a worker
// that exited unexpectedly, matching Controller.run's sleep(2).
const livenessPollInterval = 2 * time.Second

// worker is one supervised long-running task.
type worker struct {
	name string
	run  func(stop <-chan struct{})
	done chan struct{}
}

// Controller owns every long-running task and the shared shutdown signal
// they all observe, matching mozalert/controller.py's Controller.
type Controller struct {
	Watcher     *watcher.Watcher
	Handler     *handler.Handler
	Monitor     *healthmonitor.Monitor
	MetricsQ    *metrics.Queue
	MetricsSink metrics.Sink

	stop    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New builds a Controller around its four workers.
func New(w *watcher.Watcher, h *handler.Handler, m *healthmonitor.Monitor, q *metrics.Queue, sink metrics.Sink) *Controller {
	return &Controller{
		Watcher:     w,
		Handler:     h,
		Monitor:     m,
		MetricsQ:    q,
		MetricsSink: sink,
		stop:        make(chan struct{}),
	}
}

// Shutdown flips the shared shutdown flag once. Safe to call more than
// once or concurrently.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.stop)
	}
}

// Run starts every worker, restarts any that exits unexpectedly (except
// CheckHandler after a fatal ERROR event, which ends the run), and blocks
// until SIGINT/SIGTERM or handler.Fatal fires and every worker has joined.
// Matches Controller.run's main supervision loop.
func (c *Controller) Run() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	specs := map[string]func(stop <-chan struct{}){
		"watcher":        c.Watcher.Run,
		"check-handler":  c.Handler.Run,
		"metrics-worker": c.runMetricsConsumer,
		"health-monitor": c.Monitor.Run,
	}

	workers := map[string]*worker{}
	for name, fn := range specs {
		workers[name] = c.start(name, fn)
	}

	ticker := time.NewTicker(livenessPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			log.Info("received shutdown signal, stopping controller")
			c.Shutdown()
			c.joinAll(workers)
			return

		case <-c.Handler.Fatal:
			log.Error("check handler died from a fatal event, stopping controller")
			c.Shutdown()
			c.joinAll(workers)
			return

		case <-ticker.C:
			c.mu.Lock()
			stopped := c.stopped
			c.mu.Unlock()
			if stopped {
				c.joinAll(workers)
				return
			}
			for name, w := range workers {
				select {
				case <-w.done:
					log.WithField("worker", name).Error("worker was not running, restarting")
					workers[name] = c.start(name, specs[name])
				default:
				}
			}
		}
	}
}

func (c *Controller) start(name string, fn func(stop <-chan struct{})) *worker {
	w := &worker{name: name, run: fn, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		fn(c.stop)
	}()
	return w
}

func (c *Controller) joinAll(workers map[string]*worker) {
	for _, w := range workers {
		<-w.done
	}
	log.Info("controller shut down")
}

func (c *Controller) runMetricsConsumer(stop <-chan struct{}) {
	metrics.Consume(c.MetricsQ, c.MetricsSink, stop)
}
