// Package watcher implements the single long-running task that streams
// check-resource events into an EventQueue, grounded on
// mozalert/events/handler.py's EventHandler and the use of
// cenkalti/backoff for bounded exponential reconnect delays
// (pkg/checkclient/checkclient.go).
package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/afrank/checkoperator/internal/event"
	"github.com/afrank/checkoperator/internal/eventqueue"
	"github.com/afrank/checkoperator/pkg/checkcrd"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
)

// defaultStreamWatchTimeout bounds how long a single watch stream runs before
// the server closes it and the Watcher must re-watch, matching
// EventHandler's stream_watch_timeout default of 5s in the original (here
// widened to a more realistic production value; see Options).
const defaultStreamWatchTimeout = 5 * time.Minute

// maxReconnectBackoff bounds the exponential delay between reconnect
// attempts, matching spec.md §4.3's "exponential backoff bounded at 30 s".
const maxReconnectBackoff = 30 * time.Second

// errWatchError is returned by streamOnce after it has enqueued an ERROR event.
var errWatchError = errors.New("watch stream reported an ERROR event")

// Options configures the watcher's operational knobs.
type Options struct {
	StreamWatchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.StreamWatchTimeout <= 0 {
		o.StreamWatchTimeout = defaultStreamWatchTimeout
	}
	return o
}

// Watcher streams Check resource events cluster-wide into an
// eventqueue.Queue, always resuming from the last observed resourceVersion
// and reconnecting with bounded exponential backoff on stream end or
// transport error (spec.md §4.3).
type Watcher struct {
	client *checkcrd.Client
	queue  *eventqueue.Queue
	opts   Options
}

// New constructs a Watcher over client, enqueuing decoded events onto q.
func New(client *checkcrd.Client, q *eventqueue.Queue, opts Options) *Watcher {
	return &Watcher{client: client, queue: q, opts: opts.withDefaults()}
}

// Run streams events until stop is closed. It never returns early on a
// transport error; it only returns when stop fires or a watch.Error event
// is decoded (the caller, normally Handler via the enqueued ERROR event,
// decides how to react).
func (w *Watcher) Run(stop <-chan struct{}) {
	log.Info("watcher starting, waiting for events")

	resourceVersion := ""
	backoffPolicy := newReconnectBackoff()

	for {
		select {
		case <-stop:
			return
		default:
		}

		ctx, cancel := context.WithCancel(context.Background())
		stopWatching := make(chan struct{})
		go func() {
			select {
			case <-stop:
				cancel()
			case <-stopWatching:
			}
		}()

		lastSeenVersion, streamErr := w.streamOnce(ctx, resourceVersion)
		close(stopWatching)
		cancel()

		if lastSeenVersion != "" {
			resourceVersion = lastSeenVersion
		}

		if streamErr == errWatchError {
			return
		}

		select {
		case <-stop:
			return
		default:
		}

		if streamErr != nil {
			delay := backoffPolicy.NextBackOff()
			log.WithError(streamErr).WithField("retry_in", delay).Warn("watch stream ended, reconnecting")
			time.Sleep(delay)
			continue
		}

		backoffPolicy.Reset()
	}
}

// streamOnce opens a single watch from resourceVersion (no separate list
// call is made) and enqueues every event, returning the last resourceVersion
// observed so the caller can resume from it, matching EventHandler.run's
// inner for-loop. After enqueuing an ERROR event it returns errWatchError.
func (w *Watcher) streamOnce(ctx context.Context, resourceVersion string) (string, error) {
	opts := metav1.ListOptions{
		ResourceVersion: resourceVersion,
		TimeoutSeconds:  int64Ptr(int64(w.opts.StreamWatchTimeout.Seconds())),
	}

	stream, err := w.client.Watch(ctx, opts, metav1.NamespaceAll)
	if err != nil {
		return resourceVersion, err
	}
	defer stream.Stop()

	lastVersion := resourceVersion
	for we := range stream.ResultChan() {
		evt := event.FromWatchEvent(we)

		if evt.ResourceVersion != "" {
			lastVersion = evt.ResourceVersion
		}

		if evt.Kind == event.ERROR {
			log.Warn("watch stream reported an ERROR event")
			w.queue.Put(evt)
			return lastVersion, errWatchError
		}

		if we.Type == watch.Bookmark {
			continue
		}

		w.queue.Put(evt)
	}

	return lastVersion, nil
}

func newReconnectBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = maxReconnectBackoff
	b.MaxElapsedTime = 0 // never give up; the watcher runs for the life of the process
	return b
}

func int64Ptr(i int64) *int64 { return &i }
