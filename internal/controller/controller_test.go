package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShutdownIsIdempotent(t *testing.T) {
	c := &Controller{stop: make(chan struct{})}
	require.NotPanics(t, func() {
		c.Shutdown()
		c.Shutdown()
	})
	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}
}

func TestStartRunsFnAndClosesDoneWhenFnReturns(t *testing.T) {
	c := &Controller{stop: make(chan struct{})}
	ran := make(chan struct{})

	w := c.start("worker", func(stop <-chan struct{}) {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fn was never invoked")
	}
	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("done was never closed after fn returned")
	}
}

func TestStartPassesControllerStopToWorker(t *testing.T) {
	c := &Controller{stop: make(chan struct{})}
	observed := make(chan (<-chan struct{}), 1)

	w := c.start("worker", func(stop <-chan struct{}) {
		observed <- stop
	})
	<-w.done

	select {
	case got := <-observed:
		require.Equal(t, (<-chan struct{})(c.stop), got)
	default:
		t.Fatal("fn was never called with a stop channel")
	}
}

func TestJoinAllWaitsForEveryWorker(t *testing.T) {
	c := &Controller{stop: make(chan struct{})}

	slow := make(chan struct{})
	w1 := c.start("one", func(stop <-chan struct{}) { <-slow })
	w2 := c.start("two", func(stop <-chan struct{}) {})

	joined := make(chan struct{})
	go func() {
		c.joinAll(map[string]*worker{"one": w1, "two": w2})
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("joinAll returned before the slow worker finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(slow)
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("joinAll did not return after all workers finished")
	}
}
