package healthmonitor

import (
	"context"
	"testing"
	"time"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/cluster"
	"github.com/afrank/checkoperator/internal/status"

	"github.com/stretchr/testify/require"
)

type listingCluster struct {
	listed []cluster.ListedCheck
	err    error
}

func (l *listingCluster) CreateWorkload(context.Context, checkconfig.CheckConfig) error { return nil }
func (l *listingCluster) PollWorkload(context.Context, checkconfig.CheckConfig) (cluster.WorkloadStatus, error) {
	return cluster.WorkloadStatus{}, nil
}
func (l *listingCluster) FetchLogs(context.Context, checkconfig.CheckConfig) (string, error) {
	return "", nil
}
func (l *listingCluster) DeleteWorkload(context.Context, checkconfig.CheckConfig) error { return nil }
func (l *listingCluster) WriteStatus(context.Context, checkconfig.CheckConfig, status.Status) error {
	return nil
}
func (l *listingCluster) List(context.Context) ([]cluster.ListedCheck, error) {
	return l.listed, l.err
}

func checkNamed(name string, st status.Status) cluster.ListedCheck {
	return cluster.ListedCheck{Config: checkconfig.CheckConfig{Name: name, Namespace: "prod"}, Status: st}
}

func TestAuditOnceCountsStaleNonRunningCheckAsFailed(t *testing.T) {
	lc := &listingCluster{listed: []cluster.ListedCheck{
		checkNamed("db-ping", status.Status{NextCheck: time.Now().Add(-time.Hour), State: status.IDLE}),
	}}
	m := New(lc, Options{})

	m.auditOnce()
	require.Equal(t, 1, m.sequentialFailedRuns) // FailedThreshold defaults to 0, so one failure counts the run as failing
}

func TestAuditOnceIgnoresRunningCheckEvenIfNextCheckIsPast(t *testing.T) {
	lc := &listingCluster{listed: []cluster.ListedCheck{
		checkNamed("db-ping", status.Status{NextCheck: time.Now().Add(-time.Hour), State: status.RUNNING}),
	}}
	m := New(lc, Options{})

	m.auditOnce()
	require.Equal(t, 0, m.sequentialFailedRuns)
}

func TestAuditOnceAccumulatesSequentialFailuresAcrossRuns(t *testing.T) {
	lc := &listingCluster{listed: []cluster.ListedCheck{
		checkNamed("db-ping", status.Status{NextCheck: time.Now().Add(-time.Hour), State: status.IDLE}),
	}}
	m := New(lc, Options{FailedThreshold: -1}) // any failed count > -1 trips every run

	m.auditOnce()
	require.Equal(t, 1, m.sequentialFailedRuns)
	m.auditOnce()
	require.Equal(t, 2, m.sequentialFailedRuns)
}

func TestAuditOnceResetsSequentialFailuresAfterAHealthyRun(t *testing.T) {
	m := New(&listingCluster{listed: []cluster.ListedCheck{
		checkNamed("db-ping", status.Status{NextCheck: time.Now().Add(-time.Hour), State: status.IDLE}),
	}}, Options{})
	m.auditOnce()
	require.Equal(t, 1, m.sequentialFailedRuns)

	m.cluster = &listingCluster{listed: []cluster.ListedCheck{
		checkNamed("db-ping", status.Status{NextCheck: time.Now().Add(time.Hour), State: status.IDLE}),
	}}
	m.auditOnce()
	require.Equal(t, 0, m.sequentialFailedRuns)
}

func TestAuditOnceHandlesListErrorWithoutPanicking(t *testing.T) {
	m := New(&listingCluster{err: context.DeadlineExceeded}, Options{})
	require.NotPanics(t, func() { m.auditOnce() })
}

func TestRunStopsOnStopChannel(t *testing.T) {
	m := New(&listingCluster{}, Options{Interval: 5 * time.Millisecond})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.Run(stop)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
}
