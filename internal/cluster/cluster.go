// Package cluster defines the thin external-collaborator boundary the core
// engine uses to talk to the control plane: launching and observing worker
// workloads and persisting status. Everything in CheckRunner/CheckHandler/
// HealthMonitor is written against the ClusterClient interface so the
// scheduler core stays free of client-go wiring.
package cluster

import (
	"context"
	"time"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/status"
)

// WorkloadStatus is a point-in-time read of the ephemeral worker workload
// backing one check's attempt, mirroring mozalert check.py's get_job_status
// SimpleNamespace(active, succeeded, failed, start_time).
type WorkloadStatus struct {
	Active    bool
	Succeeded bool
	Failed    bool
	StartTime time.Time
}

// ListedCheck is a single entry returned by List, pairing a check's config
// with its last-persisted status for HealthMonitor's sanity audit.
type ListedCheck struct {
	Config checkconfig.CheckConfig
	Status status.Status
}

// ClusterClient is the capability the scheduler core requires from the
// cluster: create/observe/delete a worker workload, read its logs, persist
// status, and list all checks for the health audit. ErrAlreadyExists from
// CreateWorkload is not an error the core needs to see — implementations
// swallow a create-conflict and let the caller proceed to polling, per
// spec.md §4.4 step 1 (mirroring run_job's ApiException Conflict handling).
type ClusterClient interface {
	CreateWorkload(ctx context.Context, cfg checkconfig.CheckConfig) error
	PollWorkload(ctx context.Context, cfg checkconfig.CheckConfig) (WorkloadStatus, error)
	FetchLogs(ctx context.Context, cfg checkconfig.CheckConfig) (string, error)
	DeleteWorkload(ctx context.Context, cfg checkconfig.CheckConfig) error
	WriteStatus(ctx context.Context, cfg checkconfig.CheckConfig, s status.Status) error
	List(ctx context.Context) ([]ListedCheck, error)
}
