package cluster

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/status"
	"github.com/afrank/checkoperator/pkg/checkcrd"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// appLabel identifies the pods/jobs belonging to a given check, matching
// spec.md §6's "labeled app=<check name>" worker workload contract.
const appLabel = "app"

// runIDAnnotation tags each created Job with a fresh identifier so
// individual attempts can be told apart in logs even though the Job name
// itself is stable (cfg.Name), matching pkg/checks/external's
// tagging each run with a uuid (pkg/checks/external/main.go's uniqueID).
const runIDAnnotation = "checkoperator.afrank.dev/run-id"

// backoffLimit is fixed at zero: a worker workload never self-retries,
// since retry/escalation policy is the scheduler core's job, not the
// cluster's (spec.md §6).
const backoffLimit int32 = 0

// K8sClient is the cluster.ClusterClient backed by a real Kubernetes API
// server: batch/v1 Jobs as the worker workload, Pod logs for telemetry
// extraction, and the checks CRD's status subresource for persistence.
// Grounded on mozalert/check.py's run_job/get_job_status/get_job_logs/
// set_crd_status/delete_job methods and the typed client-go usage
// in pkg/checks/external/main.go.
type K8sClient struct {
	Kube  kubernetes.Interface
	Check *checkcrd.Client
}

// NewK8sClient wraps an existing Kubernetes clientset and checks-CRD client.
func NewK8sClient(kube kubernetes.Interface, check *checkcrd.Client) *K8sClient {
	return &K8sClient{Kube: kube, Check: check}
}

// CreateWorkload submits a Job built from cfg.WorkloadSpec. A create
// conflict (the Job already exists from a prior, interrupted attempt) is
// swallowed so the caller proceeds straight to polling.
func (k *K8sClient) CreateWorkload(ctx context.Context, cfg checkconfig.CheckConfig) error {
	job := buildJob(cfg)
	_, err := k.Kube.BatchV1().Jobs(cfg.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	log.WithFields(log.Fields{"check": cfg.Key(), "run_id": job.Annotations[runIDAnnotation]}).
		Debug("created worker workload")
	return nil
}

func buildJob(cfg checkconfig.CheckConfig) *batchv1.Job {
	tmpl := *cfg.WorkloadSpec.DeepCopy()
	if tmpl.Labels == nil {
		tmpl.Labels = map[string]string{}
	}
	tmpl.Labels[appLabel] = cfg.Name
	tmpl.Spec.RestartPolicy = corev1.RestartPolicyNever

	runID := uuid.New().String()

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        cfg.Name,
			Namespace:   cfg.Namespace,
			Labels:      map[string]string{appLabel: cfg.Name},
			Annotations: map[string]string{runIDAnnotation: runID},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: int32Ptr(backoffLimit),
			Template:     tmpl,
		},
	}
}

func int32Ptr(i int32) *int32 { return &i }

// PollWorkload reads the Job's status, mirroring get_job_status: a read
// failure (e.g. the Job vanished) is treated as failed rather than
// propagated, since the tick must still make forward progress.
func (k *K8sClient) PollWorkload(ctx context.Context, cfg checkconfig.CheckConfig) (WorkloadStatus, error) {
	job, err := k.Kube.BatchV1().Jobs(cfg.Namespace).Get(ctx, cfg.Name, metav1.GetOptions{})
	if err != nil {
		log.WithError(err).Debug("failed to read job status")
		return WorkloadStatus{Failed: true}, nil
	}

	ws := WorkloadStatus{}
	if job.Status.Active > 0 {
		ws.Active = true
	}
	if job.Status.Succeeded > 0 {
		ws.Succeeded = true
	}
	if job.Status.Failed > 0 {
		ws.Failed = true
	}
	if job.Status.StartTime != nil {
		ws.StartTime = job.Status.StartTime.Time
	}
	return ws, nil
}

// telemetryPattern extracts "TELEMETRY: key value" lines, grounded on
// mozalert/metrics/mixin.py's extract_telemetry_from_logs regex.
var telemetryPattern = regexp.MustCompile(`(?m)^TELEMETRY:\s*(\w+)\s*(\d+)[^0-9]*$`)

// FetchLogs reads and concatenates logs from every pod labeled for this
// check, returning the raw text (telemetry lines included; see
// ExtractTelemetry), mirroring get_job_logs.
func (k *K8sClient) FetchLogs(ctx context.Context, cfg checkconfig.CheckConfig) (string, error) {
	pods, err := k.Kube.CoreV1().Pods(cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", appLabel, cfg.Name),
	})
	if err != nil {
		log.WithError(err).Debug("failed to list pods for log retrieval")
		return "", nil
	}

	var logs strings.Builder
	for _, pod := range pods.Items {
		req := k.Kube.CoreV1().Pods(cfg.Namespace).GetLogs(pod.Name, &corev1.PodLogOptions{})
		stream, err := req.Stream(ctx)
		if err != nil {
			log.WithError(err).Debug("failed to stream pod logs")
			continue
		}
		buf := make([]byte, 4096)
		for {
			n, readErr := stream.Read(buf)
			if n > 0 {
				logs.Write(buf[:n])
			}
			if readErr != nil {
				break
			}
		}
		stream.Close()
	}

	return logs.String(), nil
}

// ExtractTelemetry parses "TELEMETRY: key value" lines out of raw log text,
// returning the text with those lines stripped and the parsed key/float
// map, mirroring mozalert/metrics/mixin.py's
// extract_telemetry_from_logs(logs) -> (logs, telemetry). The runner calls
// this on the text FetchLogs returns; ClusterClient itself stays a thin,
// telemetry-agnostic transport.
func ExtractTelemetry(raw string) (string, map[string]float64) {
	telemetry := map[string]float64{}
	matches := telemetryPattern.FindAllStringSubmatch(raw, -1)
	for _, m := range matches {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			telemetry[m[1]] = v
		}
	}
	cleaned := telemetryPattern.ReplaceAllString(raw, "")
	return strings.TrimSpace(cleaned), telemetry
}

// DeleteWorkload removes the Job with foreground propagation and zero
// grace, matching check.py's delete_job. A not-found error is not an error
// here: the workload may already be gone.
func (k *K8sClient) DeleteWorkload(ctx context.Context, cfg checkconfig.CheckConfig) error {
	grace := int64(0)
	policy := metav1.DeletePropagationForeground
	err := k.Kube.BatchV1().Jobs(cfg.Namespace).Delete(ctx, cfg.Name, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
		PropagationPolicy:  &policy,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	return nil
}

// WriteStatus replaces the status subresource of the check resource,
// matching set_crd_status. A failure here is logged, not propagated: the
// runner continues its schedule rather than dying over a transient
// apiserver error (spec.md §4.4's failure-semantics note).
func (k *K8sClient) WriteStatus(ctx context.Context, cfg checkconfig.CheckConfig, s status.Status) error {
	wire := s.ToWire()
	check := checkcrd.Check{
		ObjectMeta: objectMetaFor(cfg),
		Status: checkcrd.CheckStatusSpec{
			Status:    wire.Status,
			State:     wire.State,
			Attempt:   wire.Attempt,
			LastCheck: wire.LastCheck,
			NextCheck: wire.NextCheck,
			Logs:      wire.Logs,
			Telemetry: wire.Telemetry,
			Message:   wire.Message,
		},
	}
	_, err := k.Check.UpdateStatus(ctx, &check, cfg.Namespace)
	if err != nil {
		log.WithError(err).WithField("check", cfg.Key()).Debug("failed to write check status")
	}
	return nil
}

func objectMetaFor(cfg checkconfig.CheckConfig) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: cfg.Name, Namespace: cfg.Namespace}
}

// List returns every check resource cluster-wide paired with its persisted
// status, backing HealthMonitor's periodic sanity audit.
func (k *K8sClient) List(ctx context.Context) ([]ListedCheck, error) {
	list, err := k.Check.List(ctx, metav1.ListOptions{}, metav1.NamespaceAll)
	if err != nil {
		return nil, err
	}

	out := make([]ListedCheck, 0, len(list.Items))
	for i := range list.Items {
		c := &list.Items[i]
		out = append(out, ListedCheck{
			Config: configFromCheck(c),
			Status: status.FromWire(status.Wire{
				Status:    c.Status.Status,
				State:     c.Status.State,
				Attempt:   c.Status.Attempt,
				LastCheck: c.Status.LastCheck,
				NextCheck: c.Status.NextCheck,
				Logs:      c.Status.Logs,
				Telemetry: c.Status.Telemetry,
				Message:   c.Status.Message,
			}),
		})
	}
	return out, nil
}

func configFromCheck(c *checkcrd.Check) checkconfig.CheckConfig {
	return checkconfig.CheckConfig{Name: c.Name, Namespace: c.Namespace}
}
