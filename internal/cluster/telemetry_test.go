package cluster

import (
	"testing"

	"github.com/afrank/checkoperator/internal/checkconfig"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
)

func TestExtractTelemetryParsesAndStrips(t *testing.T) {
	raw := "starting check\nTELEMETRY: latency_ms 42\nall good\nTELEMETRY: retries 3\n"
	cleaned, telemetry := ExtractTelemetry(raw)

	require.Equal(t, map[string]float64{"latency_ms": 42, "retries": 3}, telemetry)
	require.NotContains(t, cleaned, "TELEMETRY")
	require.Contains(t, cleaned, "starting check")
	require.Contains(t, cleaned, "all good")
}

func TestExtractTelemetryNoMatchesReturnsEmptyMap(t *testing.T) {
	cleaned, telemetry := ExtractTelemetry("plain text, nothing special")
	require.Empty(t, telemetry)
	require.Equal(t, "plain text, nothing special", cleaned)
}

func TestBuildJobLabelsAndForcesRestartNever(t *testing.T) {
	cfg := checkconfig.CheckConfig{
		Name: "db-ping", Namespace: "prod",
		WorkloadSpec: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{
				RestartPolicy: corev1.RestartPolicyAlways,
				Containers:    []corev1.Container{{Name: "c", Image: "alpine"}},
			},
		},
	}

	job := buildJob(cfg)

	require.Equal(t, "db-ping", job.Name)
	require.Equal(t, "prod", job.Namespace)
	require.Equal(t, "db-ping", job.Labels[appLabel])
	require.Equal(t, "db-ping", job.Spec.Template.Labels[appLabel])
	require.Equal(t, corev1.RestartPolicyNever, job.Spec.Template.Spec.RestartPolicy)
	require.NotNil(t, job.Spec.BackoffLimit)
	require.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.NotEmpty(t, job.Annotations[runIDAnnotation])
}

func TestBuildJobAssignsADistinctRunIDEachCall(t *testing.T) {
	cfg := checkconfig.CheckConfig{
		Name: "db-ping", Namespace: "prod",
		WorkloadSpec: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "c", Image: "alpine"}}},
		},
	}

	first := buildJob(cfg)
	second := buildJob(cfg)
	require.NotEqual(t, first.Annotations[runIDAnnotation], second.Annotations[runIDAnnotation])
}

func TestBuildJobDoesNotMutateCallerWorkloadSpec(t *testing.T) {
	cfg := checkconfig.CheckConfig{
		Name: "x", Namespace: "y",
		WorkloadSpec: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{RestartPolicy: corev1.RestartPolicyAlways},
		},
	}
	_ = buildJob(cfg)
	require.Equal(t, corev1.RestartPolicyAlways, cfg.WorkloadSpec.Spec.RestartPolicy)
}
