package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/afrank/checkoperator/internal/checkconfig"

	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func testConfig() checkconfig.CheckConfig {
	return checkconfig.CheckConfig{
		Name: "db-ping", Namespace: "prod",
		WorkloadSpec: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "c", Image: "alpine"}}},
		},
	}
}

func TestCreateWorkloadCreatesJob(t *testing.T) {
	kube := fake.NewSimpleClientset()
	k := NewK8sClient(kube, nil)
	cfg := testConfig()

	err := k.CreateWorkload(context.Background(), cfg)
	require.NoError(t, err)

	job, err := kube.BatchV1().Jobs(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "db-ping", job.Name)
}

func TestCreateWorkloadSwallowsAlreadyExists(t *testing.T) {
	kube := fake.NewSimpleClientset()
	k := NewK8sClient(kube, nil)
	cfg := testConfig()

	require.NoError(t, k.CreateWorkload(context.Background(), cfg))
	err := k.CreateWorkload(context.Background(), cfg)
	require.NoError(t, err)
}

func TestPollWorkloadReadsJobStatus(t *testing.T) {
	kube := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "db-ping", Namespace: "prod"},
		Status:     batchv1.JobStatus{Succeeded: 1, StartTime: &metav1.Time{Time: time.Now()}},
	})
	k := NewK8sClient(kube, nil)

	ws, err := k.PollWorkload(context.Background(), testConfig())
	require.NoError(t, err)
	require.True(t, ws.Succeeded)
	require.False(t, ws.Failed)
}

func TestPollWorkloadMissingJobReportsFailed(t *testing.T) {
	kube := fake.NewSimpleClientset()
	k := NewK8sClient(kube, nil)

	ws, err := k.PollWorkload(context.Background(), testConfig())
	require.NoError(t, err)
	require.True(t, ws.Failed)
}

func TestDeleteWorkloadSwallowsNotFound(t *testing.T) {
	kube := fake.NewSimpleClientset()
	k := NewK8sClient(kube, nil)

	err := k.DeleteWorkload(context.Background(), testConfig())
	require.NoError(t, err)
}

func TestDeleteWorkloadRemovesJob(t *testing.T) {
	kube := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "db-ping", Namespace: "prod"},
	})
	k := NewK8sClient(kube, nil)

	err := k.DeleteWorkload(context.Background(), testConfig())
	require.NoError(t, err)

	_, err = kube.BatchV1().Jobs("prod").Get(context.Background(), "db-ping", metav1.GetOptions{})
	require.Error(t, err)
}

func TestFetchLogsReturnsEmptyWhenNoPodsMatch(t *testing.T) {
	kube := fake.NewSimpleClientset()
	k := NewK8sClient(kube, nil)

	logs, err := k.FetchLogs(context.Background(), testConfig())
	require.NoError(t, err)
	require.Empty(t, logs)
}
