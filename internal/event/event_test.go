package event

import (
	"testing"
	"time"

	"github.com/afrank/checkoperator/pkg/checkcrd"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
)

func TestParseDurationEmpty(t *testing.T) {
	require.Equal(t, time.Duration(0), ParseDuration(""))
}

func TestParseDurationBareNumberIsMinutes(t *testing.T) {
	require.Equal(t, 5*time.Minute, ParseDuration("5"))
	require.Equal(t, 90*time.Second, ParseDuration("1.5"))
}

func TestParseDurationCompactForm(t *testing.T) {
	require.Equal(t, time.Hour+30*time.Minute, ParseDuration("1h30m"))
	require.Equal(t, 45*time.Second, ParseDuration("45s"))
	require.Equal(t, 2*time.Hour+15*time.Second, ParseDuration("2h15s"))
}

func TestParseDurationUnparsableIsZero(t *testing.T) {
	require.Equal(t, time.Duration(0), ParseDuration("garbage!!"))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "ADDED", ADDED.String())
	require.Equal(t, "MODIFIED", MODIFIED.String())
	require.Equal(t, "DELETED", DELETED.String())
	require.Equal(t, "ERROR", ERROR.String())
	require.Equal(t, "BADEVENT", BADEVENT.String())
}

func TestFromWatchEventBadEventForNonCheckObject(t *testing.T) {
	we := watch.Event{Type: watch.Added, Object: &metav1.Status{}}
	evt := FromWatchEvent(we)
	require.Equal(t, BADEVENT, evt.Kind)
}

func TestFromWatchEventErrorSkipsConfigDecoding(t *testing.T) {
	check := &checkcrd.Check{}
	check.ResourceVersion = "42"
	we := watch.Event{Type: watch.Error, Object: check}
	evt := FromWatchEvent(we)
	require.Equal(t, ERROR, evt.Kind)
	require.Equal(t, "42", evt.ResourceVersion)
}

func TestFromWatchEventDecodesConfigAndStatus(t *testing.T) {
	check := &checkcrd.Check{
		Spec: checkcrd.CheckSpec{
			CheckInterval: "1m",
			MaxAttempts:   3,
			Image:         "alpine",
			CheckURL:      "http://example.com/health",
		},
		Status: checkcrd.CheckStatusSpec{
			Status: "OK",
			State:  "IDLE",
		},
	}
	check.Name = "db-ping"
	check.Namespace = "prod"
	check.ResourceVersion = "7"

	evt := FromWatchEvent(watch.Event{Type: watch.Added, Object: check})

	require.Equal(t, ADDED, evt.Kind)
	require.Equal(t, "7", evt.ResourceVersion)
	require.Equal(t, "db-ping", evt.Config.Name)
	require.Equal(t, "prod", evt.Config.Namespace)
	require.Equal(t, time.Minute, evt.Config.CheckInterval)
	require.Equal(t, 5*time.Minute, evt.Config.Timeout) // defaulted
	require.Len(t, evt.Config.WorkloadSpec.Spec.Containers, 1)
	require.Equal(t, []string{"http://example.com/health"}, evt.Config.WorkloadSpec.Spec.Containers[0].Args)
	require.Equal(t, "OK", string(evt.Status.Status))
}

func TestFromWatchEventUsesExplicitTemplateOverConvenienceFields(t *testing.T) {
	template := corev1.PodTemplateSpec{
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "explicit", Image: "explicit:v1"}},
		},
	}
	check := &checkcrd.Check{
		Spec: checkcrd.CheckSpec{
			Image:    "ignored",
			Template: &template,
		},
	}
	check.Name = "x"
	check.Namespace = "y"

	evt := FromWatchEvent(watch.Event{Type: watch.Added, Object: check})

	require.Len(t, evt.Config.WorkloadSpec.Spec.Containers, 1)
	require.Equal(t, "explicit", evt.Config.WorkloadSpec.Spec.Containers[0].Name)
	require.Equal(t, "explicit:v1", evt.Config.WorkloadSpec.Spec.Containers[0].Image)
}
