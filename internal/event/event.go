// Package event decodes a raw watch.Event over the checks CRD into the
// typed Kind/CheckConfig/status pair the rest of the engine consumes,
// grounded on the original mozalert/event.py Event class.
package event

import (
	"regexp"
	"strconv"
	"time"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/status"
	"github.com/afrank/checkoperator/pkg/checkcrd"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/watch"
)

// Kind mirrors mozalert's EventType: the operations the controller supports,
// plus the ERROR/BADEVENT sentinels for a watch stream failure or an object
// the decoder could not make sense of.
type Kind int

const (
	ADDED Kind = iota
	MODIFIED
	DELETED
	ERROR
	BADEVENT
)

func (k Kind) String() string {
	switch k {
	case ADDED:
		return "ADDED"
	case MODIFIED:
		return "MODIFIED"
	case DELETED:
		return "DELETED"
	case ERROR:
		return "ERROR"
	default:
		return "BADEVENT"
	}
}

func kindFromWatch(t watch.EventType) Kind {
	switch t {
	case watch.Added:
		return ADDED
	case watch.Modified:
		return MODIFIED
	case watch.Deleted:
		return DELETED
	case watch.Error:
		return ERROR
	default:
		return BADEVENT
	}
}

// Event is a single decoded watch notification: what happened, to which
// check, carrying both its desired configuration and its last-known status
// (so CheckHandler can seed a new CheckRunner without a second round trip).
type Event struct {
	Kind            Kind
	ResourceVersion string
	Config          checkconfig.CheckConfig
	Status          status.Status
}

func (e Event) String() string {
	return e.Config.Namespace + "/" + e.Config.Name
}

// durationRegexp parses the compact [NNh][NNm][NNs] form, grounded exactly
// on mozalert/event.py's parse_time regex.
var durationRegexp = regexp.MustCompile(`(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?`)

// ParseDuration parses a duration string that is either a bare number
// (interpreted as minutes, matching mozalert's float(time_str) branch) or a
// compact [NNh][NNm][NNs] string. An empty or unparseable string returns 0,
// matching parse_time's fallback to timedelta(minutes=0).
func ParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	if minutes, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(minutes * float64(time.Minute))
	}
	m := durationRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var d time.Duration
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		d += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		mi, _ := strconv.Atoi(m[2])
		d += time.Duration(mi) * time.Minute
	}
	if m[3] != "" {
		sec, _ := strconv.Atoi(m[3])
		d += time.Duration(sec) * time.Second
	}
	return d
}

// FromWatchEvent decodes a raw watch.Event carrying a *checkcrd.Check into
// an Event. A watch.Error yields an ERROR Event whatever its object (e.g.
// *metav1.Status); any other non-Check object yields a BADEVENT Event. Both
// carry a zero-value Config.
func FromWatchEvent(we watch.Event) Event {
	kind := kindFromWatch(we.Type)

	check, ok := we.Object.(*checkcrd.Check)
	if kind == ERROR {
		evt := Event{Kind: ERROR}
		if ok {
			evt.ResourceVersion = check.ResourceVersion
		}
		return evt
	}
	if !ok {
		return Event{Kind: BADEVENT}
	}

	cfg := configFromSpec(check)
	return Event{
		Kind:            kind,
		ResourceVersion: check.ResourceVersion,
		Config:          cfg,
		Status:          status.FromWire(statusWire(check)),
	}
}

func statusWire(check *checkcrd.Check) status.Wire {
	return status.Wire{
		Status:    check.Status.Status,
		State:     check.Status.State,
		Attempt:   check.Status.Attempt,
		LastCheck: check.Status.LastCheck,
		NextCheck: check.Status.NextCheck,
		Logs:      check.Status.Logs,
		Telemetry: check.Status.Telemetry,
		Message:   check.Status.Message,
	}
}

// configFromSpec builds a normalized CheckConfig from a Check's wire spec,
// synthesizing a pod template from the convenience fields when one isn't
// supplied directly, mirroring Event.__init__ + CheckConfig.build_pod_spec.
func configFromSpec(check *checkcrd.Check) checkconfig.CheckConfig {
	spec := check.Spec

	escalations := make([]checkconfig.Escalation, 0, len(spec.Escalations))
	for _, e := range spec.Escalations {
		escalations = append(escalations, checkconfig.Escalation{Type: e.Type, Args: e.Args})
	}

	timeout := spec.Timeout
	if timeout == "" {
		timeout = "5m"
	}

	cfg := checkconfig.CheckConfig{
		Name:                 check.Name,
		Namespace:            check.Namespace,
		CheckInterval:        ParseDuration(spec.CheckInterval),
		RetryInterval:        ParseDuration(spec.RetryInterval),
		NotificationInterval: ParseDuration(spec.NotificationInterval),
		MaxAttempts:          spec.MaxAttempts,
		Timeout:              ParseDuration(timeout),
		Escalations:          escalations,
		SourceRef:            spec.SourceRef,
	}

	if spec.Template != nil {
		cfg.WorkloadSpec = *spec.Template
	} else {
		cfg.WorkloadSpec = buildPodTemplate(check.Name, spec)
	}

	return checkconfig.Normalize(cfg)
}

// buildPodTemplate synthesizes a pod template from the convenience fields
// (image/secret_ref/check_cm/check_url/args), grounded exactly on
// CheckConfig.build_pod_spec.
func buildPodTemplate(name string, spec checkcrd.CheckSpec) corev1.PodTemplateSpec {
	container := corev1.Container{
		Name:  name,
		Image: spec.Image,
	}

	if spec.SecretRef != "" {
		container.EnvFrom = []corev1.EnvFromSource{{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: spec.SecretRef},
			},
		}}
	}

	var volumes []corev1.Volume
	if spec.CheckCM != "" {
		container.VolumeMounts = []corev1.VolumeMount{
			{Name: "checks", MountPath: "/checks", ReadOnly: true},
		}
		volumes = []corev1.Volume{{
			Name: "checks",
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: spec.CheckCM},
				},
			},
		}}
	}

	if spec.CheckURL != "" {
		container.Args = []string{spec.CheckURL}
	} else if len(spec.Args) > 0 {
		container.Args = spec.Args
	}

	return corev1.PodTemplateSpec{
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers:    []corev1.Container{container},
			Volumes:       volumes,
		},
	}
}
