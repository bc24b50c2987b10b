// Package checkcrd defines the Go types for the "checks" custom resource
// (group crd.k8s.afrank.local, version v1) and a typed REST client for it,
// grounded on kuberhealthy-kuberhealthy's pkg/khcheckcrd and pkg/khstatecrd packages.
package checkcrd

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// EscalationSpec is the wire form of one escalation descriptor.
type EscalationSpec struct {
	Type string            `json:"type"`
	Args map[string]string `json:"args,omitempty"`
}

// CheckSpec is the wire form of a check's desired configuration, accepting
// either a full pod template or the convenience fields used to synthesize
// one (spec.md §6).
type CheckSpec struct {
	CheckInterval        string           `json:"check_interval,omitempty"`
	RetryInterval        string           `json:"retry_interval,omitempty"`
	NotificationInterval string           `json:"notification_interval,omitempty"`
	Timeout              string           `json:"timeout,omitempty"`
	MaxAttempts          int              `json:"max_attempts,omitempty"`
	Escalations          []EscalationSpec `json:"escalations,omitempty"`

	Template *corev1.PodTemplateSpec `json:"template,omitempty"`

	// Convenience fields used to synthesize Template when it is absent.
	Image     string   `json:"image,omitempty"`
	SecretRef string   `json:"secret_ref,omitempty"`
	CheckCM   string   `json:"check_cm,omitempty"`
	CheckURL  string   `json:"check_url,omitempty"`
	Args      []string `json:"args,omitempty"`

	SourceRef string `json:"source_ref,omitempty"`
}

// CheckStatusSpec is the wire form of the status subresource (spec.md §6).
type CheckStatusSpec struct {
	Status    string             `json:"status,omitempty"`
	State     string             `json:"state,omitempty"`
	Attempt   int                `json:"attempt,omitempty"`
	LastCheck string             `json:"last_check,omitempty"`
	NextCheck string             `json:"next_check,omitempty"`
	Logs      string             `json:"logs,omitempty"`
	Telemetry map[string]float64 `json:"telemetry,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// Check is the full custom resource: a CheckSpec plus its CheckStatusSpec
// status subresource, mirroring khcheckcrd.KuberhealthyCheck /
// khstatecrd.KuberhealthyState combined into the single "checks" CRD that
// spec.md §6 describes.
type Check struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Spec              CheckSpec       `json:"spec"`
	Status            CheckStatusSpec `json:"status,omitempty"`
}

// CheckList is a list of Check resources, required to satisfy the REST
// client List() call and runtime.Object.
type CheckList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Check `json:"items"`
}

func (c Check) String() string {
	b, err := json.MarshalIndent(&c, "", "\t")
	if err != nil {
		log.Errorln("failed to marshal Check:", err)
	}
	return string(b)
}

// DeepCopyInto copies all properties of this object into the given pointer.
// Spec.Template's pointer and Spec/Status's slices and maps are shared with
// the source rather than recursively copied.
func (c *Check) DeepCopyInto(out *Check) {
	out.TypeMeta = c.TypeMeta
	out.ObjectMeta = c.ObjectMeta
	out.Spec = c.Spec
	out.Status = c.Status
}

// DeepCopyObject returns a generically typed copy, satisfying runtime.Object.
func (c *Check) DeepCopyObject() runtime.Object {
	out := Check{}
	c.DeepCopyInto(&out)
	return &out
}

// DeepCopyObject satisfies runtime.Object for CheckList.
func (l *CheckList) DeepCopyObject() runtime.Object {
	out := CheckList{TypeMeta: l.TypeMeta, ListMeta: l.ListMeta}
	out.Items = make([]Check, len(l.Items))
	for i := range l.Items {
		l.Items[i].DeepCopyInto(&out.Items[i])
	}
	return &out
}

// NewCheck builds a Check resource value for the given identity and spec,
// matching khcheckcrd.NewKuberhealthyCheck's constructor shape.
func NewCheck(name, namespace string, spec CheckSpec) Check {
	c := Check{Spec: spec}
	c.Kind = "Check"
	c.Name = name
	c.Namespace = namespace
	return c
}
