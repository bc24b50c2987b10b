// Package checkconfig holds the normalized, immutable configuration
// extracted from a check resource. It is shared by the event decoder and the
// CheckRunner/CheckHandler, which rely on its Equal method to distinguish a
// genuine user edit from a status-induced echo.
package checkconfig

import (
	"time"

	apiequality "k8s.io/apimachinery/pkg/api/equality"
	corev1 "k8s.io/api/core/v1"
)

// minInterval is the implementation-defined floor applied when a duration
// field is configured (or defaults) to zero, per spec.md §8's boundary
// behavior for check_interval=0.
const minInterval = time.Second

// Escalation is an ordered escalation descriptor: a kind naming a registered
// Escalator constructor, plus its free-form arguments (e.g. email address,
// webhook URL).
type Escalation struct {
	Type string
	Args map[string]string
}

// CheckConfig is immutable after construction. Two values are Equal iff
// every field compares equal structurally; that equality is the sole
// criterion CheckHandler uses to tell a user edit from a status echo
// (spec.md §4.7, §4.5).
type CheckConfig struct {
	Name                 string
	Namespace            string
	CheckInterval        time.Duration
	RetryInterval        time.Duration
	NotificationInterval time.Duration
	MaxAttempts          int
	Timeout              time.Duration
	Escalations          []Escalation
	WorkloadSpec         corev1.PodTemplateSpec
	SourceRef            string // optional, enriches escalation messages only
}

// Key returns the globally unique namespace/name identity for this check.
func (c CheckConfig) Key() string {
	return c.Namespace + "/" + c.Name
}

// Normalize applies the defaulting rules from spec.md §3: retry_interval and
// notification_interval inherit check_interval when zero, max_attempts
// defaults to a sane positive value, and every interval is floored at
// minInterval so a misconfigured zero duration can never produce a busy loop.
func Normalize(c CheckConfig) CheckConfig {
	if c.CheckInterval <= 0 {
		c.CheckInterval = minInterval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = c.CheckInterval
	}
	if c.NotificationInterval <= 0 {
		c.NotificationInterval = c.CheckInterval
	}
	if c.CheckInterval < minInterval {
		c.CheckInterval = minInterval
	}
	if c.RetryInterval < minInterval {
		c.RetryInterval = minInterval
	}
	if c.NotificationInterval < minInterval {
		c.NotificationInterval = minInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Equal reports whether two CheckConfig values are structurally identical.
// PodTemplateSpec is compared with apimachinery's semantic equality (which
// treats nil and empty slices/maps as equivalent) rather than reflect
// equality, since the control plane round-trips the template through JSON
// and frequently introduces such differences without the user's intent
// having changed.
func (c CheckConfig) Equal(o CheckConfig) bool {
	if c.Name != o.Name ||
		c.Namespace != o.Namespace ||
		c.CheckInterval != o.CheckInterval ||
		c.RetryInterval != o.RetryInterval ||
		c.NotificationInterval != o.NotificationInterval ||
		c.MaxAttempts != o.MaxAttempts ||
		c.Timeout != o.Timeout ||
		c.SourceRef != o.SourceRef {
		return false
	}
	if len(c.Escalations) != len(o.Escalations) {
		return false
	}
	for i := range c.Escalations {
		if c.Escalations[i].Type != o.Escalations[i].Type {
			return false
		}
		if len(c.Escalations[i].Args) != len(o.Escalations[i].Args) {
			return false
		}
		for k, v := range c.Escalations[i].Args {
			if ov, ok := o.Escalations[i].Args[k]; !ok || ov != v {
				return false
			}
		}
	}
	return apiequality.Semantic.DeepEqual(c.WorkloadSpec, o.WorkloadSpec)
}
