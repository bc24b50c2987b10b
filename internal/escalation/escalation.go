// Package escalation delivers formatted alerts through pluggable
// notification channels, grounded on mozalert/escalations/__init__.py's
// BaseEscalation and its email/slack subclasses.
package escalation

import (
	"context"
	"fmt"

	"github.com/afrank/checkoperator/internal/checkconfig"
	"github.com/afrank/checkoperator/internal/status"
)

// Request carries everything an Escalator needs to compose a message: which
// check, its configuration (for max_attempts/source_ref), its current
// status, and whether this is a recovery notification rather than a
// failure notification.
type Request struct {
	Config   checkconfig.CheckConfig
	Status   status.Status
	Recovery bool
}

// Escalator delivers one Request through a specific channel, using args
// taken from the check's escalations list (spec.md §6, e.g. {email} or
// {webhook_url, channel}).
type Escalator interface {
	Escalate(ctx context.Context, req Request, args map[string]string) error
}

// Constructor builds an Escalator instance. Build calls it on every lookup,
// so each EscalateAll call works with freshly built escalators; escalators
// hold no per-check state between calls.
type Constructor func() Escalator

// Registry is a closed map from escalation type name to constructor,
// populated once at startup (spec.md §6: "recognized types are email and
// slack (pluggable)"). Unlike a reflective plugin loader, adding a new
// escalation type means registering it at process start, not discovering
// it dynamically.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register adds kind to the registry. Calling it twice for the same kind
// overwrites the prior constructor; this is only ever done at startup.
func (r *Registry) Register(kind string, ctor Constructor) {
	r.constructors[kind] = ctor
}

// Build returns a fresh Escalator for kind, or an error if kind was never
// registered.
func (r *Registry) Build(kind string) (Escalator, error) {
	ctor, ok := r.constructors[kind]
	if !ok {
		return nil, fmt.Errorf("no escalator registered for type %q", kind)
	}
	return ctor(), nil
}

// EscalateAll runs req through every escalation descriptor in
// req.Config.Escalations, looking each up in r. A single unknown or failing
// escalator is logged by the caller and does not stop the others from
// running, matching spec.md's "best-effort" escalation-delivery guarantee
// (§1 Non-goals).
func (r *Registry) EscalateAll(ctx context.Context, req Request) []error {
	var errs []error
	for _, esc := range req.Config.Escalations {
		e, err := r.Build(esc.Type)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.Escalate(ctx, req, esc.Args); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", esc.Type, err))
		}
	}
	return errs
}
