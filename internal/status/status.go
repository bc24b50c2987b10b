// Package status holds the mutable per-check result value: the outcome of
// the most recent attempt, whether an attempt is in flight, and the bits
// that round-trip through the check resource's status subresource.
package status

import (
	"fmt"
	"time"
)

// Outcome is the result of the most recently completed attempt.
type Outcome string

const (
	OK       Outcome = "OK"
	WARN     Outcome = "WARN"
	CRITICAL Outcome = "CRITICAL"
	UNKNOWN  Outcome = "UNKNOWN"
	PENDING  Outcome = "PENDING"
)

// Phase indicates whether an attempt is currently in flight.
type Phase string

const (
	IDLE         Phase = "IDLE"
	RUNNING      Phase = "RUNNING"
	PhaseUnknown Phase = "UNKNOWN"
)

// timeLayout is the wire format used for last_check/next_check timestamps,
// matching spec.md's "YYYY-MM-DD HH:MM:SS".
const timeLayout = "2006-01-02 15:04:05"

// Status is the mutable, owned-by-one-CheckRunner lifecycle record for a
// single check. The zero value has empty Status and State; use New for a
// fresh, never-run check (PENDING/IDLE).
type Status struct {
	Status    Outcome
	State     Phase
	Attempt   int
	LastCheck time.Time
	NextCheck time.Time
	Logs      string
	Telemetry map[string]float64
	Message   string
}

// New returns the initial status for a brand-new check: PENDING/IDLE with no
// history, mirroring mozalert's base.py Status(status=PENDING, state=IDLE).
func New() Status {
	return Status{
		Status:    PENDING,
		State:     IDLE,
		Telemetry: map[string]float64{},
	}
}

func (s Status) IsOK() bool       { return s.Status == OK }
func (s Status) IsCritical() bool { return s.Status == CRITICAL }
func (s Status) IsIdle() bool     { return s.State == IDLE }
func (s Status) IsRunning() bool  { return s.State == RUNNING }

// NextInterval reports how long to wait before the next attempt based on
// NextCheck: zero if NextCheck was never set, 1s if it has already elapsed,
// or the remaining duration otherwise. This mirrors mozalert's
// Status.next_interval property used to seed a restarted runner.
func (s Status) NextInterval(now time.Time) time.Duration {
	if s.NextCheck.IsZero() {
		return 0
	}
	if now.After(s.NextCheck) {
		return time.Second
	}
	return s.NextCheck.Sub(now)
}

// Wire is the on-the-resource representation of Status: the shape written
// to and read from the check resource's status subresource (spec.md §6).
type Wire struct {
	Status    string             `json:"status"`
	State     string             `json:"state"`
	Attempt   int                `json:"attempt"`
	LastCheck string             `json:"last_check"`
	NextCheck string             `json:"next_check"`
	Logs      string             `json:"logs"`
	Telemetry map[string]float64 `json:"telemetry"`
	Message   string             `json:"message"`
}

// ToWire serializes a Status into its resource form.
func (s Status) ToWire() Wire {
	w := Wire{
		Status:    string(s.Status),
		State:     string(s.State),
		Attempt:   s.Attempt,
		Logs:      s.Logs,
		Telemetry: s.Telemetry,
		Message:   s.Message,
	}
	if !s.LastCheck.IsZero() {
		w.LastCheck = s.LastCheck.UTC().Format(timeLayout)
	}
	if !s.NextCheck.IsZero() {
		w.NextCheck = s.NextCheck.UTC().Format(timeLayout)
	}
	return w
}

// FromWire parses a resource-form status back into a Status. Any field that
// fails to parse is left at its zero value; per spec.md §9 a parse failure
// on last_check means "leave unchanged", so this never returns an error — it
// does the best it can and returns what it kept. Parse failures are not
// logged, here or by the callers.
func FromWire(w Wire) Status {
	s := Status{
		Status:    Outcome(w.Status),
		State:     Phase(w.State),
		Attempt:   w.Attempt,
		Logs:      w.Logs,
		Message:   w.Message,
		Telemetry: w.Telemetry,
	}
	if s.Status == "" {
		s.Status = PENDING
	}
	if s.State == "" {
		s.State = IDLE
	}
	if s.Telemetry == nil {
		s.Telemetry = map[string]float64{}
	}
	if t, err := time.Parse(timeLayout, w.LastCheck); err == nil {
		s.LastCheck = t
	}
	if t, err := time.Parse(timeLayout, w.NextCheck); err == nil {
		s.NextCheck = t
	}
	return s
}

// SeedFromPrior seeds a fresh Status from a previously-persisted one,
// observed at controller-restart or reconfigure time, applying the same
// adjustment mozalert's base.py applies in BaseCheck.__init__: a RUNNING
// prior attempt is considered lost and its attempt count decremented, since
// the new runner is about to retry it.
func SeedFromPrior(prior Status) Status {
	s := prior
	if s.Telemetry == nil {
		s.Telemetry = map[string]float64{}
	}
	if s.IsRunning() && s.Attempt > 0 {
		s.Attempt--
	}
	return s
}

func (s Status) String() string {
	return fmt.Sprintf("%s/%s attempt=%d", s.Status, s.State, s.Attempt)
}
