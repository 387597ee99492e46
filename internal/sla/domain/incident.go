package sla

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Component is a monitored platform subsystem.
type Component string

const (
	ComponentAPI      Component = "api"
	ComponentWeb      Component = "web"
	ComponentDatabase Component = "database"
	ComponentCache    Component = "cache"
	ComponentQueue    Component = "queue"
	ComponentStorage  Component = "storage"
	ComponentSearch   Component = "search"
	ComponentEmail    Component = "email"
	ComponentPayments Component = "payments"
)

// IsValid reports whether the component is monitored.
func (c Component) IsValid() bool {
	switch c {
	case ComponentAPI, ComponentWeb, ComponentDatabase, ComponentCache, ComponentQueue,
		ComponentStorage, ComponentSearch, ComponentEmail, ComponentPayments:
		return true
	default:
		return false
	}
}

// Severity ranks incident impact; sev1 is the most severe.
type Severity string

const (
	Sev1 Severity = "sev1"
	Sev2 Severity = "sev2"
	Sev3 Severity = "sev3"
	Sev4 Severity = "sev4"
)

// IsValid reports whether the severity is known.
func (s Severity) IsValid() bool {
	switch s {
	case Sev1, Sev2, Sev3, Sev4:
		return true
	default:
		return false
	}
}

// Status is the incident lifecycle state.
type Status string

const (
	StatusInvestigating Status = "investigating"
	StatusIdentified    Status = "identified"
	StatusMonitoring    Status = "monitoring"
	StatusResolved      Status = "resolved"
	StatusPostmortem    Status = "postmortem"
)

var nextStatus = map[Status]Status{
	StatusInvestigating: StatusIdentified,
	StatusIdentified:    StatusMonitoring,
	StatusMonitoring:    StatusResolved,
	StatusResolved:      StatusPostmortem,
}

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusInvestigating, StatusIdentified, StatusMonitoring, StatusResolved, StatusPostmortem:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from→to is one of the forward edges.
func CanTransition(from, to Status) bool {
	next, ok := nextStatus[from]
	return ok && next == to
}

// TimelineEntry is a timestamped note on the incident lifecycle.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
}

// Incident is a tracked outage of one component for one tenant.
type Incident struct {
	ID                string
	TenantID          string
	Component         Component
	Severity          Severity
	Title             string
	Description       string
	StartedAt         time.Time
	ResolvedAt        *time.Time
	DurationMinutes   *decimal.Decimal
	Status            Status
	RootCause         string
	PreventiveActions string
	Timeline          []TimelineEntry
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewIncident validates input and builds an incident in investigating.
func NewIncident(id, tenantID string, component Component, severity Severity, title, description string, startedAt, now time.Time) (*Incident, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: incident id required", ErrValidation)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrValidation)
	}
	if !component.IsValid() {
		return nil, fmt.Errorf("%w: unknown component %q", ErrValidation, component)
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrValidation, severity)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}
	if startedAt.IsZero() {
		startedAt = now
	}
	return &Incident{
		ID:          id,
		TenantID:    tenantID,
		Component:   component,
		Severity:    severity,
		Title:       title,
		Description: description,
		StartedAt:   startedAt.UTC(),
		Status:      StatusInvestigating,
		Timeline: []TimelineEntry{
			{Timestamp: now.UTC(), Status: StatusInvestigating, Notes: "opened"},
		},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Transition applies a forward status change. Entering resolved stamps
// resolvedAt (now when nil) and recomputes the duration.
func (i *Incident) Transition(to Status, notes string, resolvedAt *time.Time, now time.Time) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if !CanTransition(i.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, to)
	}
	if to == StatusResolved {
		at := now
		if resolvedAt != nil && !resolvedAt.IsZero() {
			at = *resolvedAt
		}
		at = at.UTC()
		if at.Before(i.StartedAt) {
			return fmt.Errorf("%w: resolved_at before started_at", ErrValidation)
		}
		duration := MinutesBetween(i.StartedAt, at).Round(2)
		i.ResolvedAt = &at
		i.DurationMinutes = &duration
	}
	i.Status = to
	i.Timeline = append(i.Timeline, TimelineEntry{Timestamp: now.UTC(), Status: to, Notes: notes})
	i.UpdatedAt = now.UTC()
	return nil
}

// EnrichPostmortem records the analysis and closes the lifecycle.
func (i *Incident) EnrichPostmortem(rootCause, preventiveActions string, now time.Time) error {
	if i.Status != StatusResolved {
		return fmt.Errorf("%w: postmortem requires resolved incident, got %s", ErrInvalidState, i.Status)
	}
	i.RootCause = rootCause
	i.PreventiveActions = preventiveActions
	i.Status = StatusPostmortem
	i.Timeline = append(i.Timeline, TimelineEntry{Timestamp: now.UTC(), Status: StatusPostmortem, Notes: "postmortem recorded"})
	i.UpdatedAt = now.UTC()
	return nil
}

// ActiveUntil returns the end of the outage interval: resolvedAt, or now while ongoing.
func (i *Incident) ActiveUntil(now time.Time) time.Time {
	if i.ResolvedAt != nil {
		return *i.ResolvedAt
	}
	return now
}

// Overlaps reports whether [startedAt, resolvedAt or now) intersects [start, end).
func (i *Incident) Overlaps(start, end, now time.Time) bool {
	return i.StartedAt.Before(end) && i.ActiveUntil(now).After(start)
}

// Clone returns a deep copy.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	out := *i
	if i.ResolvedAt != nil {
		at := *i.ResolvedAt
		out.ResolvedAt = &at
	}
	if i.DurationMinutes != nil {
		d := *i.DurationMinutes
		out.DurationMinutes = &d
	}
	out.Timeline = append([]TimelineEntry(nil), i.Timeline...)
	return &out
}
