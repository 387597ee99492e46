package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sla-cloud/internal/observability/metrics"
	sla "sla-cloud/internal/sla/domain"
)

// OpenIncidentInput carries the fields of a new incident.
type OpenIncidentInput struct {
	TenantID    string
	Component   sla.Component
	Severity    sla.Severity
	Title       string
	Description string
	StartedAt   time.Time
}

// IncidentTracker manages the incident lifecycle.
type IncidentTracker struct {
	repo          sla.IncidentRepository
	notifier      IncidentNotifier
	clock         Clock
	notifyTimeout time.Duration
}

// TrackerOption customizes the tracker.
type TrackerOption func(*IncidentTracker)

// WithNotifier assigns a notifier.
func WithNotifier(notifier IncidentNotifier) TrackerOption {
	return func(t *IncidentTracker) {
		t.notifier = notifier
	}
}

// WithTrackerClock assigns a clock.
func WithTrackerClock(clock Clock) TrackerOption {
	return func(t *IncidentTracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithNotifyTimeout bounds each background notification.
func WithNotifyTimeout(timeout time.Duration) TrackerOption {
	return func(t *IncidentTracker) {
		if timeout > 0 {
			t.notifyTimeout = timeout
		}
	}
}

// NewIncidentTracker constructs a tracker.
func NewIncidentTracker(repo sla.IncidentRepository, opts ...TrackerOption) (*IncidentTracker, error) {
	if repo == nil {
		return nil, errors.New("incident tracker: nil repo")
	}
	tracker := &IncidentTracker{
		repo:          repo,
		clock:         systemClock{},
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker, nil
}

// Open records a new incident in investigating.
func (t *IncidentTracker) Open(ctx context.Context, input OpenIncidentInput) (*sla.Incident, error) {
	now := t.clock.Now().UTC()
	incident, err := sla.NewIncident(uuid.NewString(), input.TenantID, input.Component, input.Severity, input.Title, input.Description, input.StartedAt, now)
	if err != nil {
		return nil, err
	}
	if err := t.repo.Create(ctx, incident); err != nil {
		return nil, err
	}
	t.notify(EventOpened, incident)
	return incident, nil
}

// Get loads an incident.
func (t *IncidentTracker) Get(ctx context.Context, id string) (*sla.Incident, error) {
	incident, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, fmt.Errorf("%w: incident %s", sla.ErrNotFound, id)
	}
	return incident, nil
}

// Transition moves an incident one step forward. The stored record is
// updated only if nobody changed its status in the meantime.
func (t *IncidentTracker) Transition(ctx context.Context, id string, to sla.Status, notes string, resolvedAt *time.Time) (*sla.Incident, error) {
	incident, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := incident.Status
	if err := incident.Transition(to, notes, resolvedAt, t.clock.Now()); err != nil {
		return nil, err
	}
	if err := t.compareAndSwap(ctx, incident, expected); err != nil {
		return nil, err
	}
	event := EventTransition
	if to == sla.StatusResolved {
		event = EventResolved
	}
	t.notify(event, incident)
	return incident, nil
}

// EnrichPostmortem records root cause and preventive actions on a resolved incident.
func (t *IncidentTracker) EnrichPostmortem(ctx context.Context, id, rootCause, preventiveActions string) (*sla.Incident, error) {
	incident, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := incident.Status
	if err := incident.EnrichPostmortem(rootCause, preventiveActions, t.clock.Now()); err != nil {
		return nil, err
	}
	if err := t.compareAndSwap(ctx, incident, expected); err != nil {
		return nil, err
	}
	t.notify(EventPostmortem, incident)
	return incident, nil
}

// ListForPeriod returns incidents whose outage interval intersects [start, end).
func (t *IncidentTracker) ListForPeriod(ctx context.Context, tenantID string, start, end time.Time) ([]sla.Incident, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", sla.ErrValidation)
	}
	period, err := sla.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	candidates, err := t.repo.ListOverlapping(ctx, tenantID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	now := t.clock.Now().UTC()
	out := make([]sla.Incident, 0, len(candidates))
	for _, incident := range candidates {
		if incident.Overlaps(period.Start, period.End, now) {
			out = append(out, incident)
		}
	}
	return out, nil
}

// ListByTenant returns a tenant's incidents, optionally filtered by status.
func (t *IncidentTracker) ListByTenant(ctx context.Context, tenantID string, status sla.Status) ([]sla.Incident, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", sla.ErrValidation)
	}
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", sla.ErrValidation, status)
	}
	return t.repo.ListByTenant(ctx, tenantID, status)
}

func (t *IncidentTracker) compareAndSwap(ctx context.Context, incident *sla.Incident, expected sla.Status) error {
	ok, err := t.repo.UpdateStatus(ctx, incident, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: incident %s changed concurrently", sla.ErrInvalidTransition, incident.ID)
	}
	return nil
}

func (t *IncidentTracker) notify(eventType string, incident *sla.Incident) {
	metrics.IncIncidentEvent(eventType)
	if t.notifier == nil || incident == nil {
		return
	}
	event := IncidentEvent{Type: eventType, Incident: *incident.Clone()}
	timeout := t.notifyTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		t.notifier.Notify(ctx, event)
	}()
}
