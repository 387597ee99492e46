package application

import (
	"context"
	"time"

	sla "sla-cloud/internal/sla/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Incident event types.
const (
	EventOpened     = "opened"
	EventTransition = "transition"
	EventResolved   = "resolved"
	EventPostmortem = "postmortem"
)

// IncidentEvent is a lifecycle update handed to notifiers.
type IncidentEvent struct {
	Type     string       `json:"type"`
	Incident sla.Incident `json:"incident"`
}

// IncidentNotifier publishes incident lifecycle events.
type IncidentNotifier interface {
	Notify(ctx context.Context, event IncidentEvent)
}

// MaintenanceSchedule lists planned maintenance windows for a tenant.
type MaintenanceSchedule interface {
	Windows(ctx context.Context, tenantID string, period sla.Period) ([]sla.Window, error)
}

// TenantDirectory resolves tenant display names.
type TenantDirectory interface {
	TenantName(ctx context.Context, tenantID string) (string, error)
}

// Locker serializes work on a key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
