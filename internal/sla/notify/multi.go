package notify

import (
	"context"

	slaapp "sla-cloud/internal/sla/application"
)

// MultiNotifier dispatches incident events to multiple notifiers.
type MultiNotifier struct {
	notifiers []slaapp.IncidentNotifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...slaapp.IncidentNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards events to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, event slaapp.IncidentEvent) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}

// LogNotifier writes incident events to a logger.
type LogNotifier struct {
	logger slaapp.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger slaapp.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (l *LogNotifier) Notify(_ context.Context, event slaapp.IncidentEvent) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf("incident event: type=%s id=%s tenant=%s status=%s severity=%s",
		event.Type, event.Incident.ID, event.Incident.TenantID, event.Incident.Status, event.Incident.Severity)
}
