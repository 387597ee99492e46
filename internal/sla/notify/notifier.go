package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"sla-cloud/internal/observability/metrics"
	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
)

// IncidentReader loads the current incident state.
type IncidentReader interface {
	Get(ctx context.Context, id string) (*sla.Incident, error)
}

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders incident events and sends them through a channel.
// Sev1 incidents still open after the escalation delay are re-sent as escalated.
type Notifier struct {
	incidents      IncidentReader
	tenants        slaapp.TenantDirectory
	channel        Channel
	template       *Template
	escalation     time.Duration
	clock          Clock
	mu             sync.Mutex
	timers         map[string]*time.Timer
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
	logger         slaapp.Logger
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation configures escalation delay.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout overrides the default timeout for escalation checks.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same incident and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithTenantDirectory resolves tenant names for rendered content.
func WithTenantDirectory(tenants slaapp.TenantDirectory) Option {
	return func(n *Notifier) {
		n.tenants = tenants
	}
}

// WithLogger reports delivery failures.
func WithLogger(logger slaapp.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier constructs an incident notifier.
func NewNotifier(incidents IncidentReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if incidents == nil {
		return nil, errors.New("incident notifier: nil incident reader")
	}
	if channel == nil {
		return nil, errors.New("incident notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		incidents:      incidents,
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		timers:         make(map[string]*time.Timer),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements application.IncidentNotifier.
func (n *Notifier) Notify(ctx context.Context, event slaapp.IncidentEvent) {
	if n == nil || n.channel == nil {
		return
	}
	n.dispatch(ctx, event.Type, event.Incident)

	switch event.Type {
	case slaapp.EventOpened:
		n.scheduleEscalation(event.Incident)
	case slaapp.EventResolved, slaapp.EventPostmortem:
		n.cancelEscalation(event.Incident.ID)
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[string]*time.Timer)
	n.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, eventType string, incident sla.Incident) {
	data := buildTemplateData(eventType, incident, n.tenantName(ctx, incident.TenantID))
	content, err := n.template.Render(data)
	if err != nil {
		n.logf("incident notifier error: render incident=%s err=%v", incident.ID, err)
		return
	}
	if !n.shouldSend(incident.ID, eventType, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		metrics.IncNotification(eventType, metrics.ResultError)
		n.logf("incident notifier error: send incident=%s event=%s err=%v", incident.ID, eventType, err)
		return
	}
	metrics.IncNotification(eventType, metrics.ResultSuccess)
	n.markSent(incident.ID, eventType, content)
}

func (n *Notifier) tenantName(ctx context.Context, tenantID string) string {
	if n.tenants == nil {
		return tenantID
	}
	name, err := n.tenants.TenantName(ctx, tenantID)
	if err != nil || name == "" {
		return tenantID
	}
	return name
}

func (n *Notifier) scheduleEscalation(incident sla.Incident) {
	if n.escalation <= 0 || incident.ID == "" || incident.Severity != sla.Sev1 {
		return
	}
	n.mu.Lock()
	if existing, ok := n.timers[incident.ID]; ok && existing != nil {
		existing.Stop()
	}
	n.timers[incident.ID] = time.AfterFunc(n.escalation, func() {
		n.runEscalation(incident.ID)
	})
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(incidentID string) {
	if incidentID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[incidentID]
	delete(n.timers, incidentID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (n *Notifier) runEscalation(incidentID string) {
	n.mu.Lock()
	delete(n.timers, incidentID)
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), n.requestTimeout)
	defer cancel()

	incident, err := n.incidents.Get(ctx, incidentID)
	if err != nil || incident == nil {
		return
	}
	if incident.Status == sla.StatusResolved || incident.Status == sla.StatusPostmortem {
		return
	}
	n.dispatch(ctx, "escalated", *incident)
}

func buildTemplateData(eventType string, incident sla.Incident, tenantName string) TemplateData {
	data := TemplateData{
		Tenant:     tenantName,
		TenantID:   incident.TenantID,
		IncidentID: incident.ID,
		Title:      incident.Title,
		Component:  string(incident.Component),
		Severity:   string(incident.Severity),
		StartedAt:  incident.StartedAt.UTC().Format(time.RFC3339),
		Status:     string(incident.Status),
		Suggestion: suggestionFor(incident),
		Event:      eventType,
		EventLabel: eventLabel(eventType),
	}
	if incident.ResolvedAt != nil {
		data.ResolvedAt = incident.ResolvedAt.UTC().Format(time.RFC3339)
	}
	if incident.DurationMinutes != nil {
		data.Duration = incident.DurationMinutes.StringFixed(2)
	}
	if len(incident.Timeline) > 0 {
		data.Notes = incident.Timeline[len(incident.Timeline)-1].Notes
	}
	return data
}

func eventLabel(event string) string {
	switch event {
	case slaapp.EventOpened:
		return "Opened"
	case slaapp.EventTransition:
		return "Updated"
	case slaapp.EventResolved:
		return "Resolved"
	case slaapp.EventPostmortem:
		return "Postmortem"
	case "escalated":
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(incident sla.Incident) string {
	switch incident.Status {
	case sla.StatusResolved:
		return "Schedule the postmortem review."
	case sla.StatusPostmortem:
		return "Track the preventive actions to completion."
	}
	switch incident.Severity {
	case sla.Sev1, sla.Sev2:
		return "Engage the on-call team immediately."
	case sla.Sev3:
		return "Investigate during business hours."
	default:
		return "Monitor the component."
	}
}

func (n *Notifier) shouldSend(incidentID, eventType, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(incidentID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(incidentID, eventType, content string) {
	key := notificationKey(incidentID, eventType)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func (n *Notifier) logf(format string, v ...any) {
	if n.logger != nil {
		n.logger.Printf(format, v...)
	}
}

func notificationKey(incidentID, eventType string) string {
	return incidentID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
