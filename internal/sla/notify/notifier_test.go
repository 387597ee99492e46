package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
	"sla-cloud/internal/sla/infrastructure/memory"
)

type stubIncidentReader struct {
	mu       sync.Mutex
	incident *sla.Incident
}

func (s *stubIncidentReader) Get(_ context.Context, _ string) (*sla.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incident == nil {
		return nil, nil
	}
	return s.incident.Clone(), nil
}

func (s *stubIncidentReader) set(incident *sla.Incident) {
	s.mu.Lock()
	s.incident = incident
	s.mu.Unlock()
}

func newIncident(id string, severity sla.Severity, startedAt time.Time) *sla.Incident {
	return &sla.Incident{
		ID:        id,
		TenantID:  "tenant-1",
		Component: sla.ComponentAPI,
		Severity:  severity,
		Title:     "API latency",
		Status:    sla.StatusInvestigating,
		StartedAt: startedAt,
		CreatedAt: startedAt,
		UpdatedAt: startedAt,
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	tpl, err := NewTemplate("")
	if err != nil {
		t.Fatalf("new template: %v", err)
	}

	started := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	incident := newIncident("inc-1", sla.Sev2, started)
	tenants := memory.NewTenantDirectory(map[string]string{"tenant-1": "Acme Corp"})

	notifier, err := NewNotifier(
		&stubIncidentReader{incident: incident},
		channel,
		tpl,
		WithTenantDirectory(tenants),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventOpened, Incident: *incident})

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		content := payload.Text.Content
		checks := []string{
			"[Incident Opened]",
			"Tenant: Acme Corp",
			"Title: API latency",
			"Component: api",
			"Severity: sev2",
			"Started: 2026-04-10T08:00:00Z",
			"Current Status: investigating",
			"Action: Engage the on-call team immediately.",
		}
		for _, expected := range checks {
			if !strings.Contains(content, expected) {
				t.Fatalf("expected content to include %q, got %s", expected, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

func TestWebhookChannelRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new webhook channel: %v", err)
	}
	if err := channel.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

type recordingChannel struct {
	mu       sync.Mutex
	contents []string
}

func (r *recordingChannel) Send(_ context.Context, content string) error {
	r.mu.Lock()
	r.contents = append(r.contents, content)
	r.mu.Unlock()
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contents)
}

func (r *recordingChannel) Latest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.contents) == 0 {
		return ""
	}
	return r.contents[len(r.contents)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestNotifierCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	incident := newIncident("inc-2", sla.Sev3, clock.Now())

	notifier, err := NewNotifier(&stubIncidentReader{incident: incident}, channel, nil,
		WithClock(clock),
		WithCooldown(10*time.Minute),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	event := slaapp.IncidentEvent{Type: slaapp.EventTransition, Incident: *incident}
	notifier.Notify(context.Background(), event)
	notifier.Notify(context.Background(), event)
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during cooldown, got %d", got)
	}

	clock.Add(11 * time.Minute)
	notifier.Notify(context.Background(), event)
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected 2 notifications after cooldown, got %d", got)
	}

	// cooldown is tracked per event type
	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventResolved, Incident: *incident})
	if got := channel.Count(); got != 3 {
		t.Fatalf("expected resolved event to bypass transition cooldown, got %d", got)
	}
}

func TestNotifierDedupeWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 4, 10, 11, 0, 0, 0, time.UTC)}
	channel := &recordingChannel{}
	incident := newIncident("inc-3", sla.Sev3, clock.Now())

	notifier, err := NewNotifier(&stubIncidentReader{incident: incident}, channel, nil,
		WithClock(clock),
		WithDedupeWindow(30*time.Minute),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventTransition, Incident: *incident})
	clock.Add(5 * time.Minute)
	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventTransition, Incident: *incident})
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected 1 notification during dedupe window, got %d", got)
	}

	incident.Status = sla.StatusIdentified
	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventTransition, Incident: *incident})
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected notification when content changes, got %d", got)
	}
}

func TestNotifierEscalation(t *testing.T) {
	channel := &recordingChannel{}
	incident := newIncident("inc-4", sla.Sev1, time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC))

	notifier, err := NewNotifier(&stubIncidentReader{incident: incident}, channel, nil,
		WithEscalation(20*time.Millisecond),
		WithRequestTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventOpened, Incident: *incident})

	deadline := time.After(300 * time.Millisecond)
	for {
		if channel.Count() >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected escalation notification, got %d", channel.Count())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	if !strings.Contains(channel.Latest(), "Escalated") {
		t.Fatalf("expected escalated notification content, got %s", channel.Latest())
	}
}

func TestNotifierEscalationSkipsResolved(t *testing.T) {
	channel := &recordingChannel{}
	started := time.Date(2026, 4, 10, 13, 0, 0, 0, time.UTC)
	incident := newIncident("inc-5", sla.Sev1, started)
	reader := &stubIncidentReader{incident: incident}

	notifier, err := NewNotifier(reader, channel, nil,
		WithEscalation(20*time.Millisecond),
		WithRequestTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventOpened, Incident: *incident})

	// resolved in the store without a resolved event reaching the notifier
	resolved := incident.Clone()
	resolved.Status = sla.StatusResolved
	reader.set(resolved)

	time.Sleep(100 * time.Millisecond)
	if got := channel.Count(); got != 1 {
		t.Fatalf("expected no escalation for resolved incident, got %d notifications", got)
	}
}

func TestNotifierResolvedCancelsEscalation(t *testing.T) {
	channel := &recordingChannel{}
	started := time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)
	incident := newIncident("inc-6", sla.Sev1, started)

	notifier, err := NewNotifier(&stubIncidentReader{incident: incident}, channel, nil,
		WithEscalation(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventOpened, Incident: *incident})
	notifier.Notify(context.Background(), slaapp.IncidentEvent{Type: slaapp.EventResolved, Incident: *incident})

	time.Sleep(120 * time.Millisecond)
	if got := channel.Count(); got != 2 {
		t.Fatalf("expected opened and resolved only, got %d", got)
	}
	if strings.Contains(channel.Latest(), "Escalated") {
		t.Fatalf("unexpected escalation after resolve: %s", channel.Latest())
	}
}

func TestNewNotifierRejectsNilDeps(t *testing.T) {
	if _, err := NewNotifier(nil, &recordingChannel{}, nil); err == nil {
		t.Fatal("expected error for nil incident reader")
	}
	if _, err := NewNotifier(&stubIncidentReader{}, nil, nil); err == nil {
		t.Fatal("expected error for nil channel")
	}
}
