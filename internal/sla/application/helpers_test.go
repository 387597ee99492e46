package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	sla "sla-cloud/internal/sla/domain"
	"sla-cloud/internal/sla/infrastructure/locking"
	"sla-cloud/internal/sla/infrastructure/memory"
)

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

type recordingNotifier struct {
	events chan IncidentEvent
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan IncidentEvent, 16)}
}

func (r *recordingNotifier) Notify(_ context.Context, event IncidentEvent) {
	r.events <- event
}

func (r *recordingNotifier) next(t *testing.T) IncidentEvent {
	t.Helper()
	select {
	case event := <-r.events:
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for incident event")
	}
	return IncidentEvent{}
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	l.lines = append(l.lines, format)
	l.mu.Unlock()
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

type staticSchedule []sla.Window

func (s staticSchedule) Windows(_ context.Context, _ string, _ sla.Period) ([]sla.Window, error) {
	return s, nil
}

type harness struct {
	clock        *fakeClock
	agreements   *memory.AgreementRepository
	incidents    *memory.IncidentRepository
	measurements *memory.MeasurementRepository
	tenants      *memory.TenantDirectory
	agreementSvc *AgreementService
	tracker      *IncidentTracker
	aggregator   *MeasurementAggregator
	reports      *ReportGenerator
	logger       *recordingLogger
}

func newHarness(t *testing.T, now time.Time, opts ...AggregatorOption) *harness {
	t.Helper()
	agreements := memory.NewAgreementRepository()
	h := &harness{
		clock:        &fakeClock{now: now},
		agreements:   agreements,
		incidents:    memory.NewIncidentRepository(),
		measurements: memory.NewMeasurementRepositoryFor(agreements),
		tenants:      memory.NewTenantDirectory(map[string]string{"tenant-1": "Acme Corp"}),
		logger:       &recordingLogger{},
	}
	var err error
	if h.agreementSvc, err = NewAgreementService(h.agreements, h.measurements, h.clock); err != nil {
		t.Fatalf("agreement service: %v", err)
	}
	if h.tracker, err = NewIncidentTracker(h.incidents, WithTrackerClock(h.clock)); err != nil {
		t.Fatalf("tracker: %v", err)
	}
	opts = append([]AggregatorOption{WithAggregatorClock(h.clock)}, opts...)
	if h.aggregator, err = NewMeasurementAggregator(h.agreements, h.measurements, h.tracker, locking.NewKeyedMutex(), opts...); err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	if h.reports, err = NewReportGenerator(h.agreementSvc, h.aggregator, h.tenants, h.clock, h.logger); err != nil {
		t.Fatalf("report generator: %v", err)
	}
	return h
}

func (h *harness) createAgreement(t *testing.T, tenantID, target string, effective time.Time) *sla.Agreement {
	t.Helper()
	agreement, err := h.agreementSvc.Create(context.Background(), AgreementInput{
		TenantID:      tenantID,
		Tier:          sla.TierPremium,
		UptimeTarget:  decimal.RequireFromString(target),
		EffectiveDate: effective,
	})
	if err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return agreement
}

// resolvedIncident opens an incident and walks it to resolved.
func (h *harness) resolvedIncident(t *testing.T, tenantID string, startedAt time.Time, duration time.Duration) *sla.Incident {
	t.Helper()
	ctx := context.Background()
	incident, err := h.tracker.Open(ctx, OpenIncidentInput{
		TenantID:  tenantID,
		Component: sla.ComponentAPI,
		Severity:  sla.Sev2,
		Title:     "API errors",
		StartedAt: startedAt,
	})
	if err != nil {
		t.Fatalf("open incident: %v", err)
	}
	for _, status := range []sla.Status{sla.StatusIdentified, sla.StatusMonitoring} {
		if _, err := h.tracker.Transition(ctx, incident.ID, status, "", nil); err != nil {
			t.Fatalf("transition %s: %v", status, err)
		}
	}
	resolvedAt := startedAt.Add(duration)
	resolved, err := h.tracker.Transition(ctx, incident.ID, sla.StatusResolved, "", &resolvedAt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return resolved
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
