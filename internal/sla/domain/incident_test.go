package sla

import (
	"errors"
	"testing"
	"time"
)

func newTestIncident(t *testing.T, startedAt time.Time) *Incident {
	t.Helper()
	inc, err := NewIncident("inc-1", "tenant-1", ComponentAPI, Sev2, "API down", "", startedAt, startedAt)
	if err != nil {
		t.Fatalf("new incident: %v", err)
	}
	return inc
}

func TestNewIncident_RejectsUnknownEnums(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewIncident("inc-1", "tenant-1", Component("mainframe"), Sev1, "x", "", now, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for component, got %v", err)
	}
	if _, err := NewIncident("inc-1", "tenant-1", ComponentAPI, Severity("sev0"), "x", "", now, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for severity, got %v", err)
	}
}

func TestIncident_ForwardOnlyTransitions(t *testing.T) {
	all := []Status{StatusInvestigating, StatusIdentified, StatusMonitoring, StatusResolved, StatusPostmortem}
	legal := map[[2]Status]bool{
		{StatusInvestigating, StatusIdentified}: true,
		{StatusIdentified, StatusMonitoring}:    true,
		{StatusMonitoring, StatusResolved}:      true,
		{StatusResolved, StatusPostmortem}:      true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != legal[[2]Status{from, to}] {
				t.Fatalf("CanTransition(%s,%s) = %v", from, to, got)
			}
		}
	}
}

func TestIncident_InvalidTransitionLeavesStateUnchanged(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inc := newTestIncident(t, start)
	err := inc.Transition(StatusResolved, "skip ahead", nil, start.Add(time.Hour))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if inc.Status != StatusInvestigating || inc.ResolvedAt != nil || len(inc.Timeline) != 1 {
		t.Fatalf("incident mutated by failed transition: %+v", inc)
	}
}

func TestIncident_ResolveComputesDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inc := newTestIncident(t, start)
	now := start.Add(3 * time.Hour)
	for _, to := range []Status{StatusIdentified, StatusMonitoring} {
		if err := inc.Transition(to, "", nil, now); err != nil {
			t.Fatalf("transition %s: %v", to, err)
		}
	}
	resolvedAt := start.Add(90*time.Minute + 20*time.Second)
	if err := inc.Transition(StatusResolved, "fixed", &resolvedAt, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inc.DurationMinutes == nil || inc.DurationMinutes.String() != "90.33" {
		t.Fatalf("expected duration 90.33, got %v", inc.DurationMinutes)
	}
	if len(inc.Timeline) != 4 {
		t.Fatalf("expected 4 timeline entries, got %d", len(inc.Timeline))
	}
	last := inc.Timeline[len(inc.Timeline)-1]
	if last.Status != StatusResolved || last.Notes != "fixed" {
		t.Fatalf("unexpected timeline entry: %+v", last)
	}
}

func TestIncident_ResolveDefaultsToNowAndRejectsEarlyResolution(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inc := newTestIncident(t, start)
	inc.Status = StatusMonitoring

	early := start.Add(-time.Minute)
	if err := inc.Transition(StatusResolved, "", &early, start.Add(time.Hour)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if inc.Status != StatusMonitoring {
		t.Fatalf("status changed after rejected resolve: %s", inc.Status)
	}

	now := start.Add(45 * time.Minute)
	if err := inc.Transition(StatusResolved, "", nil, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inc.ResolvedAt == nil || !inc.ResolvedAt.Equal(now) {
		t.Fatalf("expected resolved_at %s, got %v", now, inc.ResolvedAt)
	}
	if inc.DurationMinutes.String() != "45" {
		t.Fatalf("expected 45 minutes, got %s", inc.DurationMinutes)
	}
}

func TestIncident_PostmortemRequiresResolved(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inc := newTestIncident(t, start)
	inc.Status = StatusMonitoring
	if err := inc.EnrichPostmortem("disk", "alerts", start); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if inc.Status != StatusMonitoring || inc.RootCause != "" {
		t.Fatalf("incident mutated: %+v", inc)
	}

	inc.Status = StatusResolved
	if err := inc.EnrichPostmortem("disk", "alerts", start); err != nil {
		t.Fatalf("postmortem: %v", err)
	}
	if inc.Status != StatusPostmortem || inc.RootCause != "disk" || inc.PreventiveActions != "alerts" {
		t.Fatalf("postmortem not recorded: %+v", inc)
	}
}

func TestIncident_Overlaps(t *testing.T) {
	period, _ := NewPeriod(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	before := newTestIncident(t, period.Start.Add(-48*time.Hour))
	resolved := period.Start.Add(-time.Hour)
	before.ResolvedAt = &resolved
	if before.Overlaps(period.Start, period.End, now) {
		t.Fatal("incident resolved before period should not overlap")
	}

	ongoing := newTestIncident(t, period.Start.Add(-time.Hour))
	if !ongoing.Overlaps(period.Start, period.End, now) {
		t.Fatal("ongoing incident should overlap")
	}

	future := newTestIncident(t, period.End)
	if future.Overlaps(period.Start, period.End, period.End.Add(time.Hour)) {
		t.Fatal("incident starting at period end should not overlap")
	}
}
