package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	sla "sla-cloud/internal/sla/domain"
)

var (
	aprilStart = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	aprilEnd   = aprilStart.AddDate(0, 0, 30)
)

func TestAggregate_SingleIncidentBreachesTarget(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart.AddDate(0, -1, 0))
	incident := h.resolvedIncident(t, "tenant-1", aprilStart.Add(5*24*time.Hour), 120*time.Minute)

	m, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !m.TotalMinutes.Equal(decimal.NewFromInt(43200)) {
		t.Fatalf("expected 43200 total minutes, got %s", m.TotalMinutes)
	}
	if !m.DowntimeMinutes.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected 120 downtime minutes, got %s", m.DowntimeMinutes)
	}
	if m.UptimePct.String() != "99.722" {
		t.Fatalf("expected uptime 99.722, got %s", m.UptimePct)
	}
	if m.SLAMet {
		t.Fatal("expected target missed")
	}
	if !m.CreditAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected credit 10, got %s", m.CreditAmount)
	}
	if m.Version != 1 || len(m.Incidents) != 1 || m.Incidents[0] != incident.ID {
		t.Fatalf("unexpected measurement: %+v", m)
	}
	if m.SnapshotHash == "" {
		t.Fatal("expected snapshot hash")
	}
}

func TestAggregate_NoIncidentsMeetsTarget(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)

	m, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if m.UptimePct.String() != "100" || !m.SLAMet || !m.CreditAmount.IsZero() {
		t.Fatalf("expected full uptime without credit, got uptime=%s met=%v credit=%s", m.UptimePct, m.SLAMet, m.CreditAmount)
	}
}

func TestAggregate_ClipsIncidentAtPeriodBoundary(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart.AddDate(0, -1, 0))
	h.resolvedIncident(t, "tenant-1", aprilStart.Add(-30*time.Minute), 90*time.Minute)

	m, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !m.DowntimeMinutes.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected only the in-period 60 minutes, got %s", m.DowntimeMinutes)
	}
}

func TestAggregate_UnresolvedIncidentRunsToPeriodEnd(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(-time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	if _, err := h.tracker.Open(context.Background(), OpenIncidentInput{
		TenantID: "tenant-1", Component: sla.ComponentPayments, Severity: sla.Sev1, Title: "card failures",
		StartedAt: aprilEnd.Add(-3 * time.Hour),
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	m, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !m.DowntimeMinutes.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("expected 180 minutes through period end, got %s", m.DowntimeMinutes)
	}
}

func TestAggregate_OverlappingIncidentsAreSummed(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	h.resolvedIncident(t, "tenant-1", aprilStart.Add(10*time.Hour), time.Hour)
	h.resolvedIncident(t, "tenant-1", aprilStart.Add(10*time.Hour+30*time.Minute), time.Hour)

	m, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !m.DowntimeMinutes.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected overlapping spans summed to 120, got %s", m.DowntimeMinutes)
	}
}

func TestAggregate_ExcludesMaintenance(t *testing.T) {
	windows := staticSchedule{
		{Start: aprilStart.Add(24 * time.Hour), End: aprilStart.Add(26 * time.Hour)},
		{Start: aprilStart.Add(25 * time.Hour), End: aprilStart.Add(27 * time.Hour)},
	}
	h := newHarness(t, aprilEnd.Add(time.Hour), WithMaintenance(windows))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	h.resolvedIncident(t, "tenant-1", aprilStart.Add(5*24*time.Hour), 120*time.Minute)

	m, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !m.ExcludedMaintenanceMinutes.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("expected merged 180 maintenance minutes, got %s", m.ExcludedMaintenanceMinutes)
	}
	// 100 * (43020 - 120) / 43020
	if m.UptimePct.String() != "99.721" {
		t.Fatalf("expected uptime 99.721, got %s", m.UptimePct)
	}
}

func TestAggregate_Errors(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	ctx := context.Background()

	if _, err := h.aggregator.Aggregate(ctx, "missing", aprilStart, aprilEnd); !errors.Is(err, sla.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilEnd, aprilStart); !errors.Is(err, sla.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	if _, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilStart, aprilEnd); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if _, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilStart, aprilEnd); !errors.Is(err, sla.ErrDuplicatePeriod) {
		t.Fatalf("expected duplicate period, got %v", err)
	}

	fullMaintenance := newHarness(t, aprilEnd.Add(time.Hour), WithMaintenance(staticSchedule{{Start: aprilStart, End: aprilEnd}}))
	blocked := fullMaintenance.createAgreement(t, "tenant-1", "99.9", aprilStart)
	if _, err := fullMaintenance.aggregator.Aggregate(ctx, blocked.ID, aprilStart, aprilEnd); !errors.Is(err, sla.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period when maintenance covers the period, got %v", err)
	}
}

func TestAggregate_ConcurrentCallsPersistOnce(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.aggregator.Aggregate(context.Background(), agreement.ID, aprilStart, aprilEnd)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, sla.ErrDuplicatePeriod):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected one measurement created, got %d", created)
	}
	count, _ := h.measurements.CountByAgreement(context.Background(), agreement.ID)
	if count != 1 {
		t.Fatalf("expected one stored measurement, got %d", count)
	}
}

func TestSupersede_AppendsNewVersion(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	ctx := context.Background()

	first, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	h.resolvedIncident(t, "tenant-1", aprilStart.Add(48*time.Hour), 120*time.Minute)

	if _, err := h.aggregator.Supersede(ctx, first.ID, ""); !errors.Is(err, sla.ErrValidation) {
		t.Fatalf("expected validation error without reason, got %v", err)
	}
	second, err := h.aggregator.Supersede(ctx, first.ID, "late incident")
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if second.Version != 2 || second.Supersedes != first.ID || second.SupersedeReason != "late incident" {
		t.Fatalf("unexpected superseding record: %+v", second)
	}
	if second.UptimePct.String() != "99.722" {
		t.Fatalf("expected recomputed uptime, got %s", second.UptimePct)
	}

	original, err := h.aggregator.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.SnapshotHash != first.SnapshotHash || !original.UptimePct.Equal(first.UptimePct) {
		t.Fatal("original measurement was modified")
	}

	latest, err := h.aggregator.Latest(ctx, agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected latest to be version 2, got %s", latest.ID)
	}
	if _, err := h.aggregator.Supersede(ctx, first.ID, "stale"); !errors.Is(err, sla.ErrInvalidState) {
		t.Fatalf("expected invalid state for stale version, got %v", err)
	}

	all, err := h.aggregator.ListByAgreement(ctx, agreement.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Version != 1 || all[1].Version != 2 {
		t.Fatalf("unexpected version history: %+v", all)
	}
}

func TestVerify_DetectsLateIncident(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	ctx := context.Background()

	m, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	drift, err := h.aggregator.Verify(ctx, m.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !drift.HashValid || drift.Drifted() {
		t.Fatalf("expected clean measurement, got hash=%v fields=%v", drift.HashValid, drift.Fields)
	}

	// an incident recorded after the period closed
	h.resolvedIncident(t, "tenant-1", aprilStart.Add(10*24*time.Hour), 60*time.Minute)

	drift, err = h.aggregator.Verify(ctx, m.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !drift.HashValid {
		t.Fatal("expected stored hash to remain valid")
	}
	want := map[string]bool{"downtime_minutes": true, "uptime_pct": true, "incidents": true, "sla_met": true, "credit_amount": true}
	if len(drift.Fields) != len(want) {
		t.Fatalf("unexpected drift fields: %v", drift.Fields)
	}
	for _, field := range drift.Fields {
		if !want[field] {
			t.Fatalf("unexpected drift field %q", field)
		}
	}
	if !drift.Recomputed.DowntimeMinutes.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60 recomputed downtime, got %s", drift.Recomputed.DowntimeMinutes)
	}

	if _, err := h.aggregator.Verify(ctx, "msr-missing"); !errors.Is(err, sla.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAggregate_SubMinutePeriodsAreDistinct(t *testing.T) {
	h := newHarness(t, aprilEnd.Add(time.Hour))
	agreement := h.createAgreement(t, "tenant-1", "99.9", aprilStart)
	ctx := context.Background()
	laterEnd := aprilEnd.Add(30 * time.Second)

	first, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilStart, aprilEnd)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	second, err := h.aggregator.Aggregate(ctx, agreement.ID, aprilStart, laterEnd)
	if err != nil {
		t.Fatalf("aggregate period ending %s: %v", laterEnd, err)
	}
	if first.ID == second.ID || second.Version != 1 {
		t.Fatalf("expected an independent version 1 record, got first=%s second=%s v%d", first.ID, second.ID, second.Version)
	}

	report, err := h.reports.GenerateReport(ctx, "tenant-1", aprilStart, laterEnd)
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	if report.MeasurementID != second.ID {
		t.Fatalf("expected report to reuse %s, got %s", second.ID, report.MeasurementID)
	}
}
