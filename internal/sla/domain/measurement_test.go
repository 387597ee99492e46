package sla

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func thirtyDayPeriod(t *testing.T) Period {
	t.Helper()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	period, err := NewPeriod(start, start.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	return period
}

func TestNewPeriod_RejectsInvertedBounds(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewPeriod(start, start); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	if _, err := NewPeriod(start, start.Add(-time.Hour)); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestPeriodKey_DistinguishesSubMinuteBounds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	a, err := NewPeriod(start, end)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	b, err := NewPeriod(start, end.Add(30*time.Second))
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	if a.Key() == b.Key() {
		t.Fatalf("expected distinct keys, both %s", a.Key())
	}
	if BuildMeasurementID("agr-1", a, 1) == BuildMeasurementID("agr-1", b, 1) {
		t.Fatal("expected distinct measurement ids for distinct periods")
	}

	// bounds are kept at microsecond precision
	c, err := NewPeriod(start, end.Add(1500*time.Nanosecond))
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	if !c.End.Equal(end.Add(time.Microsecond)) {
		t.Fatalf("expected end truncated to microseconds, got %s", c.End)
	}
	if c.Key() == a.Key() {
		t.Fatal("expected microsecond difference to change the key")
	}
}

func TestComputeUptime_SingleIncident(t *testing.T) {
	period := thirtyDayPeriod(t)
	if !period.Minutes().Equal(decimal.NewFromInt(43200)) {
		t.Fatalf("expected 43200 minutes, got %s", period.Minutes())
	}
	uptime, err := ComputeUptime(period, decimal.NewFromInt(120), decimal.Zero)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if uptime.UptimePct.String() != "99.722" {
		t.Fatalf("expected 99.722, got %s", uptime.UptimePct)
	}
}

func TestComputeUptime_Clamped(t *testing.T) {
	period := thirtyDayPeriod(t)
	uptime, err := ComputeUptime(period, decimal.NewFromInt(90000), decimal.Zero)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !uptime.UptimePct.IsZero() {
		t.Fatalf("expected clamp to 0, got %s", uptime.UptimePct)
	}
}

func TestComputeUptime_NoEffectiveMinutes(t *testing.T) {
	period := thirtyDayPeriod(t)
	if _, err := ComputeUptime(period, decimal.Zero, period.Minutes()); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestIncidentDowntime_ClipsToPeriod(t *testing.T) {
	period := thirtyDayPeriod(t)
	inc := &Incident{StartedAt: period.Start.Add(-24 * time.Hour)}
	resolved := period.Start.Add(48 * time.Hour)
	inc.ResolvedAt = &resolved
	got := IncidentDowntime(period, inc)
	if !got.Equal(decimal.NewFromInt(48 * 60)) {
		t.Fatalf("expected 2880 minutes inside period, got %s", got)
	}

	ongoing := &Incident{StartedAt: period.End.Add(-30 * time.Minute)}
	if got := IncidentDowntime(period, ongoing); !got.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected ongoing incident clipped to period end, got %s", got)
	}
}

func TestMergedMinutes_MergesOverlappingWindows(t *testing.T) {
	period := thirtyDayPeriod(t)
	windows := []Window{
		{Start: period.Start.Add(2 * time.Hour), End: period.Start.Add(4 * time.Hour)},
		{Start: period.Start.Add(3 * time.Hour), End: period.Start.Add(5 * time.Hour)},
		{Start: period.Start.Add(-time.Hour), End: period.Start.Add(time.Hour)},
		{Start: period.End.Add(time.Hour), End: period.End.Add(2 * time.Hour)},
	}
	got := period.MergedMinutes(windows)
	if !got.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("expected 240 merged minutes, got %s", got)
	}
}

func TestComputeSnapshotHash_ChangesWithContent(t *testing.T) {
	m := &Measurement{ID: "msr-1", UptimePct: decimal.NewFromInt(100)}
	first, err := ComputeSnapshotHash(m)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	m.UptimePct = decimal.RequireFromString("99.5")
	second, err := ComputeSnapshotHash(m)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("expected hash to change with content")
	}
}
