package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSchedulerRunOnceAggregatesPreviousMonth(t *testing.T) {
	now := time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	covering := h.createAgreement(t, "tenant-1", "99.9", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	future := h.createAgreement(t, "tenant-2", "99.9", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	midMonth := h.createAgreement(t, "tenant-3", "99.9", time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC))

	scheduler := NewScheduler(h.agreementSvc, h.aggregator, ScheduleConfig{MonthlyDay: 1, At: "01:00"}, h.logger)
	scheduler.runOnce(context.Background(), now)

	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	m, err := h.aggregator.Latest(context.Background(), covering.ID, april, april.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if m == nil {
		t.Fatal("expected april measurement")
	}
	if count, _ := h.measurements.CountByAgreement(context.Background(), future.ID); count != 0 {
		t.Fatalf("expected no measurement before effective date, got %d", count)
	}
	// only agreements covering the whole month are measured, matching report resolution
	if count, _ := h.measurements.CountByAgreement(context.Background(), midMonth.ID); count != 0 {
		t.Fatalf("expected no measurement for partial month, got %d", count)
	}

	// a second run hits DuplicatePeriod and is not logged as an error
	scheduler.runOnce(context.Background(), now)
	if h.logger.count() != 0 {
		t.Fatalf("expected duplicates to be silent, got %d log lines", h.logger.count())
	}
}

func TestSchedulerShouldRun(t *testing.T) {
	scheduler := NewScheduler(nil, nil, ScheduleConfig{MonthlyDay: 2, At: "03:30"}, nil)
	if !scheduler.shouldRun(time.Date(2026, 7, 2, 3, 30, 0, 0, time.UTC)) {
		t.Fatal("expected run at configured day and time")
	}
	if scheduler.shouldRun(time.Date(2026, 7, 3, 3, 30, 0, 0, time.UTC)) {
		t.Fatal("unexpected run on another day")
	}
	if scheduler.shouldRun(time.Date(2026, 7, 2, 3, 31, 0, 0, time.UTC)) {
		t.Fatal("unexpected run at another minute")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sla.yaml")
	body := []byte(`
schedule:
  monthly_day: 3
  at: "04:15"
maintenance:
  - tenant_id: tenant-1
    start: 2026-04-10T00:00:00Z
    end: 2026-04-10T01:00:00Z
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SLA_CONFIG", path)
	t.Setenv("SLA_SCHEDULE_AT", "05:00")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Schedule.MonthlyDay != 3 || cfg.Schedule.At != "05:00" {
		t.Fatalf("unexpected schedule: %+v", cfg.Schedule)
	}
	if len(cfg.Maintenance) != 1 || cfg.Maintenance[0].End.Sub(cfg.Maintenance[0].Start) != time.Hour {
		t.Fatalf("unexpected maintenance: %+v", cfg.Maintenance)
	}
}

func TestParseConfigValidation(t *testing.T) {
	if _, err := ParseConfig([]byte("schedule:\n  monthly_day: 31\n")); err == nil {
		t.Fatal("expected error for monthly_day 31")
	}
	if _, err := ParseConfig([]byte("schedule:\n  at: \"25:00\"\n")); err == nil {
		t.Fatal("expected error for invalid time")
	}
	cfg, err := ParseConfig([]byte(""))
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Schedule.MonthlyDay != 1 || cfg.Schedule.At != "01:00" {
		t.Fatalf("unexpected defaults: %+v", cfg.Schedule)
	}
}
