package maintenance

import (
	"context"
	"testing"
	"time"

	"sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
)

func TestScheduleWindows(t *testing.T) {
	cfg, err := application.ParseConfig([]byte(`
schedule:
  monthly_day: 2
  at: "03:30"
maintenance:
  - tenant_id: "*"
    start: 2026-03-10T00:00:00Z
    end: 2026-03-10T02:00:00Z
    description: platform upgrade
  - tenant_id: tenant-a
    start: 2026-03-20T00:00:00Z
    end: 2026-03-20T01:00:00Z
  - tenant_id: tenant-b
    start: 2026-03-21T00:00:00Z
    end: 2026-03-21T01:00:00Z
  - tenant_id: tenant-a
    start: 2026-04-02T00:00:00Z
    end: 2026-04-02T01:00:00Z
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	schedule := NewSchedule(cfg.Maintenance)
	period := sla.MonthPeriod(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))

	windows, err := schedule.Windows(context.Background(), "tenant-a", period)
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected global and tenant window, got %d", len(windows))
	}
	if got := period.MergedMinutes(windows); got.IntPart() != 180 {
		t.Fatalf("expected 180 excluded minutes, got %s", got)
	}

	windows, err = schedule.Windows(context.Background(), "tenant-c", period)
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected only the global window, got %d", len(windows))
	}
}
