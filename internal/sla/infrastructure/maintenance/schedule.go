package maintenance

import (
	"context"
	"sort"

	"sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
)

// Schedule serves planned maintenance windows loaded from config.
type Schedule struct {
	byTenant map[string][]sla.Window
}

// NewSchedule indexes config windows by tenant. Windows for
// application.AllTenants apply to everyone.
func NewSchedule(windows []application.MaintenanceWindow) *Schedule {
	byTenant := make(map[string][]sla.Window)
	for _, window := range windows {
		if window.TenantID == "" || !window.End.After(window.Start) {
			continue
		}
		byTenant[window.TenantID] = append(byTenant[window.TenantID], sla.Window{
			Start: window.Start.UTC(),
			End:   window.End.UTC(),
		})
	}
	for tenantID := range byTenant {
		items := byTenant[tenantID]
		sort.Slice(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
	}
	return &Schedule{byTenant: byTenant}
}

// Windows returns the tenant's windows intersecting the period.
func (s *Schedule) Windows(ctx context.Context, tenantID string, period sla.Period) ([]sla.Window, error) {
	_ = ctx
	if s == nil {
		return nil, nil
	}
	var out []sla.Window
	for _, key := range []string{application.AllTenants, tenantID} {
		for _, window := range s.byTenant[key] {
			if window.Start.Before(period.End) && window.End.After(period.Start) {
				out = append(out, window)
			}
		}
	}
	return out, nil
}
