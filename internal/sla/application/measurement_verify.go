package application

import (
	"context"
	"sort"
	"strings"

	sla "sla-cloud/internal/sla/domain"
)

// MeasurementDrift compares a stored measurement with a fresh recomputation
// of its period from the current incidents, maintenance windows and agreement.
type MeasurementDrift struct {
	Stored     sla.Measurement
	Recomputed sla.Measurement
	HashValid  bool
	Fields     []string
}

// Drifted reports whether any recomputed figure differs from the stored one.
func (d *MeasurementDrift) Drifted() bool {
	return d != nil && len(d.Fields) > 0
}

// Verify checks the stored snapshot hash and recomputes the period without
// writing anything. A drifted latest version is the input to Supersede.
func (a *MeasurementAggregator) Verify(ctx context.Context, measurementID string) (*MeasurementDrift, error) {
	stored, err := a.Get(ctx, measurementID)
	if err != nil {
		return nil, err
	}
	agreement, err := a.loadAgreement(ctx, stored.AgreementID)
	if err != nil {
		return nil, err
	}
	recomputed, err := a.compute(ctx, agreement, stored.Period(), stored.Version)
	if err != nil {
		return nil, err
	}

	check := stored.Clone()
	check.SnapshotHash = ""
	hash, err := sla.ComputeSnapshotHash(check)
	if err != nil {
		return nil, err
	}

	drift := &MeasurementDrift{
		Stored:     *stored,
		Recomputed: *recomputed,
		HashValid:  hash == stored.SnapshotHash,
	}
	if !stored.DowntimeMinutes.Equal(recomputed.DowntimeMinutes) {
		drift.Fields = append(drift.Fields, "downtime_minutes")
	}
	if !stored.ExcludedMaintenanceMinutes.Equal(recomputed.ExcludedMaintenanceMinutes) {
		drift.Fields = append(drift.Fields, "excluded_maintenance_minutes")
	}
	if !stored.UptimePct.Equal(recomputed.UptimePct) {
		drift.Fields = append(drift.Fields, "uptime_pct")
	}
	if stored.SLAMet != recomputed.SLAMet {
		drift.Fields = append(drift.Fields, "sla_met")
	}
	if !stored.CreditAmount.Equal(recomputed.CreditAmount) {
		drift.Fields = append(drift.Fields, "credit_amount")
	}
	if incidentSetKey(stored.Incidents) != incidentSetKey(recomputed.Incidents) {
		drift.Fields = append(drift.Fields, "incidents")
	}
	return drift, nil
}

func incidentSetKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
