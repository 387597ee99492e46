package sla

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Measurement is the immutable uptime/compliance/credit record of one
// agreement period. Corrections append a new version that supersedes the
// previous one.
type Measurement struct {
	ID                         string          `json:"id"`
	TenantID                   string          `json:"tenant_id"`
	AgreementID                string          `json:"agreement_id"`
	PeriodStart                time.Time       `json:"period_start"`
	PeriodEnd                  time.Time       `json:"period_end"`
	Version                    int             `json:"version"`
	Supersedes                 string          `json:"supersedes,omitempty"`
	SupersedeReason            string          `json:"supersede_reason,omitempty"`
	TotalMinutes               decimal.Decimal `json:"total_minutes"`
	DowntimeMinutes            decimal.Decimal `json:"downtime_minutes"`
	ExcludedMaintenanceMinutes decimal.Decimal `json:"excluded_maintenance_minutes"`
	UptimePct                  decimal.Decimal `json:"uptime_pct"`
	SLAMet                     bool            `json:"sla_met"`
	CreditAmount               decimal.Decimal `json:"credit_amount"`
	Incidents                  []string        `json:"incidents"`
	SnapshotHash               string          `json:"-"`
	CreatedAt                  time.Time       `json:"created_at"`
}

// Uptime holds the derived figures of a period.
type Uptime struct {
	TotalMinutes    decimal.Decimal
	DowntimeMinutes decimal.Decimal
	ExcludedMinutes decimal.Decimal
	UptimePct       decimal.Decimal
}

// ComputeUptime derives the uptime percentage of a period. Downtime is the
// plain sum of incident spans; the result is clamped to [0,100].
func ComputeUptime(period Period, downtime, excluded decimal.Decimal) (Uptime, error) {
	total := period.Minutes()
	effective := total.Sub(excluded)
	if !effective.IsPositive() {
		return Uptime{}, fmt.Errorf("%w: no effective minutes after maintenance exclusion", ErrInvalidPeriod)
	}
	pct := hundred.Mul(effective.Sub(downtime)).Div(effective)
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	return Uptime{
		TotalMinutes:    total,
		DowntimeMinutes: downtime,
		ExcludedMinutes: excluded,
		UptimePct:       pct.Round(3),
	}, nil
}

// IncidentDowntime returns the minutes an incident contributes to the period.
// An unresolved incident counts as ongoing through the period end.
func IncidentDowntime(period Period, incident *Incident) decimal.Decimal {
	if incident == nil {
		return decimal.Zero
	}
	end := period.End
	if incident.ResolvedAt != nil {
		end = *incident.ResolvedAt
	}
	return period.Clip(incident.StartedAt, end)
}

// BuildMeasurementID derives a stable id from agreement, period and version.
func BuildMeasurementID(agreementID string, period Period, version int) string {
	base := agreementID + "|" + period.Key() + "|" + strconv.Itoa(version)
	sum := sha256.Sum256([]byte(base))
	return "msr-" + hex.EncodeToString(sum[:8])
}

// ComputeSnapshotHash fingerprints the record content.
func ComputeSnapshotHash(m *Measurement) (string, error) {
	if m == nil {
		return "", fmt.Errorf("%w: nil measurement", ErrValidation)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Period returns the measurement period.
func (m *Measurement) Period() Period {
	return Period{Start: m.PeriodStart, End: m.PeriodEnd}
}

// Clone returns a deep copy.
func (m *Measurement) Clone() *Measurement {
	if m == nil {
		return nil
	}
	out := *m
	out.Incidents = append([]string(nil), m.Incidents...)
	return &out
}
