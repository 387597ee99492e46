package http

import (
	"time"

	"github.com/shopspring/decimal"

	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
)

type agreementRequest struct {
	TenantID      string            `json:"tenant_id"`
	Tier          string            `json:"tier"`
	UptimeTarget  decimal.Decimal   `json:"uptime_target"`
	CreditPolicy  sla.CreditPolicy  `json:"credit_policy,omitempty"`
	CustomTerms   map[string]string `json:"custom_terms,omitempty"`
	EffectiveDate time.Time         `json:"effective_date"`
	ExpiryDate    *time.Time        `json:"expiry_date,omitempty"`
	Active        *bool             `json:"active,omitempty"`
}

func (req agreementRequest) input() slaapp.AgreementInput {
	return slaapp.AgreementInput{
		TenantID:      req.TenantID,
		Tier:          sla.Tier(req.Tier),
		UptimeTarget:  req.UptimeTarget,
		CreditPolicy:  req.CreditPolicy,
		CustomTerms:   req.CustomTerms,
		EffectiveDate: req.EffectiveDate,
		ExpiryDate:    req.ExpiryDate,
		Active:        req.Active,
	}
}

type creditTierResponse struct {
	MaxShortfallPct float64 `json:"max_shortfall_pct"`
	CreditPct       float64 `json:"credit_pct"`
}

type agreementResponse struct {
	ID            string               `json:"id"`
	TenantID      string               `json:"tenant_id"`
	Tier          string               `json:"tier"`
	UptimeTarget  float64              `json:"uptime_target"`
	CreditPolicy  []creditTierResponse `json:"credit_policy"`
	CustomTerms   map[string]string    `json:"custom_terms,omitempty"`
	EffectiveDate time.Time            `json:"effective_date"`
	ExpiryDate    *time.Time           `json:"expiry_date,omitempty"`
	Active        bool                 `json:"active"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toAgreementResponse(a sla.Agreement) agreementResponse {
	policy := make([]creditTierResponse, 0, len(a.CreditPolicy))
	for _, tier := range a.CreditPolicy {
		policy = append(policy, creditTierResponse{
			MaxShortfallPct: tier.MaxShortfallPct.InexactFloat64(),
			CreditPct:       tier.CreditPct.InexactFloat64(),
		})
	}
	return agreementResponse{
		ID:            a.ID,
		TenantID:      a.TenantID,
		Tier:          string(a.Tier),
		UptimeTarget:  a.UptimeTarget.InexactFloat64(),
		CreditPolicy:  policy,
		CustomTerms:   a.CustomTerms,
		EffectiveDate: a.EffectiveDate,
		ExpiryDate:    a.ExpiryDate,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type incidentRequest struct {
	TenantID    string    `json:"tenant_id"`
	Component   string    `json:"component"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

type transitionRequest struct {
	Status     string     `json:"status"`
	Notes      string     `json:"notes"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type postmortemRequest struct {
	RootCause         string `json:"root_cause"`
	PreventiveActions string `json:"preventive_actions"`
}

type incidentResponse struct {
	ID                string              `json:"id"`
	TenantID          string              `json:"tenant_id"`
	Component         string              `json:"component"`
	Severity          string              `json:"severity"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Status            string              `json:"status"`
	StartedAt         time.Time           `json:"started_at"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty"`
	DurationMinutes   *float64            `json:"duration_minutes,omitempty"`
	RootCause         string              `json:"root_cause,omitempty"`
	PreventiveActions string              `json:"preventive_actions,omitempty"`
	Timeline          []sla.TimelineEntry `json:"timeline"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func toIncidentResponse(i sla.Incident) incidentResponse {
	resp := incidentResponse{
		ID:                i.ID,
		TenantID:          i.TenantID,
		Component:         string(i.Component),
		Severity:          string(i.Severity),
		Title:             i.Title,
		Description:       i.Description,
		Status:            string(i.Status),
		StartedAt:         i.StartedAt,
		ResolvedAt:        i.ResolvedAt,
		RootCause:         i.RootCause,
		PreventiveActions: i.PreventiveActions,
		Timeline:          i.Timeline,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
	if i.DurationMinutes != nil {
		minutes := i.DurationMinutes.InexactFloat64()
		resp.DurationMinutes = &minutes
	}
	if resp.Timeline == nil {
		resp.Timeline = []sla.TimelineEntry{}
	}
	return resp
}

type aggregateRequest struct {
	AgreementID string    `json:"agreement_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type supersedeRequest struct {
	Reason string `json:"reason"`
}

type measurementResponse struct {
	ID                         string    `json:"id"`
	TenantID                   string    `json:"tenant_id"`
	AgreementID                string    `json:"agreement_id"`
	PeriodStart                time.Time `json:"period_start"`
	PeriodEnd                  time.Time `json:"period_end"`
	Version                    int       `json:"version"`
	Supersedes                 string    `json:"supersedes,omitempty"`
	SupersedeReason            string    `json:"supersede_reason,omitempty"`
	TotalMinutes               float64   `json:"total_minutes"`
	DowntimeMinutes            float64   `json:"downtime_minutes"`
	ExcludedMaintenanceMinutes float64   `json:"excluded_maintenance_minutes"`
	UptimePct                  float64   `json:"uptime_pct"`
	SLAMet                     bool      `json:"sla_met"`
	CreditAmount               float64   `json:"credit_amount"`
	Incidents                  []string  `json:"incidents"`
	SnapshotHash               string    `json:"snapshot_hash"`
	CreatedAt                  time.Time `json:"created_at"`
}

func toMeasurementResponse(m sla.Measurement) measurementResponse {
	incidents := m.Incidents
	if incidents == nil {
		incidents = []string{}
	}
	return measurementResponse{
		ID:                         m.ID,
		TenantID:                   m.TenantID,
		AgreementID:                m.AgreementID,
		PeriodStart:                m.PeriodStart,
		PeriodEnd:                  m.PeriodEnd,
		Version:                    m.Version,
		Supersedes:                 m.Supersedes,
		SupersedeReason:            m.SupersedeReason,
		TotalMinutes:               m.TotalMinutes.InexactFloat64(),
		DowntimeMinutes:            m.DowntimeMinutes.InexactFloat64(),
		ExcludedMaintenanceMinutes: m.ExcludedMaintenanceMinutes.InexactFloat64(),
		UptimePct:                  m.UptimePct.InexactFloat64(),
		SLAMet:                     m.SLAMet,
		CreditAmount:               m.CreditAmount.InexactFloat64(),
		Incidents:                  incidents,
		SnapshotHash:               m.SnapshotHash,
		CreatedAt:                  m.CreatedAt,
	}
}

type verifyResponse struct {
	Stored        measurementResponse `json:"stored"`
	Recomputed    measurementResponse `json:"recomputed"`
	HashValid     bool                `json:"hash_valid"`
	Drifted       bool                `json:"drifted"`
	DriftedFields []string            `json:"drifted_fields"`
}

type reportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type reportMetrics struct {
	UptimePercentage float64 `json:"uptime_percentage"`
	TargetPercentage float64 `json:"target_percentage"`
	DowntimeMinutes  float64 `json:"downtime_minutes"`
}

type reportCompliance struct {
	Met       bool    `json:"met"`
	CreditPct float64 `json:"credit_pct"`
}

type reportResponse struct {
	TenantID      string           `json:"tenant_id"`
	TenantName    string           `json:"tenant_name"`
	Period        reportPeriod     `json:"period"`
	Metrics       reportMetrics    `json:"metrics"`
	Compliance    reportCompliance `json:"compliance"`
	AgreementID   string           `json:"agreement_id"`
	MeasurementID string           `json:"measurement_id"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

func toReportResponse(r sla.Report) reportResponse {
	return reportResponse{
		TenantID:   r.TenantID,
		TenantName: r.TenantName,
		Period:     reportPeriod{Start: r.Period.Start, End: r.Period.End},
		Metrics: reportMetrics{
			UptimePercentage: r.Metrics.UptimePct.InexactFloat64(),
			TargetPercentage: r.Metrics.TargetPct.InexactFloat64(),
			DowntimeMinutes:  r.Metrics.DowntimeMinutes.InexactFloat64(),
		},
		Compliance: reportCompliance{
			Met:       r.Compliance.Met,
			CreditPct: r.Compliance.CreditPct.InexactFloat64(),
		},
		AgreementID:   r.AgreementID,
		MeasurementID: r.MeasurementID,
		GeneratedAt:   r.GeneratedAt,
	}
}
