package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sla-cloud/internal/observability/metrics"
	sla "sla-cloud/internal/sla/domain"
)

// AgreementResolver finds the agreement covering a tenant period.
type AgreementResolver interface {
	CoveringAgreement(ctx context.Context, tenantID string, period sla.Period) (*sla.Agreement, error)
}

// PeriodMeasurer reads or produces the measurement of a period.
type PeriodMeasurer interface {
	Latest(ctx context.Context, agreementID string, start, end time.Time) (*sla.Measurement, error)
	Aggregate(ctx context.Context, agreementID string, start, end time.Time) (*sla.Measurement, error)
}

// ReportGenerator composes agreement, measurement and credit into a report.
type ReportGenerator struct {
	agreements AgreementResolver
	measurer   PeriodMeasurer
	tenants    TenantDirectory
	clock      Clock
	logger     Logger
}

// NewReportGenerator constructs a generator. tenants and logger may be nil.
func NewReportGenerator(agreements AgreementResolver, measurer PeriodMeasurer, tenants TenantDirectory, clock Clock, logger Logger) (*ReportGenerator, error) {
	if agreements == nil {
		return nil, errors.New("report generator: nil agreement resolver")
	}
	if measurer == nil {
		return nil, errors.New("report generator: nil measurer")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &ReportGenerator{
		agreements: agreements,
		measurer:   measurer,
		tenants:    tenants,
		clock:      clock,
		logger:     logger,
	}, nil
}

// GenerateReport builds the tenant report for [start, end), aggregating the
// period first when no measurement exists yet.
func (g *ReportGenerator) GenerateReport(ctx context.Context, tenantID string, start, end time.Time) (report *sla.Report, err error) {
	began := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveReportGenerate(result, time.Since(began))
	}()

	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", sla.ErrValidation)
	}
	period, err := sla.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	agreement, err := g.agreements.CoveringAgreement(ctx, tenantID, period)
	if err != nil {
		return nil, err
	}
	measurement, err := g.measurement(ctx, agreement.ID, period)
	if err != nil {
		return nil, err
	}

	return &sla.Report{
		TenantID:   tenantID,
		TenantName: g.tenantName(ctx, tenantID),
		Period:     period,
		Metrics: sla.ReportMetrics{
			UptimePct:       measurement.UptimePct,
			TargetPct:       agreement.UptimeTarget,
			DowntimeMinutes: measurement.DowntimeMinutes,
		},
		Compliance: sla.ReportCompliance{
			Met:       measurement.UptimePct.GreaterThanOrEqual(agreement.UptimeTarget),
			CreditPct: sla.CalculateCredit(measurement.UptimePct, agreement.UptimeTarget, agreement.CreditPolicy),
		},
		AgreementID:   agreement.ID,
		MeasurementID: measurement.ID,
		GeneratedAt:   g.clock.Now().UTC(),
	}, nil
}

func (g *ReportGenerator) measurement(ctx context.Context, agreementID string, period sla.Period) (*sla.Measurement, error) {
	existing, err := g.measurer.Latest(ctx, agreementID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	created, err := g.measurer.Aggregate(ctx, agreementID, period.Start, period.End)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sla.ErrDuplicatePeriod) {
		return nil, err
	}
	// another caller aggregated the period first
	existing, err = g.measurer.Latest(ctx, agreementID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: measurement vanished after duplicate period", sla.ErrNotFound)
	}
	return existing, nil
}

func (g *ReportGenerator) tenantName(ctx context.Context, tenantID string) string {
	if g.tenants == nil {
		return ""
	}
	name, err := g.tenants.TenantName(ctx, tenantID)
	if err != nil {
		if g.logger != nil {
			g.logger.Printf("report generator error: tenant lookup tenant=%s err=%v", tenantID, err)
		}
		return ""
	}
	return name
}
