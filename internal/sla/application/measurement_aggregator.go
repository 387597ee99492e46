package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sla-cloud/internal/observability/metrics"
	sla "sla-cloud/internal/sla/domain"
)

// IncidentLister returns incidents overlapping a period.
type IncidentLister interface {
	ListForPeriod(ctx context.Context, tenantID string, start, end time.Time) ([]sla.Incident, error)
}

// MeasurementAggregator rolls a period's incidents into an immutable measurement.
type MeasurementAggregator struct {
	agreements   sla.AgreementRepository
	measurements sla.MeasurementRepository
	incidents    IncidentLister
	locker       Locker
	maintenance  MaintenanceSchedule
	clock        Clock
}

// AggregatorOption customizes the aggregator.
type AggregatorOption func(*MeasurementAggregator)

// WithMaintenance assigns the maintenance schedule.
func WithMaintenance(schedule MaintenanceSchedule) AggregatorOption {
	return func(a *MeasurementAggregator) {
		a.maintenance = schedule
	}
}

// WithAggregatorClock assigns a clock.
func WithAggregatorClock(clock Clock) AggregatorOption {
	return func(a *MeasurementAggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewMeasurementAggregator constructs an aggregator.
func NewMeasurementAggregator(agreements sla.AgreementRepository, measurements sla.MeasurementRepository, incidents IncidentLister, locker Locker, opts ...AggregatorOption) (*MeasurementAggregator, error) {
	if agreements == nil {
		return nil, errors.New("measurement aggregator: nil agreement repo")
	}
	if measurements == nil {
		return nil, errors.New("measurement aggregator: nil measurement repo")
	}
	if incidents == nil {
		return nil, errors.New("measurement aggregator: nil incident lister")
	}
	if locker == nil {
		return nil, errors.New("measurement aggregator: nil locker")
	}
	aggregator := &MeasurementAggregator{
		agreements:   agreements,
		measurements: measurements,
		incidents:    incidents,
		locker:       locker,
		clock:        systemClock{},
	}
	for _, opt := range opts {
		opt(aggregator)
	}
	return aggregator, nil
}

// Aggregate computes and persists version 1 of the period's measurement.
// It fails with ErrDuplicatePeriod when any version already exists.
func (a *MeasurementAggregator) Aggregate(ctx context.Context, agreementID string, start, end time.Time) (m *sla.Measurement, err error) {
	began := time.Now()
	defer func() {
		metrics.ObserveMeasurementAggregate(aggregateResult(err), time.Since(began))
	}()

	period, err := sla.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	agreement, err := a.loadAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}

	unlock, err := a.locker.Lock(ctx, lockKey(agreementID, period))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := a.measurements.Latest(ctx, agreementID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s version %d", sla.ErrDuplicatePeriod, existing.ID, existing.Version)
	}

	m, err = a.compute(ctx, agreement, period, 1)
	if err != nil {
		return nil, err
	}
	if err := a.measurements.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Supersede recomputes the period of the latest measurement and appends the
// next version. The replaced record is left untouched.
func (a *MeasurementAggregator) Supersede(ctx context.Context, measurementID, reason string) (m *sla.Measurement, err error) {
	began := time.Now()
	defer func() {
		metrics.ObserveMeasurementAggregate(aggregateResult(err), time.Since(began))
	}()

	if reason == "" {
		return nil, fmt.Errorf("%w: supersede reason required", sla.ErrValidation)
	}
	previous, err := a.Get(ctx, measurementID)
	if err != nil {
		return nil, err
	}
	period := previous.Period()

	unlock, err := a.locker.Lock(ctx, lockKey(previous.AgreementID, period))
	if err != nil {
		return nil, err
	}
	defer unlock()

	latest, err := a.measurements.Latest(ctx, previous.AgreementID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.ID != previous.ID {
		return nil, fmt.Errorf("%w: measurement %s is not the latest version", sla.ErrInvalidState, measurementID)
	}
	agreement, err := a.loadAgreement(ctx, previous.AgreementID)
	if err != nil {
		return nil, err
	}

	m, err = a.compute(ctx, agreement, period, latest.Version+1)
	if err != nil {
		return nil, err
	}
	m.Supersedes = latest.ID
	m.SupersedeReason = reason
	if m.SnapshotHash, err = sla.ComputeSnapshotHash(m); err != nil {
		return nil, err
	}
	if err := a.measurements.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get loads a measurement.
func (a *MeasurementAggregator) Get(ctx context.Context, id string) (*sla.Measurement, error) {
	m, err := a.measurements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: measurement %s", sla.ErrNotFound, id)
	}
	return m, nil
}

// Latest returns the newest version for the exact period, or nil.
func (a *MeasurementAggregator) Latest(ctx context.Context, agreementID string, start, end time.Time) (*sla.Measurement, error) {
	period, err := sla.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	return a.measurements.Latest(ctx, agreementID, period.Start, period.End)
}

// ListByAgreement returns every measurement version of an agreement.
func (a *MeasurementAggregator) ListByAgreement(ctx context.Context, agreementID string) ([]sla.Measurement, error) {
	if agreementID == "" {
		return nil, fmt.Errorf("%w: agreement id required", sla.ErrValidation)
	}
	return a.measurements.ListByAgreement(ctx, agreementID)
}

func (a *MeasurementAggregator) loadAgreement(ctx context.Context, id string) (*sla.Agreement, error) {
	agreement, err := a.agreements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		return nil, fmt.Errorf("%w: agreement %s", sla.ErrNotFound, id)
	}
	return agreement, nil
}

func (a *MeasurementAggregator) compute(ctx context.Context, agreement *sla.Agreement, period sla.Period, version int) (*sla.Measurement, error) {
	incidents, err := a.incidents.ListForPeriod(ctx, agreement.TenantID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	downtime := decimal.Zero
	ids := make([]string, 0, len(incidents))
	for i := range incidents {
		downtime = downtime.Add(sla.IncidentDowntime(period, &incidents[i]))
		ids = append(ids, incidents[i].ID)
	}
	downtime = downtime.Round(2)

	excluded := decimal.Zero
	if a.maintenance != nil {
		windows, err := a.maintenance.Windows(ctx, agreement.TenantID, period)
		if err != nil {
			return nil, err
		}
		excluded = period.MergedMinutes(windows)
	}

	uptime, err := sla.ComputeUptime(period, downtime, excluded)
	if err != nil {
		return nil, err
	}
	m := &sla.Measurement{
		ID:                         sla.BuildMeasurementID(agreement.ID, period, version),
		TenantID:                   agreement.TenantID,
		AgreementID:                agreement.ID,
		PeriodStart:                period.Start,
		PeriodEnd:                  period.End,
		Version:                    version,
		TotalMinutes:               uptime.TotalMinutes,
		DowntimeMinutes:            uptime.DowntimeMinutes,
		ExcludedMaintenanceMinutes: uptime.ExcludedMinutes,
		UptimePct:                  uptime.UptimePct,
		SLAMet:                     uptime.UptimePct.GreaterThanOrEqual(agreement.UptimeTarget),
		CreditAmount:               sla.CalculateCredit(uptime.UptimePct, agreement.UptimeTarget, agreement.CreditPolicy),
		Incidents:                  ids,
		CreatedAt:                  a.clock.Now().UTC().Truncate(time.Microsecond),
	}
	if m.SnapshotHash, err = sla.ComputeSnapshotHash(m); err != nil {
		return nil, err
	}
	return m, nil
}

func lockKey(agreementID string, period sla.Period) string {
	return "sla:aggregate:" + agreementID + ":" + period.Start.Format(time.RFC3339)
}

func aggregateResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, sla.ErrDuplicatePeriod):
		return metrics.ResultDuplicate
	default:
		return metrics.ResultError
	}
}
