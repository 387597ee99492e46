package application

import (
	"context"
	"errors"
	"time"

	"sla-cloud/internal/observability/metrics"
	sla "sla-cloud/internal/sla/domain"
)

// ActiveAgreementLister lists agreements eligible for scheduled aggregation.
type ActiveAgreementLister interface {
	ListActive(ctx context.Context) ([]sla.Agreement, error)
}

// PeriodAggregator persists the measurement of a period.
type PeriodAggregator interface {
	Aggregate(ctx context.Context, agreementID string, start, end time.Time) (*sla.Measurement, error)
}

// Scheduler aggregates the previous calendar month on a monthly schedule.
type Scheduler struct {
	agreements ActiveAgreementLister
	aggregator PeriodAggregator
	schedule   ScheduleConfig
	logger     Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(agreements ActiveAgreementLister, aggregator PeriodAggregator, schedule ScheduleConfig, logger Logger) *Scheduler {
	return &Scheduler{
		agreements: agreements,
		aggregator: aggregator,
		schedule:   schedule,
		logger:     logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.agreements == nil || s.aggregator == nil || s.schedule.Disabled {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.schedule.At)
	if err != nil {
		return false
	}
	return now.Day() == s.schedule.MonthlyDay && now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	period := sla.MonthPeriod(sla.MonthPeriod(now).Start.AddDate(0, -1, 0))
	agreements, err := s.agreements.ListActive(ctx)
	if err != nil {
		s.logf("sla schedule error: list agreements err=%v", err)
		metrics.IncSchedulerRun(metrics.ResultError)
		return
	}
	for _, agreement := range agreements {
		if !agreement.Covers(period.Start, period.End) {
			continue
		}
		_, err := s.aggregator.Aggregate(ctx, agreement.ID, period.Start, period.End)
		switch {
		case err == nil:
			metrics.IncSchedulerRun(metrics.ResultSuccess)
		case errors.Is(err, sla.ErrDuplicatePeriod):
			metrics.IncSchedulerRun(metrics.ResultDuplicate)
		default:
			metrics.IncSchedulerRun(metrics.ResultError)
			s.logf("sla schedule error: agreement=%s period=%s err=%v", agreement.ID, period.Key(), err)
		}
	}
}

func (s *Scheduler) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Printf(format, v...)
	}
}
