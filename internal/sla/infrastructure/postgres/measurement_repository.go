package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sla "sla-cloud/internal/sla/domain"
)

// MeasurementRepository persists measurements. It never updates or deletes.
type MeasurementRepository struct {
	db *sql.DB
}

// NewMeasurementRepository constructs a repository.
func NewMeasurementRepository(db *sql.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

const measurementColumns = `id, tenant_id, agreement_id, period_start, period_end, version,
	supersedes, supersede_reason, total_minutes, downtime_minutes, excluded_maintenance_minutes,
	uptime_pct, sla_met, credit_amount, incidents, snapshot_hash, created_at`

// Create inserts a measurement. A concurrent insert of the same
// (agreement, period, version) surfaces as ErrDuplicatePeriod.
func (r *MeasurementRepository) Create(ctx context.Context, m *sla.Measurement) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if m == nil {
		return errors.New("measurement repo: nil measurement")
	}
	incidents := m.Incidents
	if incidents == nil {
		incidents = []string{}
	}
	encoded, err := json.Marshal(incidents)
	if err != nil {
		return err
	}
	var supersedes sql.NullString
	if m.Supersedes != "" {
		supersedes = sql.NullString{String: m.Supersedes, Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO sla_measurements (
	id, tenant_id, agreement_id, period_start, period_end, version,
	supersedes, supersede_reason, total_minutes, downtime_minutes, excluded_maintenance_minutes,
	uptime_pct, sla_met, credit_amount, incidents, snapshot_hash, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)`,
		m.ID, m.TenantID, m.AgreementID, m.PeriodStart, m.PeriodEnd, m.Version,
		supersedes, m.SupersedeReason, m.TotalMinutes, m.DowntimeMinutes, m.ExcludedMaintenanceMinutes,
		m.UptimePct, m.SLAMet, m.CreditAmount, encoded, m.SnapshotHash, m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: agreement %s period %s version %d", sla.ErrDuplicatePeriod, m.AgreementID, m.Period().Key(), m.Version)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: agreement %s", sla.ErrNotFound, m.AgreementID)
	}
	return err
}

// Get loads a measurement.
func (r *MeasurementRepository) Get(ctx context.Context, id string) (*sla.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+measurementColumns+`
FROM sla_measurements
WHERE id = $1`, id)
	return scanMeasurement(row)
}

// Latest returns the highest version for the exact period.
func (r *MeasurementRepository) Latest(ctx context.Context, agreementID string, start, end time.Time) (*sla.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+measurementColumns+`
FROM sla_measurements
WHERE agreement_id = $1 AND period_start = $2 AND period_end = $3
ORDER BY version DESC
LIMIT 1`, agreementID, start, end)
	return scanMeasurement(row)
}

// ListByAgreement returns all versions ordered by period then version.
func (r *MeasurementRepository) ListByAgreement(ctx context.Context, agreementID string) ([]sla.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+measurementColumns+`
FROM sla_measurements
WHERE agreement_id = $1
ORDER BY period_start ASC, version ASC`, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]sla.Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		if m != nil {
			result = append(result, *m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByAgreement counts measurements referencing an agreement.
func (r *MeasurementRepository) CountByAgreement(ctx context.Context, agreementID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("measurement repo: nil db")
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sla_measurements WHERE agreement_id = $1`, agreementID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanMeasurement(row rowScanner) (*sla.Measurement, error) {
	var m sla.Measurement
	var supersedes sql.NullString
	var incidents []byte
	if err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.AgreementID,
		&m.PeriodStart,
		&m.PeriodEnd,
		&m.Version,
		&supersedes,
		&m.SupersedeReason,
		&m.TotalMinutes,
		&m.DowntimeMinutes,
		&m.ExcludedMaintenanceMinutes,
		&m.UptimePct,
		&m.SLAMet,
		&m.CreditAmount,
		&incidents,
		&m.SnapshotHash,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.PeriodStart = m.PeriodStart.UTC()
	m.PeriodEnd = m.PeriodEnd.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	if supersedes.Valid {
		m.Supersedes = supersedes.String
	}
	if len(incidents) > 0 {
		if err := json.Unmarshal(incidents, &m.Incidents); err != nil {
			return nil, fmt.Errorf("measurement repo: decode incidents: %w", err)
		}
	}
	return &m, nil
}
