package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	sla "sla-cloud/internal/sla/domain"
)

// IncidentRepository persists incidents.
type IncidentRepository struct {
	db *sql.DB
}

// NewIncidentRepository constructs a repository.
func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

const incidentColumns = `id, tenant_id, component, severity, title, description, started_at,
	resolved_at, duration_minutes, status, root_cause, preventive_actions, timeline,
	created_at, updated_at`

// Get loads an incident.
func (r *IncidentRepository) Get(ctx context.Context, id string) (*sla.Incident, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("incident repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+incidentColumns+`
FROM sla_incidents
WHERE id = $1`, id)
	return scanIncident(row)
}

// Create inserts an incident.
func (r *IncidentRepository) Create(ctx context.Context, incident *sla.Incident) error {
	if r == nil || r.db == nil {
		return errors.New("incident repo: nil db")
	}
	if incident == nil {
		return errors.New("incident repo: nil incident")
	}
	timeline, err := json.Marshal(incident.Timeline)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO sla_incidents (
	id, tenant_id, component, severity, title, description, started_at,
	resolved_at, duration_minutes, status, root_cause, preventive_actions, timeline,
	created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)`,
		incident.ID, incident.TenantID, string(incident.Component), string(incident.Severity), incident.Title, incident.Description, incident.StartedAt,
		nullableTimePtr(incident.ResolvedAt), nullableDecimal(incident.DurationMinutes), string(incident.Status), incident.RootCause, incident.PreventiveActions, timeline,
		incident.CreatedAt, incident.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: incident %s exists", sla.ErrValidation, incident.ID)
	}
	return err
}

// UpdateStatus writes the mutable incident fields when the stored status
// still equals expected.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incident *sla.Incident, expected sla.Status) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("incident repo: nil db")
	}
	if incident == nil {
		return false, errors.New("incident repo: nil incident")
	}
	timeline, err := json.Marshal(incident.Timeline)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE sla_incidents
SET status = $2, resolved_at = $3, duration_minutes = $4, root_cause = $5,
	preventive_actions = $6, timeline = $7, updated_at = $8
WHERE id = $1 AND status = $9`,
		incident.ID, string(incident.Status), nullableTimePtr(incident.ResolvedAt), nullableDecimal(incident.DurationMinutes),
		incident.RootCause, incident.PreventiveActions, timeline, incident.UpdatedAt, string(expected),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}
	existing, err := r.Get(ctx, incident.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("%w: incident %s", sla.ErrNotFound, incident.ID)
	}
	return false, nil
}

// ListOverlapping returns a tenant's incidents that start before end and
// are unresolved or resolved after start.
func (r *IncidentRepository) ListOverlapping(ctx context.Context, tenantID string, start, end time.Time) ([]sla.Incident, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("incident repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+incidentColumns+`
FROM sla_incidents
WHERE tenant_id = $1 AND started_at < $3 AND (resolved_at IS NULL OR resolved_at > $2)
ORDER BY started_at ASC, id ASC`, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	return collectIncidents(rows)
}

// ListByTenant returns a tenant's incidents; an empty status matches all.
func (r *IncidentRepository) ListByTenant(ctx context.Context, tenantID string, status sla.Status) ([]sla.Incident, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("incident repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+incidentColumns+`
FROM sla_incidents
WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
ORDER BY started_at ASC, id ASC`, tenantID, string(status))
	if err != nil {
		return nil, err
	}
	return collectIncidents(rows)
}

func collectIncidents(rows *sql.Rows) ([]sla.Incident, error) {
	defer rows.Close()
	result := make([]sla.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		if incident != nil {
			result = append(result, *incident)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanIncident(row rowScanner) (*sla.Incident, error) {
	var incident sla.Incident
	var component, severity, status string
	var resolvedAt sql.NullTime
	var duration decimal.NullDecimal
	var timeline []byte
	if err := row.Scan(
		&incident.ID,
		&incident.TenantID,
		&component,
		&severity,
		&incident.Title,
		&incident.Description,
		&incident.StartedAt,
		&resolvedAt,
		&duration,
		&status,
		&incident.RootCause,
		&incident.PreventiveActions,
		&timeline,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	incident.Component = sla.Component(component)
	incident.Severity = sla.Severity(severity)
	incident.Status = sla.Status(status)
	incident.StartedAt = incident.StartedAt.UTC()
	incident.CreatedAt = incident.CreatedAt.UTC()
	incident.UpdatedAt = incident.UpdatedAt.UTC()
	if resolvedAt.Valid {
		at := resolvedAt.Time.UTC()
		incident.ResolvedAt = &at
	}
	if duration.Valid {
		d := duration.Decimal
		incident.DurationMinutes = &d
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &incident.Timeline); err != nil {
			return nil, fmt.Errorf("incident repo: decode timeline: %w", err)
		}
	}
	return &incident, nil
}

func nullableDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}
