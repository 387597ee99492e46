package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	sla "sla-cloud/internal/sla/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// AgreementRepository persists agreements.
type AgreementRepository struct {
	db *sql.DB
}

// NewAgreementRepository constructs a repository.
func NewAgreementRepository(db *sql.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

const agreementColumns = `id, tenant_id, tier, uptime_target, credit_policy, custom_terms,
	effective_date, expiry_date, active, created_at, updated_at`

// Get loads an agreement.
func (r *AgreementRepository) Get(ctx context.Context, id string) (*sla.Agreement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agreement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+agreementColumns+`
FROM sla_agreements
WHERE id = $1`, id)
	return scanAgreement(row)
}

// Create inserts an agreement.
func (r *AgreementRepository) Create(ctx context.Context, agreement *sla.Agreement) error {
	if r == nil || r.db == nil {
		return errors.New("agreement repo: nil db")
	}
	if agreement == nil {
		return errors.New("agreement repo: nil agreement")
	}
	policy, terms, err := encodeAgreementJSON(agreement)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO sla_agreements (
	id, tenant_id, tier, uptime_target, credit_policy, custom_terms,
	effective_date, expiry_date, active, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`,
		agreement.ID, agreement.TenantID, string(agreement.Tier), agreement.UptimeTarget, policy, terms,
		agreement.EffectiveDate, nullableTimePtr(agreement.ExpiryDate), agreement.Active, agreement.CreatedAt, agreement.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: agreement %s exists", sla.ErrValidation, agreement.ID)
	}
	return err
}

// Update overwrites the writable fields of an agreement.
func (r *AgreementRepository) Update(ctx context.Context, agreement *sla.Agreement) error {
	if r == nil || r.db == nil {
		return errors.New("agreement repo: nil db")
	}
	if agreement == nil {
		return errors.New("agreement repo: nil agreement")
	}
	policy, terms, err := encodeAgreementJSON(agreement)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE sla_agreements
SET tier = $2, uptime_target = $3, credit_policy = $4, custom_terms = $5,
	effective_date = $6, expiry_date = $7, active = $8, updated_at = $9
WHERE id = $1`,
		agreement.ID, string(agreement.Tier), agreement.UptimeTarget, policy, terms,
		agreement.EffectiveDate, nullableTimePtr(agreement.ExpiryDate), agreement.Active, agreement.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, agreement.ID)
}

// Delete removes an agreement.
func (r *AgreementRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("agreement repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM sla_agreements WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: agreement %s", sla.ErrAgreementInUse, id)
		}
		return err
	}
	return requireAffected(res, id)
}

// ListByTenant returns a tenant's agreements, newest effective date first.
func (r *AgreementRepository) ListByTenant(ctx context.Context, tenantID string) ([]sla.Agreement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agreement repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+agreementColumns+`
FROM sla_agreements
WHERE tenant_id = $1
ORDER BY effective_date DESC, id ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectAgreements(rows)
}

// ListActive returns every active agreement.
func (r *AgreementRepository) ListActive(ctx context.Context) ([]sla.Agreement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agreement repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+agreementColumns+`
FROM sla_agreements
WHERE active
ORDER BY effective_date DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	return collectAgreements(rows)
}

func collectAgreements(rows *sql.Rows) ([]sla.Agreement, error) {
	defer rows.Close()
	result := make([]sla.Agreement, 0)
	for rows.Next() {
		agreement, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		if agreement != nil {
			result = append(result, *agreement)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgreement(row rowScanner) (*sla.Agreement, error) {
	var agreement sla.Agreement
	var tier string
	var policy []byte
	var terms []byte
	var expiry sql.NullTime
	if err := row.Scan(
		&agreement.ID,
		&agreement.TenantID,
		&tier,
		&agreement.UptimeTarget,
		&policy,
		&terms,
		&agreement.EffectiveDate,
		&expiry,
		&agreement.Active,
		&agreement.CreatedAt,
		&agreement.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	agreement.Tier = sla.Tier(tier)
	if err := json.Unmarshal(policy, &agreement.CreditPolicy); err != nil {
		return nil, fmt.Errorf("agreement repo: decode credit policy: %w", err)
	}
	if len(terms) > 0 {
		if err := json.Unmarshal(terms, &agreement.CustomTerms); err != nil {
			return nil, fmt.Errorf("agreement repo: decode custom terms: %w", err)
		}
	}
	agreement.EffectiveDate = agreement.EffectiveDate.UTC()
	agreement.CreatedAt = agreement.CreatedAt.UTC()
	agreement.UpdatedAt = agreement.UpdatedAt.UTC()
	if expiry.Valid {
		at := expiry.Time.UTC()
		agreement.ExpiryDate = &at
	}
	return &agreement, nil
}

func encodeAgreementJSON(agreement *sla.Agreement) ([]byte, []byte, error) {
	policy, err := json.Marshal(agreement.CreditPolicy)
	if err != nil {
		return nil, nil, err
	}
	terms := agreement.CustomTerms
	if terms == nil {
		terms = map[string]string{}
	}
	encodedTerms, err := json.Marshal(terms)
	if err != nil {
		return nil, nil, err
	}
	return policy, encodedTerms, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", sla.ErrNotFound, id)
	}
	return nil
}

func nullableTimePtr(value *time.Time) sql.NullTime {
	if value == nil || value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func asPgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pgErr := asPgError(err)
	return pgErr != nil && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	pgErr := asPgError(err)
	return pgErr != nil && pgErr.Code == foreignKeyViolation
}
