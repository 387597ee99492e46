package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sla "sla-cloud/internal/sla/domain"
)

// TenantDirectory reads tenant names from the tenants table.
type TenantDirectory struct {
	db *sql.DB
}

// NewTenantDirectory constructs a directory.
func NewTenantDirectory(db *sql.DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

// TenantName returns the display name, or ErrNotFound.
func (d *TenantDirectory) TenantName(ctx context.Context, tenantID string) (string, error) {
	if d == nil || d.db == nil {
		return "", errors.New("tenant directory: nil db")
	}
	var name string
	err := d.db.QueryRowContext(ctx, `SELECT name FROM tenants WHERE id = $1`, tenantID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: tenant %s", sla.ErrNotFound, tenantID)
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// Upsert records a tenant name.
func (d *TenantDirectory) Upsert(ctx context.Context, tenantID, name string) error {
	if d == nil || d.db == nil {
		return errors.New("tenant directory: nil db")
	}
	_, err := d.db.ExecContext(ctx, `
INSERT INTO tenants (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, tenantID, name)
	return err
}
