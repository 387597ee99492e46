package sla

import (
	"context"
	"time"
)

// AgreementRepository persists agreements. Get returns (nil, nil) when missing.
type AgreementRepository interface {
	Get(ctx context.Context, id string) (*Agreement, error)
	Create(ctx context.Context, agreement *Agreement) error
	Update(ctx context.Context, agreement *Agreement) error
	Delete(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, tenantID string) ([]Agreement, error)
	ListActive(ctx context.Context) ([]Agreement, error)
}

// IncidentRepository persists incidents. UpdateStatus is a compare-and-swap
// on the previous status and reports false when another writer won.
type IncidentRepository interface {
	Get(ctx context.Context, id string) (*Incident, error)
	Create(ctx context.Context, incident *Incident) error
	UpdateStatus(ctx context.Context, incident *Incident, expected Status) (bool, error)
	ListOverlapping(ctx context.Context, tenantID string, start, end time.Time) ([]Incident, error)
	ListByTenant(ctx context.Context, tenantID string, status Status) ([]Incident, error)
}

// MeasurementRepository is append-only: there is no update or delete.
// Create fails with ErrDuplicatePeriod when the version already exists.
type MeasurementRepository interface {
	Create(ctx context.Context, measurement *Measurement) error
	Get(ctx context.Context, id string) (*Measurement, error)
	Latest(ctx context.Context, agreementID string, start, end time.Time) (*Measurement, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]Measurement, error)
	CountByAgreement(ctx context.Context, agreementID string) (int, error)
}
