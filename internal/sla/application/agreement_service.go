package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sla "sla-cloud/internal/sla/domain"
)

// AgreementInput carries writable agreement fields. A nil CreditPolicy
// selects the default table and a nil Active means active.
type AgreementInput struct {
	TenantID      string
	Tier          sla.Tier
	UptimeTarget  decimal.Decimal
	CreditPolicy  sla.CreditPolicy
	CustomTerms   map[string]string
	EffectiveDate time.Time
	ExpiryDate    *time.Time
	Active        *bool
}

// AgreementService manages SLA agreements.
type AgreementService struct {
	agreements   sla.AgreementRepository
	measurements sla.MeasurementRepository
	clock        Clock
}

// NewAgreementService constructs a service.
func NewAgreementService(agreements sla.AgreementRepository, measurements sla.MeasurementRepository, clock Clock) (*AgreementService, error) {
	if agreements == nil {
		return nil, errors.New("agreement service: nil agreement repo")
	}
	if measurements == nil {
		return nil, errors.New("agreement service: nil measurement repo")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &AgreementService{agreements: agreements, measurements: measurements, clock: clock}, nil
}

// Create validates and stores a new agreement.
func (s *AgreementService) Create(ctx context.Context, input AgreementInput) (*sla.Agreement, error) {
	now := s.clock.Now().UTC()
	agreement := &sla.Agreement{
		ID:        uuid.NewString(),
		Active:    true,
		CreatedAt: now,
	}
	applyAgreementInput(agreement, input, now)
	if err := agreement.Validate(); err != nil {
		return nil, err
	}
	if err := s.agreements.Create(ctx, agreement); err != nil {
		return nil, err
	}
	return agreement, nil
}

// Update replaces the writable fields of an agreement.
func (s *AgreementService) Update(ctx context.Context, id string, input AgreementInput) (*sla.Agreement, error) {
	agreement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.TenantID == "" {
		input.TenantID = agreement.TenantID
	}
	if input.TenantID != agreement.TenantID {
		return nil, fmt.Errorf("%w: tenant of an agreement cannot change", sla.ErrValidation)
	}
	applyAgreementInput(agreement, input, s.clock.Now().UTC())
	if err := agreement.Validate(); err != nil {
		return nil, err
	}
	if err := s.agreements.Update(ctx, agreement); err != nil {
		return nil, err
	}
	return agreement, nil
}

// Get loads an agreement.
func (s *AgreementService) Get(ctx context.Context, id string) (*sla.Agreement, error) {
	agreement, err := s.agreements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		return nil, fmt.Errorf("%w: agreement %s", sla.ErrNotFound, id)
	}
	return agreement, nil
}

// ListByTenant returns a tenant's agreements.
func (s *AgreementService) ListByTenant(ctx context.Context, tenantID string) ([]sla.Agreement, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", sla.ErrValidation)
	}
	return s.agreements.ListByTenant(ctx, tenantID)
}

// Delete removes an agreement that no measurement references.
func (s *AgreementService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.measurements.CountByAgreement(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d measurements", sla.ErrAgreementInUse, count)
	}
	return s.agreements.Delete(ctx, id)
}

// CoveringAgreement returns the active agreement covering the whole period.
// When several match, the latest effective date wins.
func (s *AgreementService) CoveringAgreement(ctx context.Context, tenantID string, period sla.Period) (*sla.Agreement, error) {
	agreements, err := s.agreements.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var selected *sla.Agreement
	for i := range agreements {
		candidate := &agreements[i]
		if !candidate.Covers(period.Start, period.End) {
			continue
		}
		if selected == nil || candidate.EffectiveDate.After(selected.EffectiveDate) {
			selected = candidate
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("%w: tenant %s", sla.ErrNoActiveAgreement, tenantID)
	}
	return selected.Clone(), nil
}

// ListActive returns every active agreement.
func (s *AgreementService) ListActive(ctx context.Context) ([]sla.Agreement, error) {
	return s.agreements.ListActive(ctx)
}

func applyAgreementInput(agreement *sla.Agreement, input AgreementInput, now time.Time) {
	agreement.TenantID = input.TenantID
	agreement.Tier = input.Tier
	agreement.UptimeTarget = input.UptimeTarget
	agreement.CreditPolicy = input.CreditPolicy.Clone()
	if agreement.CreditPolicy == nil {
		agreement.CreditPolicy = sla.DefaultCreditPolicy()
	}
	agreement.CustomTerms = input.CustomTerms
	agreement.EffectiveDate = input.EffectiveDate.UTC()
	agreement.ExpiryDate = nil
	if input.ExpiryDate != nil {
		expiry := input.ExpiryDate.UTC()
		agreement.ExpiryDate = &expiry
	}
	if input.Active != nil {
		agreement.Active = *input.Active
	}
	agreement.UpdatedAt = now
}
