package sla

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is the commercial service tier of an agreement.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierCritical Tier = "critical"
)

// IsValid reports whether the tier is known.
func (t Tier) IsValid() bool {
	switch t {
	case TierStandard, TierPremium, TierCritical:
		return true
	default:
		return false
	}
}

// Agreement is a tenant's uptime target and credit policy.
type Agreement struct {
	ID            string
	TenantID      string
	Tier          Tier
	UptimeTarget  decimal.Decimal
	CreditPolicy  CreditPolicy
	CustomTerms   map[string]string
	EffectiveDate time.Time
	ExpiryDate    *time.Time
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks field ranges and the credit policy invariants.
func (a *Agreement) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil agreement", ErrValidation)
	}
	if a.TenantID == "" {
		return fmt.Errorf("%w: tenant id required", ErrValidation)
	}
	if !a.Tier.IsValid() {
		return fmt.Errorf("%w: unknown tier %q", ErrValidation, a.Tier)
	}
	if !a.UptimeTarget.IsPositive() || a.UptimeTarget.GreaterThan(hundred) {
		return fmt.Errorf("%w: uptime target %s outside (0,100]", ErrValidation, a.UptimeTarget)
	}
	if !a.UptimeTarget.Equal(a.UptimeTarget.Round(3)) {
		return fmt.Errorf("%w: uptime target %s exceeds 3 decimal places", ErrValidation, a.UptimeTarget)
	}
	if a.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: effective date required", ErrValidation)
	}
	if a.ExpiryDate != nil && !a.ExpiryDate.After(a.EffectiveDate) {
		return fmt.Errorf("%w: expiry date must be after effective date", ErrValidation)
	}
	return ValidatePolicy(a.CreditPolicy)
}

// Covers reports whether the agreement is active for the whole period.
func (a *Agreement) Covers(periodStart, periodEnd time.Time) bool {
	if a == nil || !a.Active {
		return false
	}
	if a.EffectiveDate.After(periodStart) {
		return false
	}
	if a.ExpiryDate != nil && a.ExpiryDate.Before(periodEnd) {
		return false
	}
	return true
}

// Clone returns a deep copy.
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	out := *a
	out.CreditPolicy = a.CreditPolicy.Clone()
	if a.CustomTerms != nil {
		out.CustomTerms = make(map[string]string, len(a.CustomTerms))
		for k, v := range a.CustomTerms {
			out.CustomTerms[k] = v
		}
	}
	if a.ExpiryDate != nil {
		expiry := *a.ExpiryDate
		out.ExpiryDate = &expiry
	}
	return &out
}
