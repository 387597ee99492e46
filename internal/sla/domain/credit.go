package sla

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// CreditTier maps a shortfall ceiling (percentage points below target) to a credit percentage.
type CreditTier struct {
	MaxShortfallPct decimal.Decimal `json:"max_shortfall_pct"`
	CreditPct       decimal.Decimal `json:"credit_pct"`
}

// CreditPolicy is an ordered tier table, ascending by MaxShortfallPct.
type CreditPolicy []CreditTier

// DefaultCreditPolicy returns the reference table: 10% within 0.5 points of
// target, 25% within 1.0, 50% within 5.0 and full credit beyond that.
func DefaultCreditPolicy() CreditPolicy {
	return CreditPolicy{
		{MaxShortfallPct: decimal.Zero, CreditPct: decimal.Zero},
		{MaxShortfallPct: decimal.RequireFromString("0.5"), CreditPct: decimal.NewFromInt(10)},
		{MaxShortfallPct: decimal.RequireFromString("1.0"), CreditPct: decimal.NewFromInt(25)},
		{MaxShortfallPct: decimal.RequireFromString("5.0"), CreditPct: decimal.NewFromInt(50)},
		{MaxShortfallPct: hundred, CreditPct: hundred},
	}
}

// Clone returns a detached copy of the policy.
func (p CreditPolicy) Clone() CreditPolicy {
	if p == nil {
		return nil
	}
	out := make(CreditPolicy, len(p))
	copy(out, p)
	return out
}

// ValidatePolicy checks the tier table invariants. Credit must never decrease
// as uptime decreases, so both bounds and credits ascend along the table.
func ValidatePolicy(policy CreditPolicy) error {
	if len(policy) == 0 {
		return fmt.Errorf("%w: empty policy", ErrPolicyInvariant)
	}
	for i, tier := range policy {
		if tier.MaxShortfallPct.IsNegative() || tier.MaxShortfallPct.GreaterThan(hundred) {
			return fmt.Errorf("%w: tier %d bound %s outside [0,100]", ErrPolicyInvariant, i, tier.MaxShortfallPct)
		}
		if tier.CreditPct.IsNegative() || tier.CreditPct.GreaterThan(hundred) {
			return fmt.Errorf("%w: tier %d credit %s outside [0,100]", ErrPolicyInvariant, i, tier.CreditPct)
		}
		if i == 0 {
			continue
		}
		prev := policy[i-1]
		if !tier.MaxShortfallPct.GreaterThan(prev.MaxShortfallPct) {
			return fmt.Errorf("%w: tier %d bound %s not above tier %d bound %s", ErrPolicyInvariant, i, tier.MaxShortfallPct, i-1, prev.MaxShortfallPct)
		}
		if tier.CreditPct.LessThan(prev.CreditPct) {
			return fmt.Errorf("%w: tier %d credit %s below tier %d credit %s", ErrPolicyInvariant, i, tier.CreditPct, i-1, prev.CreditPct)
		}
	}
	if !policy[0].CreditPct.IsZero() {
		return fmt.Errorf("%w: first tier credit must be 0", ErrPolicyInvariant)
	}
	if !policy[len(policy)-1].CreditPct.Equal(hundred) {
		return fmt.Errorf("%w: last tier credit must be 100", ErrPolicyInvariant)
	}
	return nil
}

// CalculateCredit returns the credit percentage owed for an uptime against a
// target. Meeting the target always yields zero without consulting the table.
func CalculateCredit(uptimePct, target decimal.Decimal, policy CreditPolicy) decimal.Decimal {
	if uptimePct.GreaterThanOrEqual(target) {
		return zero
	}
	if len(policy) == 0 {
		return hundred
	}
	shortfall := target.Sub(uptimePct)
	for _, tier := range policy {
		if shortfall.LessThanOrEqual(tier.MaxShortfallPct) {
			return tier.CreditPct
		}
	}
	return policy[len(policy)-1].CreditPct
}
