package sla

import "errors"

var (
	// ErrValidation is returned for malformed input such as unknown enum values.
	ErrValidation = errors.New("sla: validation failed")
	// ErrNotFound is returned when an agreement, incident or measurement is missing.
	ErrNotFound = errors.New("sla: not found")
	// ErrInvalidTransition is returned for an illegal incident status change.
	ErrInvalidTransition = errors.New("sla: invalid incident transition")
	// ErrInvalidState is returned when an operation is not legal in the current state.
	ErrInvalidState = errors.New("sla: invalid state")
	// ErrInvalidPeriod is returned for empty or inverted periods.
	ErrInvalidPeriod = errors.New("sla: invalid period")
	// ErrDuplicatePeriod is returned when a measurement already exists for the period.
	ErrDuplicatePeriod = errors.New("sla: measurement already exists for period")
	// ErrNoActiveAgreement is returned when no agreement covers a report period.
	ErrNoActiveAgreement = errors.New("sla: no active agreement")
	// ErrPolicyInvariant is returned for malformed or non-monotonic credit policies.
	ErrPolicyInvariant = errors.New("sla: credit policy invariant violation")
	// ErrAgreementInUse is returned when deleting an agreement referenced by measurements.
	ErrAgreementInUse = errors.New("sla: agreement referenced by measurements")
)
