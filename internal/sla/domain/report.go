package sla

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the tenant-facing summary of one period.
type Report struct {
	TenantID      string
	TenantName    string
	Period        Period
	Metrics       ReportMetrics
	Compliance    ReportCompliance
	AgreementID   string
	MeasurementID string
	GeneratedAt   time.Time
}

// ReportMetrics holds the measured figures.
type ReportMetrics struct {
	UptimePct       decimal.Decimal
	TargetPct       decimal.Decimal
	DowntimeMinutes decimal.Decimal
}

// ReportCompliance holds the verdict and the credit owed.
type ReportCompliance struct {
	Met       bool
	CreditPct decimal.Decimal
}
