package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
	"sla-cloud/internal/sla/infrastructure/locking"
	"sla-cloud/internal/sla/infrastructure/maintenance"
	slarepo "sla-cloud/internal/sla/infrastructure/postgres"
)

type config struct {
	dbURL     string
	tenantID  string
	month     string
	outDir    string
	supersede bool
	reason    string
}

type reconcileRow struct {
	AgreementID string
	Drift       *slaapp.MeasurementDrift
	Missing     bool
	Corrected   string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	slaCfg, err := slaapp.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sla config:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	period, err := parseMonth(cfg.month)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	agreementRepo := slarepo.NewAgreementRepository(db)
	measurementRepo := slarepo.NewMeasurementRepository(db)
	tracker, err := slaapp.NewIncidentTracker(slarepo.NewIncidentRepository(db))
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracker:", err)
		os.Exit(2)
	}
	aggregator, err := slaapp.NewMeasurementAggregator(agreementRepo, measurementRepo, tracker, locking.NewKeyedMutex(),
		slaapp.WithMaintenance(maintenance.NewSchedule(slaCfg.Maintenance)))
	if err != nil {
		fmt.Fprintln(os.Stderr, "aggregator:", err)
		os.Exit(2)
	}

	agreements, err := loadAgreements(ctx, agreementRepo, cfg.tenantID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load agreements:", err)
		os.Exit(2)
	}

	rows := make([]reconcileRow, 0, len(agreements))
	for _, agreement := range agreements {
		row, err := reconcileAgreement(ctx, aggregator, agreement, period, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile agreement %s: %v\n", agreement.ID, err)
			os.Exit(2)
		}
		rows = append(rows, row)
	}

	if err := writeMeasurements(cfg.outDir, rows); err != nil {
		fmt.Fprintln(os.Stderr, "write measurements:", err)
		os.Exit(2)
	}
	if err := writeDriftReport(cfg.outDir, rows); err != nil {
		fmt.Fprintln(os.Stderr, "write drift report:", err)
		os.Exit(2)
	}

	fmt.Printf("Reconciliation outputs written to %s\n", cfg.outDir)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.tenantID, "tenant", getenvDefault("TENANT_ID", ""), "tenant id (optional, defaults to all active agreements)")
	flag.StringVar(&cfg.month, "month", "", "month in YYYY-MM")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.BoolVar(&cfg.supersede, "supersede", false, "append a corrected version for drifted measurements")
	flag.StringVar(&cfg.reason, "reason", "reconcile drift", "supersede reason")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.month == "" {
		return cfg, errors.New("missing --month (YYYY-MM)")
	}
	if cfg.supersede && strings.TrimSpace(cfg.reason) == "" {
		return cfg, errors.New("--reason must not be empty with --supersede")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseMonth(value string) (sla.Period, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return sla.Period{}, errors.New("month must be YYYY-MM")
	}
	return sla.MonthPeriod(t), nil
}

func loadAgreements(ctx context.Context, repo *slarepo.AgreementRepository, tenantID string) ([]sla.Agreement, error) {
	if tenantID == "" {
		return repo.ListActive(ctx)
	}
	return repo.ListByTenant(ctx, tenantID)
}

func reconcileAgreement(ctx context.Context, aggregator *slaapp.MeasurementAggregator, agreement sla.Agreement, period sla.Period, cfg config) (reconcileRow, error) {
	row := reconcileRow{AgreementID: agreement.ID}
	latest, err := aggregator.Latest(ctx, agreement.ID, period.Start, period.End)
	if err != nil {
		return row, err
	}
	if latest == nil {
		row.Missing = true
		return row, nil
	}
	drift, err := aggregator.Verify(ctx, latest.ID)
	if err != nil {
		return row, err
	}
	row.Drift = drift
	if cfg.supersede && drift.Drifted() {
		corrected, err := aggregator.Supersede(ctx, latest.ID, cfg.reason)
		if err != nil {
			return row, err
		}
		row.Corrected = corrected.ID
	}
	return row, nil
}

func writeMeasurements(outDir string, rows []reconcileRow) error {
	path := filepath.Join(outDir, "measurements.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{
		"agreement_id",
		"measurement_id",
		"tenant_id",
		"period_start",
		"period_end",
		"version",
		"downtime_minutes",
		"excluded_maintenance_minutes",
		"uptime_pct",
		"sla_met",
		"credit_amount",
		"incident_count",
		"snapshot_hash",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if row.Drift == nil {
			continue
		}
		m := row.Drift.Stored
		if err := writer.Write([]string{
			row.AgreementID,
			m.ID,
			m.TenantID,
			m.PeriodStart.Format(time.RFC3339),
			m.PeriodEnd.Format(time.RFC3339),
			strconv.Itoa(m.Version),
			m.DowntimeMinutes.String(),
			m.ExcludedMaintenanceMinutes.String(),
			m.UptimePct.String(),
			strconv.FormatBool(m.SLAMet),
			m.CreditAmount.String(),
			strconv.Itoa(len(m.Incidents)),
			m.SnapshotHash,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeDriftReport(outDir string, rows []reconcileRow) error {
	path := filepath.Join(outDir, "drift_report.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{
		"agreement_id",
		"measurement_id",
		"status",
		"hash_valid",
		"drifted_fields",
		"stored_uptime_pct",
		"recomputed_uptime_pct",
		"stored_credit",
		"recomputed_credit",
		"corrected_measurement_id",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if row.Missing {
			if err := writer.Write([]string{row.AgreementID, "", "missing", "", "", "", "", "", "", ""}); err != nil {
				return err
			}
			continue
		}
		drift := row.Drift
		status := "ok"
		switch {
		case !drift.HashValid:
			status = "tampered"
		case drift.Drifted():
			status = "drifted"
		}
		if err := writer.Write([]string{
			row.AgreementID,
			drift.Stored.ID,
			status,
			strconv.FormatBool(drift.HashValid),
			strings.Join(drift.Fields, "|"),
			drift.Stored.UptimePct.String(),
			drift.Recomputed.UptimePct.String(),
			drift.Stored.CreditAmount.String(),
			drift.Recomputed.CreditAmount.String(),
			row.Corrected,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
