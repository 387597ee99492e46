package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
	slarepo "sla-cloud/internal/sla/infrastructure/postgres"
)

type config struct {
	dsn                string
	baseURL            string
	tenantPrefix       string
	tenantCount        int
	month              string
	incidentsPerTenant int
	uptimeTarget       string
	generateReports    bool
	measurementIDsOut  string
}

var (
	seedComponents = []sla.Component{sla.ComponentAPI, sla.ComponentDatabase, sla.ComponentWeb, sla.ComponentQueue}
	seedSeverities = []sla.Severity{sla.Sev1, sla.Sev2, sla.Sev3, sla.Sev4}
	seedTiers      = []sla.Tier{sla.TierStandard, sla.TierPremium, sla.TierCritical}
)

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.tenantCount <= 0 {
		log.Fatal("tenant-count must be > 0")
	}
	if cfg.incidentsPerTenant < 0 {
		log.Fatal("incidents-per-tenant must be >= 0")
	}
	target, err := decimal.NewFromString(cfg.uptimeTarget)
	if err != nil {
		log.Fatalf("invalid uptime-target: %v", err)
	}
	period, err := parseMonth(cfg.month)
	if err != nil {
		log.Fatalf("invalid month: %v", err)
	}

	tenantIDs := buildTenantIDs(cfg.tenantPrefix, cfg.tenantCount)

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	tenants := slarepo.NewTenantDirectory(db)
	agreements, err := slaapp.NewAgreementService(slarepo.NewAgreementRepository(db), slarepo.NewMeasurementRepository(db), nil)
	if err != nil {
		log.Fatalf("agreement service: %v", err)
	}
	tracker, err := slaapp.NewIncidentTracker(slarepo.NewIncidentRepository(db))
	if err != nil {
		log.Fatalf("incident tracker: %v", err)
	}

	log.Printf("seeding tenants and agreements: tenants=%d month=%s", cfg.tenantCount, cfg.month)
	for idx, tenantID := range tenantIDs {
		if err := tenants.Upsert(ctx, tenantID, fmt.Sprintf("Perf Tenant %04d", idx+1)); err != nil {
			log.Fatalf("seed tenant %s: %v", tenantID, err)
		}
		if _, err := agreements.Create(ctx, slaapp.AgreementInput{
			TenantID:      tenantID,
			Tier:          seedTiers[idx%len(seedTiers)],
			UptimeTarget:  target,
			EffectiveDate: period.Start,
		}); err != nil {
			log.Fatalf("seed agreement %s: %v", tenantID, err)
		}
	}

	if cfg.incidentsPerTenant > 0 {
		log.Printf("seeding incidents: tenants=%d per_tenant=%d", cfg.tenantCount, cfg.incidentsPerTenant)
		if err := seedIncidents(ctx, tracker, tenantIDs, period, cfg.incidentsPerTenant); err != nil {
			log.Fatalf("seed incidents: %v", err)
		}
	}

	if cfg.generateReports {
		if cfg.baseURL == "" {
			log.Fatal("base-url is required when generate-reports is enabled")
		}
		log.Printf("generating reports: month=%s tenants=%d", cfg.month, cfg.tenantCount)
		ids, err := generateReports(ctx, cfg.baseURL, tenantIDs, period)
		if err != nil {
			log.Fatalf("generate reports: %v", err)
		}
		if cfg.measurementIDsOut != "" {
			if err := writeLines(cfg.measurementIDsOut, ids); err != nil {
				log.Fatalf("write measurement ids: %v", err)
			}
			log.Printf("measurement ids written to %s", cfg.measurementIDsOut)
		}
	}

	log.Printf("perf seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", ""), "API base URL for report generation")
	flag.StringVar(&cfg.tenantPrefix, "tenant-prefix", envOrDefault("TENANT_PREFIX", "tenant-perf-"), "tenant id prefix")
	flag.IntVar(&cfg.tenantCount, "tenant-count", envOrInt("TENANT_COUNT", 10), "number of tenants to seed")
	flag.StringVar(&cfg.month, "month", envOrDefault("SEED_MONTH", ""), "month to seed (YYYY-MM), defaults to last month")
	flag.IntVar(&cfg.incidentsPerTenant, "incidents-per-tenant", envOrInt("INCIDENTS_PER_TENANT", 3), "resolved incidents per tenant")
	flag.StringVar(&cfg.uptimeTarget, "uptime-target", envOrDefault("UPTIME_TARGET", "99.9"), "agreement uptime target")
	flag.BoolVar(&cfg.generateReports, "generate-reports", envOrBool("GENERATE_REPORTS", false), "generate reports via API")
	flag.StringVar(&cfg.measurementIDsOut, "measurement-ids-out", envOrDefault("MEASUREMENT_IDS_OUT", ""), "output file for measurement IDs")
	flag.Parse()
	return cfg
}

func parseMonth(value string) (sla.Period, error) {
	if strings.TrimSpace(value) == "" {
		return sla.MonthPeriod(time.Now().UTC().AddDate(0, -1, 0)), nil
	}
	parsed, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return sla.Period{}, err
	}
	return sla.MonthPeriod(parsed), nil
}

func buildTenantIDs(prefix string, count int) []string {
	list := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		list = append(list, fmt.Sprintf("%s%04d", prefix, i))
	}
	return list
}

// seedIncidents spreads resolved incidents evenly over the period with
// durations between 5 and 95 minutes.
func seedIncidents(ctx context.Context, tracker *slaapp.IncidentTracker, tenants []string, period sla.Period, perTenant int) error {
	span := period.End.Sub(period.Start)
	step := span / time.Duration(perTenant+1)
	for idx, tenantID := range tenants {
		for n := 0; n < perTenant; n++ {
			started := period.Start.Add(step * time.Duration(n+1)).Add(time.Duration(idx) * time.Minute)
			duration := time.Duration(5+((idx+n)*17)%91) * time.Minute
			incident, err := tracker.Open(ctx, slaapp.OpenIncidentInput{
				TenantID:  tenantID,
				Component: seedComponents[(idx+n)%len(seedComponents)],
				Severity:  seedSeverities[(idx+n)%len(seedSeverities)],
				Title:     fmt.Sprintf("perf incident %d", n+1),
				StartedAt: started,
			})
			if err != nil {
				return err
			}
			for _, status := range []sla.Status{sla.StatusIdentified, sla.StatusMonitoring} {
				if _, err := tracker.Transition(ctx, incident.ID, status, "", nil); err != nil {
					return err
				}
			}
			resolvedAt := started.Add(duration)
			if _, err := tracker.Transition(ctx, incident.ID, sla.StatusResolved, "seeded", &resolvedAt); err != nil {
				return err
			}
		}
		log.Printf("seeded incidents tenant %s (%d/%d)", tenantID, idx+1, len(tenants))
	}
	return nil
}

func generateReports(ctx context.Context, baseURL string, tenants []string, period sla.Period) ([]string, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	baseURL = strings.TrimRight(baseURL, "/")
	ids := make([]string, 0, len(tenants))
	for _, tenantID := range tenants {
		query := url.Values{}
		query.Set("tenant_id", tenantID)
		query.Set("from", period.Start.Format(time.RFC3339))
		query.Set("to", period.End.Format(time.RFC3339))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/reports?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		var respBody struct {
			MeasurementID string `json:"measurement_id"`
		}
		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("generate report failed for %s: http %d", tenantID, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}
		_ = resp.Body.Close()
		if respBody.MeasurementID == "" {
			return nil, fmt.Errorf("empty measurement id for %s", tenantID)
		}
		ids = append(ids, respBody.MeasurementID)
	}
	return ids, nil
}

func writeLines(path string, lines []string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := strings.Join(lines, "\n")
	return os.WriteFile(path, []byte(content), 0o644)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
