package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sla-cloud/internal/audit"
	"sla-cloud/internal/migrations"
	"sla-cloud/internal/observability/metrics"
	slaapp "sla-cloud/internal/sla/application"
	"sla-cloud/internal/sla/infrastructure/locking"
	"sla-cloud/internal/sla/infrastructure/maintenance"
	slarepo "sla-cloud/internal/sla/infrastructure/postgres"
	slahttp "sla-cloud/internal/sla/interfaces/http"
	slanotify "sla-cloud/internal/sla/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	slaCfg, err := slaapp.LoadConfig()
	if err != nil {
		logger.Fatalf("sla config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if err := migrations.Up(context.Background(), db); err != nil {
		logger.Fatalf("db migrate error: %v", err)
	}

	metrics.Init(db, logger)

	agreementRepo := slarepo.NewAgreementRepository(db)
	incidentRepo := slarepo.NewIncidentRepository(db)
	measurementRepo := slarepo.NewMeasurementRepository(db)
	tenantDirectory := slarepo.NewTenantDirectory(db)
	auditRepo := audit.NewRepository(db)

	var locker slaapp.Locker = locking.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		redisLock, err := locking.NewRedisLock(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Fatalf("redis lock init error: %v", err)
		}
		defer redisLock.Close()
		locker = redisLock
	}

	notifiers := []slaapp.IncidentNotifier{slanotify.NewLogNotifier(logger)}
	if cfg.IncidentWebhookURL != "" {
		channel, err := slanotify.NewWebhookChannel(cfg.IncidentWebhookURL)
		if err != nil {
			logger.Fatalf("incident webhook init error: %v", err)
		}
		tpl, err := slanotify.NewTemplate(cfg.IncidentNotifyTemplate)
		if err != nil {
			logger.Fatalf("incident template init error: %v", err)
		}
		webhookNotifier, err := slanotify.NewNotifier(
			incidentRepo,
			channel,
			tpl,
			slanotify.WithTenantDirectory(tenantDirectory),
			slanotify.WithEscalation(cfg.IncidentEscalationAfter),
			slanotify.WithCooldown(cfg.IncidentNotifyCooldown),
			slanotify.WithDedupeWindow(cfg.IncidentNotifyDedupeWindow),
			slanotify.WithRequestTimeout(cfg.IncidentNotifyTimeout),
			slanotify.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("incident notifier init error: %v", err)
		}
		defer webhookNotifier.Close()
		notifiers = append(notifiers, webhookNotifier)
	}

	tracker, err := slaapp.NewIncidentTracker(
		incidentRepo,
		slaapp.WithNotifier(slanotify.NewMultiNotifier(notifiers...)),
		slaapp.WithNotifyTimeout(cfg.IncidentNotifyTimeout),
	)
	if err != nil {
		logger.Fatalf("incident tracker init error: %v", err)
	}
	agreementService, err := slaapp.NewAgreementService(agreementRepo, measurementRepo, nil)
	if err != nil {
		logger.Fatalf("agreement service init error: %v", err)
	}
	aggregator, err := slaapp.NewMeasurementAggregator(
		agreementRepo,
		measurementRepo,
		tracker,
		locker,
		slaapp.WithMaintenance(maintenance.NewSchedule(slaCfg.Maintenance)),
	)
	if err != nil {
		logger.Fatalf("measurement aggregator init error: %v", err)
	}
	reportGenerator, err := slaapp.NewReportGenerator(agreementService, aggregator, tenantDirectory, nil, logger)
	if err != nil {
		logger.Fatalf("report generator init error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := slaapp.NewScheduler(agreementService, aggregator, slaCfg.Schedule, logger)
	go scheduler.Start(ctx)

	handler, err := slahttp.NewHandler(
		agreementService,
		tracker,
		aggregator,
		reportGenerator,
		slahttp.WithAuditLogger(auditRepo),
		slahttp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("sla handler init error: %v", err)
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

type config struct {
	DatabaseURL                string
	HTTPAddr                   string
	ShutdownTimeout            time.Duration
	RedisAddr                  string
	RedisPassword              string
	RedisDB                    int
	IncidentWebhookURL         string
	IncidentNotifyTemplate     string
	IncidentEscalationAfter    time.Duration
	IncidentNotifyCooldown     time.Duration
	IncidentNotifyDedupeWindow time.Duration
	IncidentNotifyTimeout      time.Duration
}

func loadConfig() config {
	return config{
		DatabaseURL:                getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                   getenvDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout:            getenvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		RedisAddr:                  getenvDefault("REDIS_ADDR", ""),
		RedisPassword:              getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:                    getenvIntDefault("REDIS_DB", 0),
		IncidentWebhookURL:         getenvDefault("INCIDENT_WEBHOOK_URL", ""),
		IncidentNotifyTemplate:     getenvDefault("INCIDENT_NOTIFY_TEMPLATE", ""),
		IncidentEscalationAfter:    getenvDuration("INCIDENT_ESCALATION_AFTER", 0),
		IncidentNotifyCooldown:     getenvDuration("INCIDENT_NOTIFY_COOLDOWN", 0),
		IncidentNotifyDedupeWindow: getenvDuration("INCIDENT_NOTIFY_DEDUP_WINDOW", 0),
		IncidentNotifyTimeout:      getenvDuration("INCIDENT_NOTIFY_TIMEOUT", 5*time.Second),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
