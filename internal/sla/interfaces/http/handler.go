package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"sla-cloud/internal/audit"
	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
)

const timeLayout = time.RFC3339

// Handler serves the SLA endpoints under /api/v1.
type Handler struct {
	agreements   *slaapp.AgreementService
	incidents    *slaapp.IncidentTracker
	measurements *slaapp.MeasurementAggregator
	reports      *slaapp.ReportGenerator
	auditLogger  audit.Logger
	logger       slaapp.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithAuditLogger records mutating requests.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// WithLogger reports unexpected failures.
func WithLogger(logger slaapp.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a Handler.
func NewHandler(agreements *slaapp.AgreementService, incidents *slaapp.IncidentTracker, measurements *slaapp.MeasurementAggregator, reports *slaapp.ReportGenerator, opts ...Option) (*Handler, error) {
	if agreements == nil {
		return nil, errors.New("sla handler: nil agreement service")
	}
	if incidents == nil {
		return nil, errors.New("sla handler: nil incident tracker")
	}
	if measurements == nil {
		return nil, errors.New("sla handler: nil measurement aggregator")
	}
	if reports == nil {
		return nil, errors.New("sla handler: nil report generator")
	}
	h := &Handler{
		agreements:   agreements,
		incidents:    incidents,
		measurements: measurements,
		reports:      reports,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the handler on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, prefix := range []string{"agreements", "incidents", "measurements", "reports"} {
		mux.Handle("/api/v1/"+prefix, h)
		mux.Handle("/api/v1/"+prefix+"/", h)
	}
}

// ServeHTTP routes /api/v1/{agreements,incidents,measurements,reports}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	if path == r.URL.Path {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch parts[0] {
	case "agreements":
		h.routeAgreements(w, r, parts[1:])
	case "incidents":
		h.routeIncidents(w, r, parts[1:])
	case "measurements":
		h.routeMeasurements(w, r, parts[1:])
	case "reports":
		h.routeReports(w, r, parts[1:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logf("sla handler error: err=%v", err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, sla.ErrValidation),
		errors.Is(err, sla.ErrInvalidPeriod),
		errors.Is(err, sla.ErrPolicyInvariant):
		return http.StatusBadRequest
	case errors.Is(err, sla.ErrNotFound),
		errors.Is(err, sla.ErrNoActiveAgreement):
		return http.StatusNotFound
	case errors.Is(err, sla.ErrDuplicatePeriod),
		errors.Is(err, sla.ErrInvalidTransition),
		errors.Is(err, sla.ErrInvalidState),
		errors.Is(err, sla.ErrAgreementInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func (h *Handler) logAudit(r *http.Request, tenantID, action, resourceType, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	entry := audit.FromRequest(r, audit.Entry{
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
	})
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logf("sla handler error: audit action=%s resource=%s err=%v", action, resourceID, err)
	}
}

func (h *Handler) logf(format string, v ...any) {
	if h.logger != nil {
		h.logger.Printf(format, v...)
	}
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
