package http

import (
	"net/http"
	"time"

	"sla-cloud/internal/observability/metrics"
	sla "sla-cloud/internal/sla/domain"
)

func (h *Handler) routeReports(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case len(parts) == 0:
		h.handleReport(w, r)
	case len(parts) == 1 && parts[0] == "export.pdf":
		h.handleExport(w, r, "pdf")
	case len(parts) == 1 && parts[0] == "export.xlsx":
		h.handleExport(w, r, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) (*sla.Report, bool) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return nil, false
	}
	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	report, err := h.reports.GenerateReport(r.Context(), tenantID, from, to)
	if err != nil {
		h.respondError(w, err)
		return nil, false
	}
	return report, true
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.generate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(*report))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultError
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	report, ok := h.generate(w, r)
	if !ok {
		return
	}
	incidents, err := h.incidents.ListForPeriod(r.Context(), report.TenantID, report.Period.Start, report.Period.End)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "pdf":
		body, err = BuildReportPDF(report, incidents)
		contentType = "application/pdf"
	default:
		body, err = BuildReportXLSX(report, incidents)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	result = metrics.ResultSuccess

	filename := "sla-report-" + report.TenantID + "-" + report.Period.Start.Format("2006-01") + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	h.logAudit(r, report.TenantID, "report.export", "report", report.MeasurementID, map[string]any{"format": format})
}
