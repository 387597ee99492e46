package http

import (
	"net/http"
)

func (h *Handler) routeMeasurements(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleListMeasurements(w, r)
	case len(parts) == 1 && parts[0] == "aggregate":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAggregate(w, r)
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGetMeasurement(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "verify":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleVerify(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "supersede":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSupersede(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	agreementID := r.URL.Query().Get("agreement_id")
	if agreementID == "" {
		http.Error(w, "agreement_id is required", http.StatusBadRequest)
		return
	}
	list, err := h.measurements.ListByAgreement(r.Context(), agreementID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]measurementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMeasurementResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.AgreementID == "" {
		http.Error(w, "agreement_id is required", http.StatusBadRequest)
		return
	}
	m, err := h.measurements.Aggregate(r.Context(), req.AgreementID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMeasurementResponse(*m))
	h.logAudit(r, m.TenantID, "measurement.aggregate", "measurement", m.ID, map[string]any{
		"agreement_id": m.AgreementID,
		"period_start": m.PeriodStart.Format(timeLayout),
		"period_end":   m.PeriodEnd.Format(timeLayout),
	})
}

func (h *Handler) handleGetMeasurement(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.measurements.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeasurementResponse(*m))
}

func (h *Handler) handleSupersede(w http.ResponseWriter, r *http.Request, id string) {
	var req supersedeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	m, err := h.measurements.Supersede(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMeasurementResponse(*m))
	h.logAudit(r, m.TenantID, "measurement.supersede", "measurement", m.ID, map[string]any{
		"supersedes": m.Supersedes,
		"reason":     m.SupersedeReason,
		"version":    m.Version,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request, id string) {
	drift, err := h.measurements.Verify(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	fields := drift.Fields
	if fields == nil {
		fields = []string{}
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Stored:        toMeasurementResponse(drift.Stored),
		Recomputed:    toMeasurementResponse(drift.Recomputed),
		HashValid:     drift.HashValid,
		Drifted:       drift.Drifted(),
		DriftedFields: fields,
	})
}
