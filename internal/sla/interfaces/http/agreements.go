package http

import (
	"net/http"
)

func (h *Handler) routeAgreements(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleListAgreements(w, r)
		case http.MethodPost:
			h.handleCreateAgreement(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.handleGetAgreement(w, r, id)
		case http.MethodPut:
			h.handleUpdateAgreement(w, r, id)
		case http.MethodDelete:
			h.handleDeleteAgreement(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	list, err := h.agreements.ListByTenant(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]agreementResponse, 0, len(list))
	for _, agreement := range list {
		out = append(out, toAgreementResponse(agreement))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req agreementRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	agreement, err := h.agreements.Create(r.Context(), req.input())
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgreementResponse(*agreement))
	h.logAudit(r, agreement.TenantID, "agreement.create", "agreement", agreement.ID, map[string]any{
		"tier":          agreement.Tier,
		"uptime_target": agreement.UptimeTarget.String(),
	})
}

func (h *Handler) handleGetAgreement(w http.ResponseWriter, r *http.Request, id string) {
	agreement, err := h.agreements.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(*agreement))
}

func (h *Handler) handleUpdateAgreement(w http.ResponseWriter, r *http.Request, id string) {
	var req agreementRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	agreement, err := h.agreements.Update(r.Context(), id, req.input())
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(*agreement))
	h.logAudit(r, agreement.TenantID, "agreement.update", "agreement", agreement.ID, map[string]any{
		"tier":          agreement.Tier,
		"uptime_target": agreement.UptimeTarget.String(),
		"active":        agreement.Active,
	})
}

func (h *Handler) handleDeleteAgreement(w http.ResponseWriter, r *http.Request, id string) {
	agreement, err := h.agreements.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.agreements.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, agreement.TenantID, "agreement.delete", "agreement", id, nil)
}
