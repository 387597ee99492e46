package http

import (
	"net/http"

	slaapp "sla-cloud/internal/sla/application"
	sla "sla-cloud/internal/sla/domain"
)

func (h *Handler) routeIncidents(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleListIncidents(w, r)
		case http.MethodPost:
			h.handleOpenIncident(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 1 && parts[0] == "period":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleIncidentsForPeriod(w, r)
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGetIncident(w, r, parts[0])
	case len(parts) == 2:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "transition":
			h.handleTransition(w, r, parts[0])
		case "postmortem":
			h.handlePostmortem(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	status := sla.Status(r.URL.Query().Get("status"))
	list, err := h.incidents.ListByTenant(r.Context(), tenantID, status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeIncidents(w, list)
}

func (h *Handler) handleIncidentsForPeriod(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.incidents.ListForPeriod(r.Context(), tenantID, from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeIncidents(w, list)
}

func writeIncidents(w http.ResponseWriter, list []sla.Incident) {
	out := make([]incidentResponse, 0, len(list))
	for _, incident := range list {
		out = append(out, toIncidentResponse(incident))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleOpenIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	incident, err := h.incidents.Open(r.Context(), slaapp.OpenIncidentInput{
		TenantID:    req.TenantID,
		Component:   sla.Component(req.Component),
		Severity:    sla.Severity(req.Severity),
		Title:       req.Title,
		Description: req.Description,
		StartedAt:   req.StartedAt,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentResponse(*incident))
	h.logAudit(r, incident.TenantID, "incident.open", "incident", incident.ID, map[string]any{
		"component": incident.Component,
		"severity":  incident.Severity,
	})
}

func (h *Handler) handleGetIncident(w http.ResponseWriter, r *http.Request, id string) {
	incident, err := h.incidents.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentResponse(*incident))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, id string) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	incident, err := h.incidents.Transition(r.Context(), id, sla.Status(req.Status), req.Notes, req.ResolvedAt)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentResponse(*incident))
	h.logAudit(r, incident.TenantID, "incident.transition", "incident", incident.ID, map[string]any{
		"status": incident.Status,
	})
}

func (h *Handler) handlePostmortem(w http.ResponseWriter, r *http.Request, id string) {
	var req postmortemRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	incident, err := h.incidents.EnrichPostmortem(r.Context(), id, req.RootCause, req.PreventiveActions)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentResponse(*incident))
	h.logAudit(r, incident.TenantID, "incident.postmortem", "incident", incident.ID, nil)
}
