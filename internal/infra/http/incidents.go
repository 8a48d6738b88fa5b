package http

import (
	"net/http"

	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/workflow"
)

type incidentBody struct {
	Type             string `json:"type"`
	Description      string `json:"description"`
	AffectedQuantity int64  `json:"affected_quantity"`
	Reporter         string `json:"reporter"`
	EvidencePath     string `json:"evidence_path"`
}

func (h *handler) registerIncident(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body incidentBody
	if err := h.readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	inc, err := h.eng.RegisterIncident(r.Context(), workflow.IncidentInput{
		RequestID:        id,
		Type:             body.Type,
		Description:      body.Description,
		AffectedQuantity: body.AffectedQuantity,
		Reporter:         body.Reporter,
		EvidencePath:     body.EvidencePath,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "incident registered", toIncidentDTO(inc))
}

func (h *handler) requestIncidents(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.eng.IncidentsForRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", toIncidentDTOs(list))
}

func (h *handler) getIncident(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	inc, err := h.eng.GetIncident(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", toIncidentDTO(inc))
}

func incidentFilter(r *http.Request) (incidents.Filter, error) {
	q := r.URL.Query()
	f := incidents.Filter{
		State: incidents.State(q.Get("state")),
		Type:  incidents.Type(q.Get("type")),
	}
	var err error
	if f.OfficeID, err = queryID(r, "office_id"); err != nil {
		return f, err
	}
	if f.RequestID, err = queryID(r, "request_id"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *handler) listIncidents(w http.ResponseWriter, r *http.Request) {
	f, err := incidentFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.eng.ListIncidents(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", toIncidentDTOs(list))
}

func (h *handler) incidentTypes(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, "", incidents.Types())
}

func (h *handler) pendingIncidents(w http.ResponseWriter, r *http.Request) {
	f, err := incidentFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.eng.GetPending(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", toIncidentDTOs(list))
}

func (h *handler) incidentStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.eng.IncidentStatistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", incidentStatsDTO{
		Total:    st.Total,
		Pending:  st.Pending,
		Resolved: st.Resolved,
		Accepted: st.Accepted,
		Rejected: st.Rejected,
	})
}

type resolveBody struct {
	Accept   bool   `json:"accept"`
	Resolver string `json:"resolver"`
	Comment  string `json:"comment"`
}

func (h *handler) resolveIncident(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body resolveBody
	if err := h.readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	inc, err := h.eng.ResolveIncident(r.Context(), id, body.Accept, body.Resolver, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "incident "+string(inc.State), toIncidentDTO(inc))
}

type correctionBody struct {
	Quantity int64  `json:"quantity"`
	Actor    string `json:"actor"`
	Note     string `json:"note"`
}

func (h *handler) correctStock(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body correctionBody
	if err := h.readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	inc, err := h.eng.CorrectStock(r.Context(), id, body.Quantity, body.Actor, body.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "stock corrected", toIncidentDTO(inc))
}
