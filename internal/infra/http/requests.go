package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/workflow"
)

type createRequestBody struct {
	OfficeID          int64           `json:"office_id"`
	MaterialID        int64           `json:"material_id"`
	QuantityRequested int64           `json:"quantity_requested"`
	PercentageOffice  decimal.Decimal `json:"percentage_office"`
	Requester         string          `json:"requester"`
	Observation       string          `json:"observation"`
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := h.readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := h.eng.Create(r.Context(), workflow.CreateInput{
		OfficeID:          body.OfficeID,
		MaterialID:        body.MaterialID,
		QuantityRequested: body.QuantityRequested,
		PercentageOffice:  body.PercentageOffice,
		Requester:         body.Requester,
		Observation:       body.Observation,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "request created", toRequestDTO(req))
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := requests.Filter{Requester: q.Get("requester")}
	if s := q.Get("state"); s != "" {
		st, err := requests.ParseState(s)
		if err != nil {
			writeError(w, validation(err))
			return
		}
		f.State = st
	}
	var err error
	if f.OfficeID, err = queryID(r, "office_id"); err != nil {
		writeError(w, err)
		return
	}
	if f.MaterialID, err = queryID(r, "material_id"); err != nil {
		writeError(w, err)
		return
	}

	list, err := h.eng.ListRequests(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]requestDTO, 0, len(list))
	for i := range list {
		out = append(out, toRequestDTO(&list[i]))
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := h.eng.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", toRequestDTO(req))
}

type decisionBody struct {
	Approver string `json:"approver"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

func (h *handler) approveFull(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "request approved", func(id int64, b decisionBody) (*requests.Request, error) {
		return h.eng.ApproveFull(r.Context(), id, b.Approver)
	})
}

func (h *handler) approvePartial(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "request partially approved", func(id int64, b decisionBody) (*requests.Request, error) {
		return h.eng.ApprovePartial(r.Context(), id, b.Approver, b.Quantity)
	})
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "request rejected", func(id int64, b decisionBody) (*requests.Request, error) {
		return h.eng.Reject(r.Context(), id, b.Approver, b.Reason)
	})
}

func (h *handler) decide(w http.ResponseWriter, r *http.Request, msg string, fn func(int64, decisionBody) (*requests.Request, error)) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body decisionBody
	if err := h.readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := fn(id, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, msg, toRequestDTO(req))
}

func (h *handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.eng.Deliveries(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]deliveryDTO, 0, len(list))
	for _, d := range list {
		out = append(out, deliveryDTO{ID: d.ID, Quantity: d.Quantity, User: d.User, Note: d.Note, CreatedAt: d.CreatedAt})
	}
	writeOK(w, http.StatusOK, "", out)
}

type returnBody struct {
	Quantity    int64  `json:"quantity"`
	User        string `json:"user"`
	Observation string `json:"observation"`
	Condition   string `json:"condition"`
}

func (h *handler) registerReturn(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body returnBody
	if err := h.readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	ret, req, err := h.eng.RegisterReturn(r.Context(), workflow.ReturnInput{
		RequestID:   id,
		Quantity:    body.Quantity,
		User:        body.User,
		Observation: body.Observation,
		Condition:   requests.Condition(body.Condition),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "return registered", map[string]any{
		"return":  toReturnDTO(*ret),
		"request": toRequestDTO(req),
	})
}

func (h *handler) listReturns(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.eng.ListReturns(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]returnDTO, 0, len(list))
	for _, ret := range list {
		out = append(out, toReturnDTO(ret))
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *handler) returnInfo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.eng.ReturnInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", returnInfoDTO{
		RequestID:         info.RequestID,
		State:             string(info.State),
		QuantityRequested: info.QuantityRequested,
		QuantityDelivered: info.QuantityDelivered,
		AlreadyReturned:   info.AlreadyReturned,
		Returnable:        info.Returnable,
		CanReturn:         info.CanReturn,
		Reason:            info.Reason,
	})
}
