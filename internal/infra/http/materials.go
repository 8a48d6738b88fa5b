package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/infra/report"
)

func (h *handler) materialStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.eng.MaterialStatistics(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", statisticsDTO{
		MaterialID:         st.MaterialID,
		Total:              st.Total,
		Pending:            st.Pending,
		Approved:           st.Approved,
		PartiallyDelivered: st.PartiallyDelivered,
		Rejected:           st.Rejected,
		Completed:          st.Completed,
		WithIncident:       st.WithIncident,
		TotalDelivered:     st.TotalDelivered,
		TotalReturned:      st.TotalReturned,
	})
}

func (h *handler) stockLevel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	lvl, err := h.eng.Ledger().Read(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", toStockDTO(lvl, h.eng.LowStockMargin()))
}

func (h *handler) movements(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.eng.Ledger().Movements(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]movementDTO, 0, len(list))
	for _, m := range list {
		out = append(out, movementDTO{
			ID:         m.ID,
			Delta:      m.Delta,
			Kind:       string(m.Kind),
			RequestID:  m.RequestID,
			IncidentID: m.IncidentID,
			Actor:      m.Actor,
			Note:       m.Note,
			CreatedAt:  m.CreatedAt,
		})
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *handler) lowStock(w http.ResponseWriter, r *http.Request) {
	margin := h.eng.LowStockMargin()
	list, err := h.eng.Ledger().LowStock(r.Context(), margin)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]stockDTO, 0, len(list))
	for _, l := range list {
		out = append(out, toStockDTO(l, margin))
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *handler) stockReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	levels, err := h.eng.Ledger().Levels(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	stats := make(map[int64]requests.Statistics, len(levels))
	for _, l := range levels {
		st, err := h.eng.MaterialStatistics(ctx, l.MaterialID)
		if err != nil {
			writeError(w, err)
			return
		}
		stats[l.MaterialID] = st
	}

	data, err := report.Stock(levels, stats, h.eng.LowStockMargin())
	if err != nil {
		h.log.ErrorContext(ctx, "render stock report", "err", err)
		writeError(w, err)
		return
	}
	name := fmt.Sprintf("stock_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
