package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Spok95/supply-requests/internal/workflow"
)

type handler struct {
	eng *workflow.Engine
	log *slog.Logger
}

// NewRouter mounts health, metrics (when gatherer is non-nil) and the v1 API.
func NewRouter(eng *workflow.Engine, log *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	h := &handler{eng: eng, log: log.With("component", "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.createRequest)
			r.Get("/", h.listRequests)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getRequest)
				r.Post("/approve", h.approveFull)
				r.Post("/approve-partial", h.approvePartial)
				r.Post("/reject", h.reject)
				r.Get("/deliveries", h.listDeliveries)
				r.Get("/returns", h.listReturns)
				r.Post("/returns", h.registerReturn)
				r.Get("/return-info", h.returnInfo)
				r.Get("/incidents", h.requestIncidents)
				r.Post("/incidents", h.registerIncident)
			})
		})
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.listIncidents)
			r.Get("/types", h.incidentTypes)
			r.Get("/pending", h.pendingIncidents)
			r.Get("/stats", h.incidentStats)
			r.Get("/{id}", h.getIncident)
			r.Post("/{id}/resolve", h.resolveIncident)
			r.Post("/{id}/stock-correction", h.correctStock)
		})
		r.Route("/materials", func(r chi.Router) {
			r.Get("/low-stock", h.lowStock)
			r.Get("/{id}/stats", h.materialStats)
			r.Get("/{id}/stock", h.stockLevel)
			r.Get("/{id}/movements", h.movements)
		})
		r.Get("/reports/stock.xlsx", h.stockReport)
	})
	return r
}

// health is the one place where an unreachable store is reported as such.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.eng.Ping(ctx); err != nil {
		h.log.ErrorContext(ctx, "store unavailable", "err", err)
		_ = writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Message: "store unavailable"})
		return
	}
	writeOK(w, http.StatusOK, "ok", map[string]string{"status": "available"})
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
