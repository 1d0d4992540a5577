package analytics_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-storefront/internal/analytics"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

const maxBatchEvents = 50

type SalesReader interface {
	GetEventSales(ctx context.Context, eventID string) (*analytics.EventSales, error)
	GetBatchEventSales(ctx context.Context, eventIDs []string) (*analytics.BatchEventSales, error)
}

// Handler serves sales analytics to admins.
type Handler struct {
	Service SalesReader
	Logger  *logger.Logger
}

func NewHandler(service SalesReader, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes mounts the analytics routes. The caller applies the
// admin guard.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin/analytics", func(r chi.Router) {
		r.Get("/events/{eventId}", h.GetEventSales)
		r.Post("/events/batch", h.GetBatchEventSales)
	})
}

func (h *Handler) GetEventSales(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	sales, err := h.Service.GetEventSales(r.Context(), eventID)
	if err != nil {
		h.logError(fmt.Sprintf("sales for event %s: %v", eventID, err))
		utils.WriteError(w, "Failed to load sales", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sales)
}

// GetBatchEventSales expects {"eventIds": ["..."]}.
func (h *Handler) GetBatchEventSales(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventIDs []string `json:"eventIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if len(req.EventIDs) == 0 || len(req.EventIDs) > maxBatchEvents {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body",
			fmt.Sprintf("eventIds must hold between 1 and %d ids", maxBatchEvents)))
		return
	}

	batch, err := h.Service.GetBatchEventSales(r.Context(), req.EventIDs)
	if err != nil {
		h.logError(fmt.Sprintf("batch sales: %v", err))
		utils.WriteError(w, "Failed to load sales", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, batch)
}

func (h *Handler) logError(msg string) {
	if h.Logger != nil {
		h.Logger.Error("ANALYTICS", msg)
	}
}
