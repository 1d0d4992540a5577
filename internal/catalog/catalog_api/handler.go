package catalog_api

import (
	"context"
	"net/http"

	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type CatalogReader interface {
	ListPublishedEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.EventDetails, error)
}

type Handler struct {
	Catalog CatalogReader
}

func NewHandler(catalog CatalogReader) *Handler {
	return &Handler{Catalog: catalog}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/events", h.ListEvents)
	r.Get("/api/events/{eventId}", h.GetEvent)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Catalog.ListPublishedEvents(r.Context())
	if err != nil {
		utils.WriteError(w, "Failed to list events", err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	utils.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	details, err := h.Catalog.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to load event", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, details)
}
