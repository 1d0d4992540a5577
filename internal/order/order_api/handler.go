package order_api

import (
	"context"
	"fmt"
	"net/http"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type OrderReader interface {
	ListOrdersForUser(ctx context.Context, userID string) ([]models.OrderWithTickets, error)
	GetOrderForUser(ctx context.Context, orderID, userID string) (*models.OrderWithTickets, error)
}

type Handler struct {
	Orders OrderReader
	Logger *logger.Logger
}

func NewHandler(orders OrderReader, log *logger.Logger) *Handler {
	return &Handler{Orders: orders, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/orders", h.ListOrders)
	r.Get("/api/orders/{orderId}", h.GetOrder)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	orders, err := h.Orders.ListOrdersForUser(r.Context(), userID)
	if err != nil {
		h.error(fmt.Sprintf("ListOrders: user=%s: %v", userID, err))
		utils.WriteError(w, "Failed to fetch orders", err)
		return
	}
	if orders == nil {
		orders = []models.OrderWithTickets{}
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	orderData, err := h.Orders.GetOrderForUser(r.Context(), orderID, auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, "Order not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orderData)
}

func (h *Handler) error(msg string) {
	if h.Logger != nil {
		h.Logger.Error("API", msg)
	}
}
