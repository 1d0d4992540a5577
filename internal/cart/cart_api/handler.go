package cart_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/cart"
	"ms-storefront/internal/checkout"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/metrics"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Carts interface {
	Get(ctx context.Context, sessionID string) *cart.Cart
}

type Checkout interface {
	InitiateCheckout(ctx context.Context, userID string, c checkout.Cart) (*models.CheckoutResult, error)
	ConfirmReturn(ctx context.Context, sessionID string, c checkout.Cart) error
	QuoteTotal(subtotal decimal.Decimal) models.Quote
}

type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

type Handler struct {
	Carts    Carts
	Checkout Checkout
	Cookie   CookieConfig
	Logger   *logger.Logger
}

func NewHandler(carts Carts, checkout Checkout, cookie CookieConfig, log *logger.Logger) *Handler {
	return &Handler{Carts: carts, Checkout: checkout, Cookie: cookie, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/cart", h.GetCart)
	r.Post("/api/cart/items", h.AddItem)
	r.Put("/api/cart/items/{ticketTypeId}", h.UpdateItem)
	r.Delete("/api/cart/items/{ticketTypeId}", h.RemoveItem)
	r.Delete("/api/cart", h.ClearCart)

	r.Post("/api/checkout", h.InitiateCheckout)
	r.Post("/api/checkout/confirm", h.ConfirmCheckout)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, _ := h.cart(w, r)
	h.writeCart(w, c)
}

// AddItem adds one unit of a ticket type.
// Expected POST request body: a CartLineInput.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in models.CartLineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		metrics.TrackCartOperation("add", "error")
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	c, sessionID := h.cart(w, r)
	if err := c.AddToCart(r.Context(), in); err != nil {
		metrics.TrackCartOperation("add", "error")
		utils.WriteError(w, "Could not add to cart", err)
		return
	}
	metrics.TrackCartOperation("add", "ok")
	h.logCart("add", sessionID, in.TicketTypeID)
	h.writeCart(w, c)
}

// UpdateItem sets the quantity of a line; zero or less removes it.
// Expected PUT request body: {"quantity": 3}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		metrics.TrackCartOperation("update", "error")
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "quantity is required"))
		return
	}

	ticketTypeID := chi.URLParam(r, "ticketTypeId")
	c, sessionID := h.cart(w, r)
	c.UpdateQuantity(r.Context(), ticketTypeID, *req.Quantity)
	metrics.TrackCartOperation("update", "ok")
	h.logCart("update", sessionID, fmt.Sprintf("%s x%d", ticketTypeID, *req.Quantity))
	h.writeCart(w, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ticketTypeID := chi.URLParam(r, "ticketTypeId")
	c, sessionID := h.cart(w, r)
	c.RemoveFromCart(r.Context(), ticketTypeID)
	metrics.TrackCartOperation("remove", "ok")
	h.logCart("remove", sessionID, ticketTypeID)
	h.writeCart(w, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, sessionID := h.cart(w, r)
	c.ClearCart(r.Context())
	metrics.TrackCartOperation("clear", "ok")
	h.logCart("clear", sessionID, "")
	h.writeCart(w, c)
}

func (h *Handler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	c, _ := h.cart(w, r)
	result, err := h.Checkout.InitiateCheckout(r.Context(), auth.UserID(r.Context()), c)
	if err != nil {
		utils.WriteError(w, "Checkout failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// ConfirmCheckout is called when the payment provider redirects back with
// ?session_id=. It clears the cart once the session is paid.
func (h *Handler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	c, _ := h.cart(w, r)
	if err := h.Checkout.ConfirmReturn(r.Context(), sessionID, c); err != nil {
		utils.WriteError(w, "Payment not confirmed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment confirmed", map[string]string{"sessionId": sessionID}))
}

// cart returns the caller's cart, issuing a new cart session cookie when
// the request has none.
func (h *Handler) cart(w http.ResponseWriter, r *http.Request) (*cart.Cart, string) {
	sessionID := ""
	if ck, err := r.Cookie(h.Cookie.Name); err == nil {
		if id, err := uuid.Parse(ck.Value); err == nil {
			sessionID = id.String()
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     h.Cookie.Name,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(h.Cookie.MaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.Cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.Carts.Get(r.Context(), sessionID), sessionID
}

func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	lines, _ := c.Snapshot()
	items, price := cart.Totals(lines)
	view := models.CartView{
		Lines:      lines,
		TotalItems: items,
		TotalPrice: price,
		Quote:      h.Checkout.QuoteTotal(price),
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) logCart(action, sessionID, msg string) {
	if h.Logger != nil {
		h.Logger.LogCart(action, sessionID, msg)
	}
}
