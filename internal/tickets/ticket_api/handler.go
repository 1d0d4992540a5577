package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type TicketService interface {
	ListMyTickets(ctx context.Context, userID string) ([]models.Ticket, error)
	GetTicketForUser(ctx context.Context, ticketID, userID string) (*models.Ticket, error)
	TicketQRCode(ctx context.Context, ticketID, userID string) ([]byte, error)
	TicketPDF(ctx context.Context, ticketID, userID string) ([]byte, error)
	RedeemTicket(ctx context.Context, payload, operator string) (*models.ScanResult, error)
	VoidTicket(ctx context.Context, ticketID string) error
	CheckInStats(ctx context.Context, eventID string) (*models.CheckInStats, error)
}

type ScanSubscriber interface {
	SubscribeToEvent(ctx context.Context, eventID string) <-chan models.ScanResult
}

type Handler struct {
	Tickets TicketService
	Feed    ScanSubscriber
	Logger  *logger.Logger
}

func NewHandler(tickets TicketService, feed ScanSubscriber, log *logger.Logger) *Handler {
	return &Handler{Tickets: tickets, Feed: feed, Logger: log}
}

// Routes registers the ticket holder's endpoints. They expect an
// authenticated user in the request context.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/tickets", h.ListMyTickets)
	r.Get("/api/tickets/{ticketId}", h.ViewTicket)
	r.Get("/api/tickets/{ticketId}/qr.png", h.TicketQR)
	r.Get("/api/tickets/{ticketId}/ticket.pdf", h.TicketPDF)
}

// AdminRoutes registers the door and back-office endpoints. Callers wrap
// them in a role guard.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/api/admin/scan", h.ScanTicket)
	r.Post("/api/admin/tickets/{ticketId}/void", h.VoidTicket)
	r.Get("/api/admin/events/{eventId}/checkins", h.CheckIns)
	r.Get("/api/admin/events/{eventId}/scans/stream", h.StreamScans)
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Tickets.ListMyTickets(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, "Failed to fetch tickets", err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.GetTicketForUser(r.Context(), chi.URLParam(r, "ticketId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, "Ticket not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Tickets.TicketQRCode(r.Context(), chi.URLParam(r, "ticketId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, "Failed to render QR code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) TicketPDF(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	doc, err := h.Tickets.TicketPDF(r.Context(), ticketID, auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, "Failed to render ticket", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"ticket-%s.pdf\"", ticketID))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// ScanTicket redeems a scanned QR payload.
// Expected POST request body: {"payload": "<qr payload>"}
func (h *Handler) ScanTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	req.Payload = strings.TrimSpace(req.Payload)
	if req.Payload == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "payload is required"))
		return
	}

	result, err := h.Tickets.RedeemTicket(r.Context(), req.Payload, auth.UserID(r.Context()))
	if result == nil {
		utils.WriteError(w, "Scan failed", err)
		return
	}
	// rejections carry the result too so the operator sees the outcome
	utils.WriteJSON(w, utils.StatusFor(err), result)
}

func (h *Handler) VoidTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	if err := h.Tickets.VoidTicket(r.Context(), ticketID); err != nil {
		utils.WriteError(w, "Failed to void ticket", err)
		return
	}
	if h.Logger != nil {
		h.Logger.LogSecurity("ticket_voided", fmt.Sprintf("ticket %s voided by %s", ticketID, auth.UserID(r.Context())))
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket voided", map[string]string{"ticketId": ticketID}))
}

func (h *Handler) CheckIns(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tickets.CheckInStats(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to get check-in stats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

// StreamScans pushes every scan result of an event to the dashboard as
// server-sent events until the client goes away.
func (h *Handler) StreamScans(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	scans := h.Feed.SubscribeToEvent(ctx, eventID)

	connected, _ := json.Marshal(map[string]string{"status": "connected", "eventId": eventID})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
	flusher.Flush()
	h.debug(fmt.Sprintf("dashboard connected to scan feed of event %s", eventID))

	for {
		select {
		case result, ok := <-scans:
			if !ok {
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				if h.Logger != nil {
					h.Logger.Error("SSE", fmt.Sprintf("serialize scan result: %v", err))
				}
				continue
			}
			fmt.Fprintf(w, "event: scan\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ctx.Done():
			h.debug(fmt.Sprintf("dashboard left scan feed of event %s", eventID))
			return
		}
	}
}

func (h *Handler) debug(msg string) {
	if h.Logger != nil {
		h.Logger.Debug("SSE", msg)
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
