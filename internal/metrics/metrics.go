package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cartOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Cart mutations by operation and status",
		},
		[]string{"operation", "status"},
	)

	liveCarts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_live_carts",
			Help: "Cart aggregates currently held in memory",
		},
	)

	checkoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_sessions_total",
			Help: "Checkout initiations by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_tickets_issued_total",
			Help: "Tickets issued after confirmed payment",
		},
	)

	ticketScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_ticket_scans_total",
			Help: "Ticket redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Payment webhook deliveries by event type and status",
		},
		[]string{"type", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

func TrackCartOperation(operation, status string) {
	cartOperations.WithLabelValues(operation, status).Inc()
}

func SetLiveCarts(n int) {
	liveCarts.Set(float64(n))
}

func TrackCheckout(outcome string) {
	checkoutSessions.WithLabelValues(outcome).Inc()
}

func TrackTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func TrackScan(outcome string) {
	ticketScans.WithLabelValues(outcome).Inc()
}

func TrackWebhook(eventType, status string) {
	webhookEvents.WithLabelValues(eventType, status).Inc()
}

// Handler exposes the default registry for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency labelled with the chi route pattern,
// so path parameters do not explode the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// Collect samples gauge sources every interval until ctx is done.
func Collect(ctx context.Context, interval time.Duration, cartCount func() int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SetLiveCarts(cartCount())
		}
	}
}
