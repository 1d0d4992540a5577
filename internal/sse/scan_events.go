package sse

import (
	"context"
	"sync"
	"sync/atomic"

	"ms-storefront/internal/models"
)

const clientBuffer = 16

// ScanFeed fans scan results out to dashboards watching an event.
type ScanFeed struct {
	mu      sync.RWMutex
	clients map[string]map[chan models.ScanResult]struct{}
	dropped atomic.Uint64
}

func NewScanFeed() *ScanFeed {
	return &ScanFeed{clients: make(map[string]map[chan models.ScanResult]struct{})}
}

// SubscribeToEvent registers a client for eventID. The channel is closed
// once ctx is done.
func (f *ScanFeed) SubscribeToEvent(ctx context.Context, eventID string) <-chan models.ScanResult {
	ch := make(chan models.ScanResult, clientBuffer)

	f.mu.Lock()
	if f.clients[eventID] == nil {
		f.clients[eventID] = make(map[chan models.ScanResult]struct{})
	}
	f.clients[eventID][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(eventID, ch)
	}()

	return ch
}

// Emit delivers result to every subscriber of its event. A client whose
// buffer is full misses the result instead of stalling the scanner.
func (f *ScanFeed) Emit(result models.ScanResult) {
	if result.EventID == "" {
		return
	}

	// hold the read lock while sending so remove cannot close a channel
	// under us
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.clients[result.EventID] {
		select {
		case ch <- result:
		default:
			f.dropped.Add(1)
		}
	}
}

func (f *ScanFeed) remove(eventID string, ch chan models.ScanResult) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.clients[eventID][ch]; !ok {
		return
	}
	delete(f.clients[eventID], ch)
	close(ch)
	if len(f.clients[eventID]) == 0 {
		delete(f.clients, eventID)
	}
}

func (f *ScanFeed) ClientCount(eventID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients[eventID])
}

// Dropped counts results skipped because a client buffer was full.
func (f *ScanFeed) Dropped() uint64 {
	return f.dropped.Load()
}

// Relay emits a redemption recorded by another instance.
func (f *ScanFeed) Relay(event models.TicketRedeemedEvent) {
	f.Emit(models.ScanResult{
		TicketID:  event.TicketID,
		EventID:   event.EventID,
		Outcome:   models.ScanAccepted,
		Accepted:  true,
		ScannedAt: event.ScannedAt,
		Operator:  event.Operator,
	})
}
