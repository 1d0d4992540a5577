package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-storefront/internal/logger"
)

const keyPrefix = "cart:"

type entry struct {
	cart     *Cart
	lastUsed time.Time
}

// Manager hands out one live Cart per cart session so concurrent requests
// of the same browser session mutate the same aggregate.
type Manager struct {
	mu    sync.Mutex
	store Store
	log   *logger.Logger
	carts map[string]*entry
	now   func() time.Time
}

func NewManager(store Store, log *logger.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log,
		carts: make(map[string]*entry),
		now:   time.Now,
	}
}

func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Get returns the live cart for sessionID, rehydrating it from the store on
// first use. A cart already held is refreshed from the store since other
// instances share it.
func (m *Manager) Get(ctx context.Context, sessionID string) *Cart {
	m.mu.Lock()
	if e, ok := m.carts[sessionID]; ok {
		e.lastUsed = m.now()
		m.mu.Unlock()
		e.cart.Refresh(ctx)
		return e.cart
	}
	m.mu.Unlock()

	loaded := Load(ctx, m.store, Key(sessionID), m.log)

	m.mu.Lock()
	defer m.mu.Unlock()
	// another request may have loaded it while we were reading the store
	if e, ok := m.carts[sessionID]; ok {
		e.lastUsed = m.now()
		return e.cart
	}
	m.carts[sessionID] = &entry{cart: loaded, lastUsed: m.now()}
	return loaded
}

// Len reports how many carts are held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

// EvictIdle drops carts untouched for longer than maxIdle. Their state is
// already in the store, so the next Get rehydrates them.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.carts {
		if e.lastUsed.Before(cutoff) {
			delete(m.carts, id)
			evicted++
		}
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is cancelled.
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(maxIdle); n > 0 && m.log != nil {
				m.log.Debug("CART", fmt.Sprintf("evicted %d idle carts", n))
			}
		}
	}
}
