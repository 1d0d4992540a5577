package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Cart is the per-session shopping cart. Lines are merged by ticket type
// id and every mutation is written through to the Store. The in-memory
// state stays authoritative for the session when a write fails.
type Cart struct {
	mu      sync.Mutex
	key     string
	store   Store
	log     *logger.Logger
	lines   []models.CartLine
	version uint64
	// unsaved is set while the store lags behind the in-memory lines
	unsaved bool
}

// Load rehydrates the cart stored under key. A missing, unreadable or
// malformed value yields an empty cart.
func Load(ctx context.Context, store Store, key string, log *logger.Logger) *Cart {
	c := &Cart{key: key, store: store, log: log}

	raw, err := store.Load(ctx, key)
	if err != nil {
		c.warn(fmt.Sprintf("load %s: %v", key, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)))
		return c
	}
	if len(raw) == 0 {
		return c
	}

	lines, err := Decode(raw)
	if err != nil {
		c.warn(fmt.Sprintf("discarding malformed cart %s: %v", key, err))
		return c
	}
	c.lines = lines
	return c
}

// Encode serializes lines as the JSON array kept in storage.
func Encode(lines []models.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []models.CartLine{}
	}
	return json.Marshal(lines)
}

// Decode parses a stored cart. Payloads that break the cart invariants
// (duplicate ticket types, empty ids, negative prices, non-positive
// quantities) are rejected as a whole.
func Decode(raw []byte) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.TicketTypeID) == "" || l.UnitPrice.IsNegative() || l.Quantity <= 0 {
			return nil, fmt.Errorf("invalid line %q", l.TicketTypeID)
		}
		if _, dup := seen[l.TicketTypeID]; dup {
			return nil, fmt.Errorf("duplicate line %q", l.TicketTypeID)
		}
		seen[l.TicketTypeID] = struct{}{}
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines, nil
}

// Refresh re-reads the stored cart so changes made through another
// instance (a paid return clearing the cart) are seen here. While the last
// write failed the in-memory lines stay authoritative and nothing is read.
// A change bumps the version.
func (c *Cart) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsaved {
		return
	}
	raw, err := c.store.Load(ctx, c.key)
	if err != nil {
		c.warn(fmt.Sprintf("refresh %s: %v", c.key, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)))
		return
	}

	var stored []models.CartLine
	if len(raw) > 0 {
		if stored, err = Decode(raw); err != nil {
			c.warn(fmt.Sprintf("discarding malformed cart %s: %v", c.key, err))
			stored = nil
		}
	}

	current, _ := Encode(c.lines)
	next, _ := Encode(stored)
	if bytes.Equal(current, next) {
		return
	}
	c.lines = stored
	c.version++
}

// AddToCart adds one unit of the ticket type. An existing line for the same
// ticket type has its quantity incremented instead of a new line appended.
func (c *Cart) AddToCart(ctx context.Context, in models.CartLineInput) error {
	if strings.TrimSpace(in.TicketTypeID) == "" {
		return fmt.Errorf("%w: ticketTypeId is required", models.ErrInvalidLine)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unitPrice must not be negative", models.ErrInvalidLine)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(in.TicketTypeID); i >= 0 {
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, models.CartLine{
			EventID:        in.EventID,
			EventTitle:     in.EventTitle,
			EventDate:      in.EventDate,
			EventImage:     in.EventImage,
			TicketTypeID:   in.TicketTypeID,
			TicketTypeName: in.TicketTypeName,
			UnitPrice:      in.UnitPrice,
			Quantity:       1,
		})
	}
	c.changed(ctx)
	return nil
}

// RemoveFromCart drops the line for ticketTypeID. Absent ids are ignored.
func (c *Cart) RemoveFromCart(ctx context.Context, ticketTypeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(ctx, ticketTypeID)
}

// UpdateQuantity sets the absolute quantity of a line. Zero or less removes
// it; an unknown ticket type is left alone.
func (c *Cart) UpdateQuantity(ctx context.Context, ticketTypeID string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		c.remove(ctx, ticketTypeID)
		return
	}
	i := c.indexOf(ticketTypeID)
	if i < 0 {
		return
	}
	c.lines[i].Quantity = quantity
	c.changed(ctx)
}

// ClearCart empties the cart. Clearing an empty cart is a no-op.
func (c *Cart) ClearCart(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return
	}
	c.lines = nil
	c.changed(ctx)
}

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLines()
}

// Snapshot returns the lines together with the version they belong to.
func (c *Cart) Snapshot() ([]models.CartLine, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLines(), c.version
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, _ := Totals(c.lines)
	return items
}

func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, price := Totals(c.lines)
	return price
}

// Totals derives the item count and price of a set of lines, e.g. the
// lines of one Snapshot.
func Totals(lines []models.CartLine) (int, decimal.Decimal) {
	items, price := 0, decimal.Zero
	for _, l := range lines {
		items += l.Quantity
		price = price.Add(l.Subtotal())
	}
	return items, price
}

// Version increases with every mutation of this aggregate.
func (c *Cart) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func (c *Cart) Key() string {
	return c.key
}

func (c *Cart) remove(ctx context.Context, ticketTypeID string) {
	i := c.indexOf(ticketTypeID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.changed(ctx)
}

func (c *Cart) indexOf(ticketTypeID string) int {
	for i := range c.lines {
		if c.lines[i].TicketTypeID == ticketTypeID {
			return i
		}
	}
	return -1
}

func (c *Cart) copyLines() []models.CartLine {
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// changed bumps the version and writes through. Called with mu held so
// writes reach the store in mutation order.
func (c *Cart) changed(ctx context.Context) {
	c.version++

	data, err := Encode(c.lines)
	if err != nil {
		c.unsaved = true
		c.warn(fmt.Sprintf("encode %s: %v", c.key, err))
		return
	}
	if err := c.store.Save(ctx, c.key, data); err != nil {
		c.unsaved = true
		c.warn(fmt.Sprintf("save %s: %v", c.key, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)))
		return
	}
	c.unsaved = false
}

func (c *Cart) warn(msg string) {
	if c.log != nil {
		c.log.Warn("CART", msg)
	}
}
