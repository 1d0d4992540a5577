package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"ms-storefront/internal/models"
	"ms-storefront/internal/tickets/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	_, err = bunDB.NewCreateTable().Model((*models.Ticket)(nil)).Exec(context.Background())
	require.NoError(t, err)
	return &db.DB{Bun: bunDB}
}

func ticket(id, eventID string) models.Ticket {
	return models.Ticket{
		TicketID:        id,
		OrderID:         "ord-1",
		UserID:          "user-1",
		EventID:         eventID,
		TicketTypeID:    "ga",
		TicketTypeName:  "General",
		QRPayload:       "payload-" + id,
		PriceAtPurchase: decimal.NewFromInt(25),
		Status:          models.TicketStatusValid,
		IssuedAt:        time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateTickets_SkipsExistingIDs(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTickets(ctx, []models.Ticket{ticket("t1", "evt-1"), ticket("t2", "evt-1")}))

	again := ticket("t1", "evt-1")
	again.QRPayload = "a-different-payload"
	require.NoError(t, store.CreateTickets(ctx, []models.Ticket{again, ticket("t3", "evt-1")}))

	tickets, err := store.ListTicketsByOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	t1, err := store.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "payload-t1", t1.QRPayload)
	assert.Equal(t, "25", t1.PriceAtPurchase.String())

	require.NoError(t, store.CreateTickets(ctx, nil))
}

func TestGetTicketByID_NotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetTicketByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrTicketNotFound)
}

func TestMarkScanned_OnlyOnce(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.CreateTickets(ctx, []models.Ticket{ticket("t1", "evt-1")}))
	at := time.Date(2026, 11, 1, 19, 5, 0, 0, time.UTC)

	ok, err := store.MarkScanned(ctx, "t1", "scanner-1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkScanned(ctx, "t1", "scanner-2", at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, got.Status)
	require.NotNil(t, got.ScannedAt)
	assert.True(t, at.Equal(*got.ScannedAt))
	require.NotNil(t, got.ScannedBy)
	assert.Equal(t, "scanner-1", *got.ScannedBy)

	ok, err = store.MarkScanned(ctx, "missing", "scanner-1", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVoidTicket(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.CreateTickets(ctx, []models.Ticket{ticket("t1", "evt-1"), ticket("t2", "evt-1")}))

	ok, err := store.VoidTicket(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	// a voided ticket cannot be scanned
	ok, err = store.MarkScanned(ctx, "t1", "scanner-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	// a used ticket cannot be voided
	_, err = store.MarkScanned(ctx, "t2", "scanner-1", time.Now())
	require.NoError(t, err)
	ok, err = store.VoidTicket(ctx, "t2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckInStats(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	var batch []models.Ticket
	for i := 0; i < 5; i++ {
		batch = append(batch, ticket(fmt.Sprintf("a%d", i), "evt-1"))
	}
	batch = append(batch, ticket("b0", "evt-2"))
	require.NoError(t, store.CreateTickets(ctx, batch))

	_, err := store.MarkScanned(ctx, "a0", "s", time.Now())
	require.NoError(t, err)
	_, err = store.MarkScanned(ctx, "a1", "s", time.Now())
	require.NoError(t, err)
	_, err = store.VoidTicket(ctx, "a4")
	require.NoError(t, err)

	stats, err := store.CheckInStats(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, &models.CheckInStats{EventID: "evt-1", Issued: 5, Scanned: 2, Voided: 1}, stats)

	empty, err := store.CheckInStats(ctx, "evt-none")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Issued)
}
