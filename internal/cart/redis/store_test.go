package redis

import (
	"context"
	"testing"
	"time"

	"ms-storefront/internal/cart"
	"ms-storefront/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestStore_LoadMissingKey(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewStore(client, time.Hour)

	raw, err := s.Load(context.Background(), "cart:nobody")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStore_WriteThroughWithTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	s := NewStore(client, 2*time.Hour)

	c := cart.Load(ctx, s, cart.Key("abc"), nil)
	require.NoError(t, c.AddToCart(ctx, models.CartLineInput{
		TicketTypeID: "vip",
		UnitPrice:    decimal.NewFromInt(120),
	}))

	assert.True(t, mr.Exists("cart:abc"))
	assert.Equal(t, 2*time.Hour, mr.TTL("cart:abc"))

	stored, err := mr.Get("cart:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"eventId":"","eventTitle":"","eventDate":"","eventImage":"","ticketTypeId":"vip","ticketTypeName":"","unitPrice":"120","quantity":1}]`, stored)

	again := cart.Load(ctx, s, cart.Key("abc"), nil)
	assert.Equal(t, 1, again.TotalItems())
	assert.Equal(t, "120", again.TotalPrice().String())
}

func TestStore_ExpiredCartLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	s := NewStore(client, time.Minute)

	c := cart.Load(ctx, s, cart.Key("abc"), nil)
	require.NoError(t, c.AddToCart(ctx, models.CartLineInput{TicketTypeID: "ga", UnitPrice: decimal.NewFromInt(10)}))

	mr.FastForward(2 * time.Minute)

	assert.True(t, cart.Load(ctx, s, cart.Key("abc"), nil).IsEmpty())
}

func TestStore_UnreachableRedisFailsOpen(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	s := NewStore(client, time.Minute)
	mr.Close()

	c := cart.Load(ctx, s, cart.Key("abc"), nil)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.AddToCart(ctx, models.CartLineInput{TicketTypeID: "ga", UnitPrice: decimal.NewFromInt(10)}))
	assert.Equal(t, 1, c.TotalItems())
}
