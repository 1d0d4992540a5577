package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-storefront/internal/models"
	"ms-storefront/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateOrder(ctx context.Context, o *models.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) MarkPaid(ctx context.Context, orderID string, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) GetOrdersWithTicketsByUserID(ctx context.Context, userID string) ([]models.OrderWithTickets, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderWithTickets), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetTicketTypesByIDs(ctx context.Context, ids []string) (map[string]models.TicketType, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.TicketType), args.Error(1)
}

func (m *MockCatalog) IncrementSold(ctx context.Context, items []models.OrderItem) error {
	return m.Called(ctx, items).Error(0)
}

type MockTickets struct {
	mock.Mock
}

func (m *MockTickets) IssueTickets(ctx context.Context, o *models.Order, types map[string]models.TicketType) ([]models.Ticket, error) {
	args := m.Called(ctx, o, types)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockTickets) TicketsForOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

type MockKafka struct {
	mock.Mock
}

func (m *MockKafka) PublishOrderPaid(ctx context.Context, event models.OrderPaidEvent) error {
	return m.Called(ctx, event).Error(0)
}

type fixture struct {
	db      *MockDBLayer
	catalog *MockCatalog
	tickets *MockTickets
	kafka   *MockKafka
	svc     *order.OrderService
}

func newFixture() *fixture {
	f := &fixture{
		db:      new(MockDBLayer),
		catalog: new(MockCatalog),
		tickets: new(MockTickets),
		kafka:   new(MockKafka),
	}
	f.svc = order.NewOrderService(f.db, f.catalog, f.tickets, f.kafka, nil)
	return f
}

func pendingOrder() *models.Order {
	return &models.Order{
		OrderID:           "ord-1",
		UserID:            "user-1",
		CheckoutSessionID: "cs_1",
		Status:            models.OrderStatusPending,
		Total:             decimal.RequireFromString("73.50"),
		Currency:          "usd",
		Items:             []models.OrderItem{{TicketTypeID: "ga", Quantity: 2}},
	}
}

var catalogTypes = map[string]models.TicketType{
	"ga": {ID: "ga", EventID: "evt-1", Name: "General", Price: decimal.NewFromInt(35), Capacity: 100},
}

func issued() []models.Ticket {
	return []models.Ticket{{TicketID: "t1", OrderID: "ord-1"}, {TicketID: "t2", OrderID: "ord-1"}}
}

func TestFulfilOrder_FirstDeliveryPaysAndPublishes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.db.On("GetOrderByID", mock.Anything, "ord-1").Return(pendingOrder(), nil)
	f.catalog.On("GetTicketTypesByIDs", mock.Anything, []string{"ga"}).Return(catalogTypes, nil)
	f.tickets.On("IssueTickets", mock.Anything, mock.Anything, catalogTypes).Return(issued(), nil)
	f.db.On("MarkPaid", mock.Anything, "ord-1", mock.Anything).Return(true, nil)
	f.catalog.On("IncrementSold", mock.Anything, []models.OrderItem{{TicketTypeID: "ga", Quantity: 2}}).Return(nil)
	f.kafka.On("PublishOrderPaid", mock.Anything, mock.MatchedBy(func(e models.OrderPaidEvent) bool {
		return e.OrderID == "ord-1" && e.Tickets == 2 && e.SessionID == "cs_1" && e.Total.Equal(decimal.RequireFromString("73.5"))
	})).Return(nil)

	res, err := f.svc.FulfilOrder(ctx, "ord-1", "cs_1")
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Len(t, res.Tickets, 2)
	assert.Equal(t, models.OrderStatusPaid, res.Order.Status)
	require.NotNil(t, res.Order.PaidAt)

	f.db.AssertExpectations(t)
	f.catalog.AssertExpectations(t)
	f.kafka.AssertExpectations(t)
}

func TestFulfilOrder_RepeatDeliveryHasNoSideEffects(t *testing.T) {
	f := newFixture()
	paid := pendingOrder()
	paid.Status = models.OrderStatusPaid

	f.db.On("GetOrderBySessionID", mock.Anything, "cs_1").Return(paid, nil)
	f.catalog.On("GetTicketTypesByIDs", mock.Anything, []string{"ga"}).Return(catalogTypes, nil)
	f.tickets.On("IssueTickets", mock.Anything, mock.Anything, catalogTypes).Return(issued(), nil)
	f.db.On("MarkPaid", mock.Anything, "ord-1", mock.Anything).Return(false, nil)

	res, err := f.svc.FulfilOrder(context.Background(), "", "cs_1")
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Len(t, res.Tickets, 2)

	f.catalog.AssertNotCalled(t, "IncrementSold", mock.Anything, mock.Anything)
	f.kafka.AssertNotCalled(t, "PublishOrderPaid", mock.Anything, mock.Anything)
}

func TestFulfilOrder_CancelledOrder(t *testing.T) {
	f := newFixture()
	cancelled := pendingOrder()
	cancelled.Status = models.OrderStatusCancelled
	f.db.On("GetOrderByID", mock.Anything, "ord-1").Return(cancelled, nil)

	_, err := f.svc.FulfilOrder(context.Background(), "ord-1", "cs_1")
	assert.ErrorIs(t, err, order.ErrOrderCancelled)
	f.tickets.AssertNotCalled(t, "IssueTickets", mock.Anything, mock.Anything, mock.Anything)
}

func TestFulfilOrder_IssueFailureLeavesOrderPending(t *testing.T) {
	f := newFixture()
	f.db.On("GetOrderByID", mock.Anything, "ord-1").Return(pendingOrder(), nil)
	f.catalog.On("GetTicketTypesByIDs", mock.Anything, []string{"ga"}).Return(map[string]models.TicketType{}, nil)
	f.tickets.On("IssueTickets", mock.Anything, mock.Anything, mock.Anything).Return(nil, models.ErrUnknownTicketType)

	_, err := f.svc.FulfilOrder(context.Background(), "ord-1", "cs_1")
	assert.ErrorIs(t, err, models.ErrUnknownTicketType)
	f.db.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestFulfilOrder_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.db.On("GetOrderByID", mock.Anything, "ord-1").Return(pendingOrder(), nil)
	f.catalog.On("GetTicketTypesByIDs", mock.Anything, mock.Anything).Return(catalogTypes, nil)
	f.tickets.On("IssueTickets", mock.Anything, mock.Anything, mock.Anything).Return(issued(), nil)
	f.db.On("MarkPaid", mock.Anything, "ord-1", mock.Anything).Return(true, nil)
	f.catalog.On("IncrementSold", mock.Anything, mock.Anything).Return(errors.New("deadlock"))
	f.kafka.On("PublishOrderPaid", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	res, err := f.svc.FulfilOrder(context.Background(), "ord-1", "cs_1")
	require.NoError(t, err)
	assert.True(t, res.Paid)
}

func TestResolveOrder_SessionMismatch(t *testing.T) {
	f := newFixture()
	f.db.On("GetOrderByID", mock.Anything, "ord-1").Return(pendingOrder(), nil)

	_, err := f.svc.ResolveOrder(context.Background(), "ord-1", "cs_other")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture()
	f.db.On("GetOrderBySessionID", mock.Anything, "cs_1").Return(pendingOrder(), nil)
	f.db.On("MarkCancelled", mock.Anything, "ord-1").Return(true, nil).Once()
	f.db.On("MarkCancelled", mock.Anything, "ord-1").Return(false, nil).Once()

	ok, err := f.svc.CancelOrder(context.Background(), "", "cs_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CancelOrder(context.Background(), "", "cs_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlaceOrder_SetsPending(t *testing.T) {
	f := newFixture()
	f.db.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.Status == models.OrderStatusPending && !o.CreatedAt.IsZero()
	})).Return(nil)

	o := &models.Order{OrderID: "ord-2", UserID: "user-1", Status: models.OrderStatusPaid}
	require.NoError(t, f.svc.PlaceOrder(context.Background(), o))
	assert.Equal(t, models.OrderStatusPending, o.Status)
	f.db.AssertExpectations(t)
}

func TestGetOrderForUser_OwnerOnly(t *testing.T) {
	f := newFixture()
	f.db.On("GetOrderByID", mock.Anything, "ord-1").Return(pendingOrder(), nil)
	f.tickets.On("TicketsForOrder", mock.Anything, "ord-1").Return(nil, nil)

	got, err := f.svc.GetOrderForUser(context.Background(), "ord-1", "user-1")
	require.NoError(t, err)
	assert.NotNil(t, got.Tickets)

	_, err = f.svc.GetOrderForUser(context.Background(), "ord-1", "intruder")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}
