package checkout_test

import (
	"context"
	"errors"
	"testing"

	"ms-storefront/internal/cart"
	"ms-storefront/internal/checkout"
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) CreateSession(ctx context.Context, req models.PaymentSessionRequest) (*models.PaymentSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentSession), args.Error(1)
}

func (m *MockSessions) ExpireSession(ctx context.Context, session *models.PaymentSession) error {
	return m.Called(ctx, session).Error(0)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) IsPaid(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

type fakeLock struct {
	held     map[string]string
	released []string
}

func (l *fakeLock) Acquire(_ context.Context, userID, token string) (bool, error) {
	if _, ok := l.held[userID]; ok {
		return false, nil
	}
	l.held[userID] = token
	return true, nil
}

func (l *fakeLock) Release(_ context.Context, userID, token string) error {
	if l.held[userID] == token {
		delete(l.held, userID)
		l.released = append(l.released, userID)
	}
	return nil
}

func newService(sessions *MockSessions, verifier *MockVerifier) *checkout.Service {
	return checkout.NewService(sessions, verifier, nil, nil,
		"https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		"https://shop.example.com/cart",
		decimal.NewFromInt(5))
}

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c := cart.Load(ctx, cart.NewMemoryStore(), cart.Key("s1"), nil)
	require.NoError(t, c.AddToCart(ctx, models.CartLineInput{TicketTypeID: "A", UnitPrice: decimal.NewFromInt(20)}))
	require.NoError(t, c.AddToCart(ctx, models.CartLineInput{TicketTypeID: "B", UnitPrice: decimal.NewFromInt(30)}))
	require.NoError(t, c.AddToCart(ctx, models.CartLineInput{TicketTypeID: "B", UnitPrice: decimal.NewFromInt(30)}))
	return c
}

func TestInitiateCheckout_EmptyCartMakesNoExternalCall(t *testing.T) {
	sessions := new(MockSessions)
	svc := newService(sessions, new(MockVerifier))
	empty := cart.Load(context.Background(), cart.NewMemoryStore(), cart.Key("s1"), nil)

	res, err := svc.InitiateCheckout(context.Background(), "user-1", empty)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	sessions.AssertNumberOfCalls(t, "CreateSession", 0)
}

func TestInitiateCheckout_RequiresUser(t *testing.T) {
	sessions := new(MockSessions)
	svc := newService(sessions, new(MockVerifier))

	_, err := svc.InitiateCheckout(context.Background(), "", filledCart(t))

	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestInitiateCheckout_SendsIDsAndQuantitiesOnly(t *testing.T) {
	sessions := new(MockSessions)
	svc := newService(sessions, new(MockVerifier))
	c := filledCart(t)

	want := models.PaymentSessionRequest{
		UserID:        "user-1",
		TicketTypeIDs: []string{"A", "B"},
		Quantities:    []int{1, 2},
		SuccessURL:    "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://shop.example.com/cart",
	}
	sessions.On("CreateSession", mock.Anything, want).
		Return(&models.PaymentSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", OrderID: "ord-1"}, nil).
		Once()

	res, err := svc.InitiateCheckout(context.Background(), "user-1", c)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.RedirectURL)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, "80", res.DisplayQuote.Subtotal.String())
	assert.Equal(t, "4", res.DisplayQuote.ServiceFee.String())
	assert.Equal(t, "84", res.DisplayQuote.Total.String())

	// the cart must survive the redirect
	assert.Equal(t, 3, c.TotalItems())
	sessions.AssertExpectations(t)
}

func TestInitiateCheckout_GatewayFailureKeepsCart(t *testing.T) {
	sessions := new(MockSessions)
	svc := newService(sessions, new(MockVerifier))
	c := filledCart(t)
	cause := errors.New("dial tcp: i/o timeout")

	sessions.On("CreateSession", mock.Anything, mock.Anything).Return(nil, cause)

	_, err := svc.InitiateCheckout(context.Background(), "user-1", c)

	assert.ErrorIs(t, err, models.ErrPaymentSessionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, c.TotalItems())
}

func TestInitiateCheckout_CartChangedDuringCall(t *testing.T) {
	sessions := new(MockSessions)
	svc := newService(sessions, new(MockVerifier))
	c := filledCart(t)

	sessions.On("CreateSession", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			c.ClearCart(context.Background())
		}).
		Return(&models.PaymentSession{ID: "cs_test_2", URL: "https://checkout.stripe.com/c/pay/cs_test_2", OrderID: "ord-2"}, nil)
	sessions.On("ExpireSession", mock.Anything, mock.MatchedBy(func(p *models.PaymentSession) bool {
		return p.ID == "cs_test_2" && p.OrderID == "ord-2"
	})).Return(nil).Once()

	res, err := svc.InitiateCheckout(context.Background(), "user-1", c)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, models.ErrStaleCheckout)
	sessions.AssertExpectations(t)
}

func TestInitiateCheckout_LockSerializesUser(t *testing.T) {
	sessions := new(MockSessions)
	lock := &fakeLock{held: map[string]string{"user-2": "other"}}
	svc := newService(sessions, new(MockVerifier))
	svc.Lock = lock

	_, err := svc.InitiateCheckout(context.Background(), "user-2", filledCart(t))
	assert.ErrorIs(t, err, models.ErrCheckoutInProgress)
	sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)

	sessions.On("CreateSession", mock.Anything, mock.Anything).
		Return(&models.PaymentSession{ID: "cs_test_3", URL: "u"}, nil)
	_, err = svc.InitiateCheckout(context.Background(), "user-1", filledCart(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"user-1"}, lock.released)
	assert.NotContains(t, lock.held, "user-1")
}

func TestConfirmReturn_PaidClearsOnce(t *testing.T) {
	verifier := new(MockVerifier)
	svc := newService(new(MockSessions), verifier)
	c := filledCart(t)

	verifier.On("IsPaid", mock.Anything, "cs_paid").Return(true, nil)

	require.NoError(t, svc.ConfirmReturn(context.Background(), "cs_paid", c))
	assert.Equal(t, 0, c.TotalItems())

	// back button re-delivers the success page
	require.NoError(t, svc.ConfirmReturn(context.Background(), "cs_paid", c))
	assert.Equal(t, 0, c.TotalItems())
}

func TestConfirmReturn_UnpaidKeepsCart(t *testing.T) {
	verifier := new(MockVerifier)
	svc := newService(new(MockSessions), verifier)
	c := filledCart(t)

	verifier.On("IsPaid", mock.Anything, "cs_open").Return(false, nil)

	err := svc.ConfirmReturn(context.Background(), "cs_open", c)
	assert.ErrorIs(t, err, models.ErrPaymentNotCompleted)
	assert.Equal(t, 3, c.TotalItems())

	err = svc.ConfirmReturn(context.Background(), " ", c)
	assert.ErrorIs(t, err, models.ErrPaymentNotCompleted)
	verifier.AssertNumberOfCalls(t, "IsPaid", 1)
}

func TestConfirmReturn_VerifierErrorIsRetryable(t *testing.T) {
	verifier := new(MockVerifier)
	svc := newService(new(MockSessions), verifier)
	c := filledCart(t)

	verifier.On("IsPaid", mock.Anything, "cs_x").Return(false, errors.New("stripe down"))

	err := svc.ConfirmReturn(context.Background(), "cs_x", c)
	assert.ErrorIs(t, err, models.ErrPaymentSessionFailed)
	assert.Equal(t, 3, c.TotalItems())
}

func TestQuote_RoundsFeeToCents(t *testing.T) {
	q := checkout.QuoteFor(decimal.RequireFromString("33.33"), decimal.RequireFromString("7.5"))

	assert.Equal(t, "2.5", q.ServiceFee.String())
	assert.Equal(t, "35.83", q.Total.String())

	svc := newService(new(MockSessions), new(MockVerifier))
	assert.Equal(t, "84", svc.Quote(filledCart(t)).Total.String())
	assert.True(t, svc.QuoteTotal(decimal.NewFromInt(80)).Total.Equal(svc.Quote(filledCart(t)).Total))
}
