package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/domain"
	"checkout-service/internal/mocks"
	"checkout-service/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNoSession = errors.New("no session")

// memorySessions keeps copies of saved states so a test sees only what the
// service chose to persist.
type memorySessions struct {
	mu      sync.Mutex
	states  map[string]checkout.State
	locked  map[string]bool
	lockErr error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{states: map[string]checkout.State{}, locked: map[string]bool{}}
}

func (m *memorySessions) Save(_ context.Context, st *checkout.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ID] = *st
	return nil
}

func (m *memorySessions) Load(_ context.Context, id string) (*checkout.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return nil, errNoSession
	}
	return &st, nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *memorySessions) Lock(_ context.Context, id string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	m.locked[id] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.locked, id)
	}, nil
}

type checkoutFixture struct {
	sessions  *memorySessions
	catalog   *mocks.MockCatalogClient
	submitter *mocks.MockSubmitter
	handoff   *mocks.MockHandoff
	awaiter   *mocks.MockAwaiter
	service   *CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		sessions:  newMemorySessions(),
		catalog:   new(mocks.MockCatalogClient),
		submitter: new(mocks.MockSubmitter),
		handoff:   new(mocks.MockHandoff),
		awaiter:   new(mocks.MockAwaiter),
	}
	f.service = NewCheckoutService(f.sessions, f.catalog, pricing.NewEngine(pricing.DefaultPolicy),
		f.submitter, f.handoff, f.awaiter, zap.NewNop())
	f.service.now = func() time.Time { return testNow }
	return f
}

func (f *checkoutFixture) stubCatalog() {
	f.catalog.On("GetPromotions", mock.Anything, TestProductRef).Return([]domain.Promotion{
		{ID: 7, AppliesTo: []string{TestProductRef}, DiscountPercent: 10, IsActive: true},
	}, nil)
	f.catalog.On("ListShowrooms", mock.Anything).Return([]domain.Showroom{
		{ID: "hcm-01", Name: "District 1", City: "Ho Chi Minh City"},
	}, nil)
}

// toHandoff drives a new session up to the gateway handoff step.
func (f *checkoutFixture) toHandoff(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	view, err := f.service.Start(ctx, []domain.CartLine{testCartLine()})
	require.NoError(t, err)
	id := view.Session.ID

	_, err = f.service.ConfirmCart(ctx, id)
	require.NoError(t, err)
	_, err = f.service.ChoosePayment(ctx, id, domain.MethodDeposit, 0, "")
	require.NoError(t, err)
	_, err = f.service.SubmitCustomer(ctx, id, domain.CustomerInfo{Name: TestCustomerName, Phone: TestCustomerPhone})
	require.NoError(t, err)
	view, err = f.service.ChooseFulfillment(ctx, id, checkout.Fulfillment{ShowroomID: "hcm-01"})
	require.NoError(t, err)
	require.Equal(t, checkout.StepGatewayHandoff, view.Session.Step)
	return id
}

func testCartLine() domain.CartLine {
	return domain.CartLine{ProductRef: TestProductRef, SelectedColor: "red", Quantity: 1, UnitPrice: 20_000_000}
}

func TestCheckoutService_Start(t *testing.T) {
	tests := []struct {
		name          string
		cart          []domain.CartLine
		setupMocks    func(*mocks.MockCatalogClient)
		expectedError error
		expectedTotal int64
	}{
		{
			name: "prices the cart against the promotion snapshot",
			cart: []domain.CartLine{testCartLine()},
			setupMocks: func(catalog *mocks.MockCatalogClient) {
				catalog.On("GetPromotions", mock.Anything, TestProductRef).Return([]domain.Promotion{
					{ID: 7, AppliesTo: []string{TestProductRef}, DiscountPercent: 10, IsActive: true},
				}, nil)
				catalog.On("ListShowrooms", mock.Anything).Return([]domain.Showroom{{ID: "hcm-01"}}, nil)
			},
			expectedTotal: 19_800_000,
		},
		{
			name:          "more than one vehicle",
			cart:          []domain.CartLine{testCartLine(), testCartLine()},
			setupMocks:    func(*mocks.MockCatalogClient) {},
			expectedError: domain.ErrMultiItemNotSupported,
		},
		{
			name: "empty cart",
			cart: nil,
			setupMocks: func(catalog *mocks.MockCatalogClient) {
				catalog.On("ListShowrooms", mock.Anything).Return([]domain.Showroom{}, nil)
			},
			expectedError: checkout.ErrEmptyCart,
		},
		{
			name: "catalog unavailable",
			cart: []domain.CartLine{testCartLine()},
			setupMocks: func(catalog *mocks.MockCatalogClient) {
				catalog.On("GetPromotions", mock.Anything, TestProductRef).Return(nil, errors.New("catalog down"))
			},
			expectedError: errors.New("catalog down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			tt.setupMocks(f.catalog)

			view, err := f.service.Start(context.Background(), tt.cart)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
				assert.Nil(t, view)
				assert.Empty(t, f.sessions.states)
			} else {
				require.NoError(t, err)
				assert.Equal(t, checkout.StepCartReview, view.Session.Step)
				assert.Equal(t, "cart_review", view.Step)
				assert.Equal(t, tt.expectedTotal, view.Quote.Total)
				assert.Equal(t, testNow, view.Session.Snapshot.TakenAt)
				assert.Contains(t, f.sessions.states, view.Session.ID)
			}
			f.catalog.AssertExpectations(t)
		})
	}
}

func TestCheckoutService_HappyPath(t *testing.T) {
	f := newCheckoutFixture()
	f.stubCatalog()
	ctx := context.Background()

	id := f.toHandoff(t)

	f.submitter.On("Submit", mock.Anything, mock.MatchedBy(func(sub checkout.Submission) bool {
		return sub.SessionID == id && sub.Quote.Total == 19_800_000 && sub.PaymentMethod == domain.MethodDeposit
	})).Return(TestOrderCode, nil).Once()
	f.handoff.On("CreateIntent", mock.Anything, TestOrderCode).
		Return(&domain.PaymentIntent{IntentID: "pi_1", OrderCode: TestOrderCode, Tranche: domain.TrancheDeposit, Amount: TestDeposit}, nil).Once()
	f.awaiter.On("Await", mock.Anything, TestOrderCode).
		Return(checkout.Outcome{Success: true, Status: domain.StatusDepositPaid, OrderCode: TestOrderCode}, nil).Once()

	view, err := f.service.Confirm(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepProcessing, view.Session.Step)
	assert.Equal(t, TestOrderCode, view.Session.OrderCode)
	assert.Equal(t, "pi_1", view.Session.Intent.IntentID)

	view, err = f.service.Await(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepResult, view.Session.Step)
	require.NotNil(t, view.Session.Outcome)
	assert.True(t, view.Session.Outcome.Success)
	assert.Equal(t, domain.StatusDepositPaid, view.Session.Outcome.Status)

	f.submitter.AssertExpectations(t)
	f.handoff.AssertExpectations(t)
	f.awaiter.AssertExpectations(t)
}

func TestCheckoutService_ConfirmRetryDoesNotResubmit(t *testing.T) {
	f := newCheckoutFixture()
	f.stubCatalog()
	ctx := context.Background()

	id := f.toHandoff(t)

	f.submitter.On("Submit", mock.Anything, mock.AnythingOfType("checkout.Submission")).Return(TestOrderCode, nil).Once()
	f.handoff.On("CreateIntent", mock.Anything, TestOrderCode).Return(nil, domain.ErrGatewayUnavailable).Once()
	f.handoff.On("CreateIntent", mock.Anything, TestOrderCode).
		Return(&domain.PaymentIntent{IntentID: "pi_2", OrderCode: TestOrderCode}, nil).Once()

	_, err := f.service.Confirm(ctx, id)
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	saved, err := f.sessions.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TestOrderCode, saved.OrderCode)
	assert.Equal(t, checkout.StepGatewayHandoff, saved.Step)

	_, err = f.service.Back(ctx, id)
	assert.ErrorIs(t, err, checkout.ErrCannotGoBack)

	view, err := f.service.Confirm(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepProcessing, view.Session.Step)

	f.submitter.AssertNumberOfCalls(t, "Submit", 1)
	f.handoff.AssertExpectations(t)
}

func TestCheckoutService_Await(t *testing.T) {
	t.Run("pending keeps the processing step", func(t *testing.T) {
		f := newCheckoutFixture()
		f.stubCatalog()
		ctx := context.Background()
		id := f.toHandoff(t)

		f.submitter.On("Submit", mock.Anything, mock.Anything).Return(TestOrderCode, nil)
		f.handoff.On("CreateIntent", mock.Anything, TestOrderCode).Return(&domain.PaymentIntent{IntentID: "pi_1"}, nil)
		f.awaiter.On("Await", mock.Anything, TestOrderCode).
			Return(checkout.Outcome{Pending: true, Status: domain.StatusPendingPayment, OrderCode: TestOrderCode}, nil)

		_, err := f.service.Confirm(ctx, id)
		require.NoError(t, err)

		view, err := f.service.Await(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, checkout.StepProcessing, view.Session.Step)
		require.NotNil(t, view.Session.Outcome)
		assert.True(t, view.Session.Outcome.Pending)
	})

	t.Run("nothing to wait for before confirmation", func(t *testing.T) {
		f := newCheckoutFixture()
		f.stubCatalog()
		id := f.toHandoff(t)

		_, err := f.service.Await(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotAwaitingPayment)
		f.awaiter.AssertNotCalled(t, "Await", mock.Anything, mock.Anything)
	})
}

func TestCheckoutService_ValidationKeepsStep(t *testing.T) {
	f := newCheckoutFixture()
	f.stubCatalog()
	ctx := context.Background()

	view, err := f.service.Start(ctx, []domain.CartLine{testCartLine()})
	require.NoError(t, err)
	id := view.Session.ID

	_, err = f.service.ConfirmCart(ctx, id)
	require.NoError(t, err)
	_, err = f.service.ChoosePayment(ctx, id, domain.MethodInstallment, 12, domain.ChannelFinance)
	require.NoError(t, err)

	_, err = f.service.SubmitCustomer(ctx, id, domain.CustomerInfo{Name: TestCustomerName, Phone: "12345"})
	assert.True(t, domain.IsValidation(err))

	view, err = f.service.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepCustomerInfo, view.Session.Step)
	require.NotNil(t, view.Installment)
	assert.Equal(t, int64(5_940_000), view.Installment.DownPayment)
}

func TestCheckoutService_BusySession(t *testing.T) {
	f := newCheckoutFixture()
	f.stubCatalog()
	ctx := context.Background()

	view, err := f.service.Start(ctx, []domain.CartLine{testCartLine()})
	require.NoError(t, err)

	busy := errors.New("checkout session is busy")
	f.sessions.lockErr = busy

	_, err = f.service.ConfirmCart(ctx, view.Session.ID)
	assert.ErrorIs(t, err, busy)

	f.sessions.lockErr = nil
	current, err := f.service.Get(ctx, view.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepCartReview, current.Session.Step)
}

func TestCheckoutService_Abandon(t *testing.T) {
	f := newCheckoutFixture()
	f.stubCatalog()
	ctx := context.Background()

	view, err := f.service.Start(ctx, []domain.CartLine{testCartLine()})
	require.NoError(t, err)

	require.NoError(t, f.service.Abandon(ctx, view.Session.ID))

	_, err = f.service.Get(ctx, view.Session.ID)
	assert.ErrorIs(t, err, errNoSession)
}
