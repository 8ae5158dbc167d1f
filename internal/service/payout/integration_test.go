package payout_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/events"
	"github.com/salonova/payments/internal/gateway"
	"github.com/salonova/payments/internal/repository"
	"github.com/salonova/payments/internal/service/payout"
	"github.com/salonova/payments/internal/testutil"
)

type stubGateway struct {
	mu             sync.Mutex
	transferCalls  int
	transferAccept bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{transferAccept: true}
}

func (g *stubGateway) CreatePaymentRequest(context.Context, gateway.PaymentRequest) (*gateway.PaymentRequestResult, error) {
	return &gateway.PaymentRequestResult{Authority: "A1", PaymentURL: "https://gw/pay/A1"}, nil
}

func (g *stubGateway) VerifyPayment(context.Context, string, domain.Money) (*gateway.VerificationResult, error) {
	return &gateway.VerificationResult{Success: true, RefNumber: "RN1"}, nil
}

func (g *stubGateway) Settle(context.Context, string) (bool, error)  { return true, nil }
func (g *stubGateway) Reverse(context.Context, string) (bool, error) { return true, nil }

func (g *stubGateway) Inquiry(context.Context, string) (gateway.InquiryStatus, error) {
	return gateway.InquiryStatusSettled, nil
}

func (g *stubGateway) Transfer(context.Context, gateway.TransferRequest) (*gateway.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferCalls++
	return &gateway.TransferResult{ExternalPayoutID: "PO-" + uuid.NewString(), Accepted: g.transferAccept}, nil
}

func setupPayoutService(t *testing.T, db *sql.DB, gw gateway.Adapter) *payout.Service {
	t.Helper()
	return payout.NewService(
		repository.NewPayoutRepository(db),
		repository.NewPaymentRepository(db),
		gw,
		events.NewHub(),
		db,
	)
}

// seedEligiblePayments captures n paid payments for a provider inside a
// window that closed yesterday.
func seedEligiblePayments(t *testing.T, db *sql.DB, providerID uuid.UUID, n int, amount int64) []uuid.UUID {
	t.Helper()
	completedAt := time.Now().UTC().Add(-48 * time.Hour)
	ids := make([]uuid.UUID, 0, n)
	for range n {
		p := testutil.SeedPaidPayment(t, db, uuid.New(), providerID, amount, domain.CurrencyUSD, completedAt)
		ids = append(ids, p.ID)
	}
	return ids
}

func payoutWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.Add(-7 * 24 * time.Hour), now.Add(-24 * time.Hour)
}

func TestCreatePayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())
	ctx := context.Background()

	providerID := uuid.New()
	paymentIDs := seedEligiblePayments(t, db, providerID, 3, 10000)
	start, end := payoutWindow()

	p, err := svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      30000,
		CommissionAmount: 4500,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       paymentIDs,
		Notes:            "weekly batch",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, p.Status)
	assert.Equal(t, int64(25500), p.NetAmount.Amount)

	loaded, err := svc.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, paymentIDs, loaded.PaymentIDs)
	assert.Equal(t, "weekly batch", loaded.Notes)
}

func TestCreatePayout_RejectsForeignPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 1, 10000)
	foreign := seedEligiblePayments(t, db, uuid.New(), 1, 10000)
	start, end := payoutWindow()

	_, err := svc.Create(context.Background(), payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      20000,
		CommissionAmount: 3000,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       append(ids, foreign...),
	})
	assert.ErrorIs(t, err, domain.ErrPaymentNotEligible)
}

func TestCreatePayout_RejectsUnknownPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 1, 10000)
	start, end := payoutWindow()

	_, err := svc.Create(context.Background(), payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      20000,
		CommissionAmount: 3000,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       append(ids, uuid.New()),
	})
	assert.ErrorIs(t, err, domain.ErrPaymentNotEligible)
}

func TestCreatePayout_RejectsAlreadyBatchedPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())
	ctx := context.Background()

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 2, 10000)
	start, end := payoutWindow()

	_, err := svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      20000,
		CommissionAmount: 3000,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      10000,
		CommissionAmount: 1500,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids[:1],
	})
	assert.ErrorIs(t, err, domain.ErrPaymentNotEligible)
}

func TestExecutePayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := newStubGateway()
	svc := setupPayoutService(t, db, gw)
	ctx := context.Background()

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 2, 10000)
	start, end := payoutWindow()

	p, err := svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      20000,
		CommissionAmount: 3000,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids,
	})
	require.NoError(t, err)

	p, err = svc.Execute(ctx, p.ID, "acct_provider_1", "weekly payout")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusProcessing, p.Status)
	require.NotNil(t, p.ExternalPayoutID)
	assert.Equal(t, 1, gw.transferCalls)

	// Processing payouts cannot be dispatched again.
	_, err = svc.Execute(ctx, p.ID, "acct_provider_1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestExecutePayout_RequiresDestination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())

	_, err := svc.Execute(context.Background(), uuid.New(), "", "")
	assert.ErrorIs(t, err, domain.ErrMissingPayoutDestination)
}

func TestMarkAsPaidIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())
	ctx := context.Background()

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 1, 10000)
	start, end := payoutWindow()

	p, err := svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      10000,
		CommissionAmount: 1500,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids,
	})
	require.NoError(t, err)
	_, err = svc.Execute(ctx, p.ID, "acct_provider_1", "")
	require.NoError(t, err)

	result, err := svc.MarkAsPaid(ctx, p.ID, "BANK-REF-1", "First National")
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, domain.PayoutStatusPaid, result.Payout.Status)
	require.NotNil(t, result.Payout.CompletedAt)

	result, err = svc.MarkAsPaid(ctx, p.ID, "BANK-REF-1", "First National")
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
}

func TestMarkAsFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())
	ctx := context.Background()

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 1, 10000)
	start, end := payoutWindow()

	p, err := svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      10000,
		CommissionAmount: 1500,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids,
	})
	require.NoError(t, err)
	_, err = svc.Execute(ctx, p.ID, "acct_provider_1", "")
	require.NoError(t, err)

	result, err := svc.MarkAsFailed(ctx, p.ID, "account closed")
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, domain.PayoutStatusFailed, result.Payout.Status)
	require.NotNil(t, result.Payout.FailureReason)
}

func TestHoldReleaseCancel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())
	ctx := context.Background()

	providerID := uuid.New()
	ids := seedEligiblePayments(t, db, providerID, 1, 10000)
	start, end := payoutWindow()

	p, err := svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      10000,
		CommissionAmount: 1500,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids,
	})
	require.NoError(t, err)

	p, err = svc.PlaceOnHold(ctx, p.ID, "fraud review")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusOnHold, p.Status)

	// Held payouts cannot be dispatched or cancelled.
	_, err = svc.Execute(ctx, p.ID, "acct_provider_1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = svc.Cancel(ctx, p.ID, "while held")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	p, err = svc.ReleaseFromHold(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, p.Status)

	p, err = svc.Cancel(ctx, p.ID, "provider offboarded")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCancelled, p.Status)

	// Cancelling frees the member payments for a future batch.
	_, err = svc.Create(ctx, payout.CreateRequest{
		ProviderID:       providerID,
		GrossAmount:      10000,
		CommissionAmount: 1500,
		Currency:         domain.CurrencyUSD,
		PeriodStart:      start,
		PeriodEnd:        end,
		PaymentIDs:       ids,
	})
	require.NoError(t, err)
}

func TestListByProvider(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPayoutService(t, db, newStubGateway())
	ctx := context.Background()

	providerID := uuid.New()
	start, end := payoutWindow()
	for range 3 {
		ids := seedEligiblePayments(t, db, providerID, 1, 10000)
		_, err := svc.Create(ctx, payout.CreateRequest{
			ProviderID:       providerID,
			GrossAmount:      10000,
			CommissionAmount: 1500,
			Currency:         domain.CurrencyUSD,
			PeriodStart:      start,
			PeriodEnd:        end,
			PaymentIDs:       ids,
		})
		require.NoError(t, err)
	}

	payouts, err := svc.ListByProvider(ctx, providerID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, payouts, 2)

	payouts, err = svc.ListByProvider(ctx, providerID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, payouts, 3)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(pending), 3)
}
