package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/gateway"
	"github.com/salonova/payments/internal/repository"
	"github.com/salonova/payments/internal/testutil"
)

type inquiryStubGateway struct {
	status       gateway.InquiryStatus
	reverseOK    bool
	reverseCalls int
}

func (g *inquiryStubGateway) CreatePaymentRequest(context.Context, gateway.PaymentRequest) (*gateway.PaymentRequestResult, error) {
	return &gateway.PaymentRequestResult{Authority: "A1", PaymentURL: "https://gw/pay/A1"}, nil
}

func (g *inquiryStubGateway) VerifyPayment(context.Context, string, domain.Money) (*gateway.VerificationResult, error) {
	return &gateway.VerificationResult{Success: true, RefNumber: "RN1"}, nil
}

func (g *inquiryStubGateway) Settle(context.Context, string) (bool, error) { return true, nil }

func (g *inquiryStubGateway) Reverse(context.Context, string) (bool, error) {
	g.reverseCalls++
	return g.reverseOK, nil
}

func (g *inquiryStubGateway) Inquiry(context.Context, string) (gateway.InquiryStatus, error) {
	return g.status, nil
}

func (g *inquiryStubGateway) Transfer(context.Context, gateway.TransferRequest) (*gateway.TransferResult, error) {
	return &gateway.TransferResult{ExternalPayoutID: "PO1", Accepted: true}, nil
}

func TestReconciler_SettlesConfirmedPayments(t *testing.T) {
	gw := &inquiryStubGateway{status: gateway.InquiryStatusSettled}
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconciler(repo, gw, db, logger, time.Minute, 30*time.Minute)

	// Captured an hour ago, never settled: past the reversal window.
	stale := testutil.SeedPaidPayment(t, db, uuid.New(), uuid.New(), 10000, domain.CurrencyUSD, time.Now().UTC().Add(-time.Hour))

	r.sweep(context.Background())

	p, err := repo.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
	require.NotNil(t, p.SettledAt)
	assert.Equal(t, 0, gw.reverseCalls)
}

func TestReconciler_ReversesUnsettledPayments(t *testing.T) {
	gw := &inquiryStubGateway{status: gateway.InquiryStatusPending, reverseOK: true}
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconciler(repo, gw, db, logger, time.Minute, 30*time.Minute)

	stale := testutil.SeedPaidPayment(t, db, uuid.New(), uuid.New(), 10000, domain.CurrencyUSD, time.Now().UTC().Add(-time.Hour))

	r.sweep(context.Background())

	p, err := repo.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAutoReversed, p.Status)
	assert.Equal(t, 1, gw.reverseCalls)

	// A second sweep finds nothing to do.
	r.sweep(context.Background())
	assert.Equal(t, 1, gw.reverseCalls)
}

func TestReconciler_RecordsGatewaySideReversal(t *testing.T) {
	gw := &inquiryStubGateway{status: gateway.InquiryStatusReversed}
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconciler(repo, gw, db, logger, time.Minute, 30*time.Minute)

	stale := testutil.SeedPaidPayment(t, db, uuid.New(), uuid.New(), 10000, domain.CurrencyUSD, time.Now().UTC().Add(-time.Hour))

	r.sweep(context.Background())

	p, err := repo.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAutoReversed, p.Status)
	// The gateway already reversed it; no second reversal call is made.
	assert.Equal(t, 0, gw.reverseCalls)
}

func TestReconciler_LeavesRecentPaymentsAlone(t *testing.T) {
	gw := &inquiryStubGateway{status: gateway.InquiryStatusPending, reverseOK: true}
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconciler(repo, gw, db, logger, time.Minute, 30*time.Minute)

	// Captured just now: inside the reversal window, untouched by the sweep.
	recent := testutil.SeedPaidPayment(t, db, uuid.New(), uuid.New(), 10000, domain.CurrencyUSD, time.Now().UTC())

	r.sweep(context.Background())

	p, err := repo.GetByID(context.Background(), recent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
	assert.Nil(t, p.SettledAt)
	assert.Equal(t, 0, gw.reverseCalls)
}
