package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonova/payments/internal/domain"
	"github.com/salonova/payments/internal/service"
)

type mockEarningsService struct {
	report *domain.EarningsReport
	query  service.EarningsQuery
	err    error
}

func (m *mockEarningsService) ProviderEarnings(_ context.Context, q service.EarningsQuery) (*domain.EarningsReport, error) {
	m.query = q
	return m.report, m.err
}

func TestCalculatePricing(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantTotal  int64
		wantTax    int64
	}{
		{
			name:       "tax exclusive",
			body:       `{"base_amount":10000,"currency":"USD","tax_percentage":9}`,
			wantStatus: http.StatusOK,
			wantTotal:  10900,
			wantTax:    900,
		},
		{
			name:       "tax inclusive keeps the total",
			body:       `{"base_amount":12000,"currency":"USD","tax_percentage":20,"tax_inclusive":true}`,
			wantStatus: http.StatusOK,
			wantTotal:  12000,
			wantTax:    2000,
		},
		{
			name:       "discount applied before tax",
			body:       `{"base_amount":10000,"currency":"EUR","tax_percentage":20,"tax_inclusive":true,"discount_percentage":10}`,
			wantStatus: http.StatusOK,
			wantTotal:  9000,
			wantTax:    1500,
		},
		{
			name:       "invalid JSON",
			body:       "not-json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "negative base amount",
			body:       `{"base_amount":-100,"currency":"USD"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_AMOUNT",
		},
		{
			name:       "unsupported currency",
			body:       `{"base_amount":100,"currency":"XYZ"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_CURRENCY",
		},
		{
			name:       "percentage out of range",
			body:       `{"base_amount":100,"currency":"USD","tax_percentage":101}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PERCENTAGE",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewFinancialHandler(&mockEarningsService{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/calculate", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			h.CalculatePricing(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp struct {
				Success bool       `json:"success"`
				Data    pricingDTO `json:"data"`
				Error   *APIError  `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

			if tc.wantCode != "" {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}
			assert.True(t, resp.Success)
			assert.Equal(t, tc.wantTotal, resp.Data.TotalAmount)
			assert.Equal(t, tc.wantTax, resp.Data.TaxAmount)
		})
	}
}

func TestEarnings(t *testing.T) {
	providerID := uuid.New()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)

	svc := &mockEarningsService{report: &domain.EarningsReport{
		ProviderID:       providerID,
		StartDate:        start,
		EndDate:          end,
		Currency:         domain.CurrencyUSD,
		GrossEarnings:    domain.Money{Amount: 50000, Currency: domain.CurrencyUSD},
		CommissionAmount: domain.Money{Amount: 7500, Currency: domain.CurrencyUSD},
		TotalRefunded:    domain.Money{Amount: 0, Currency: domain.CurrencyUSD},
		NetEarnings:      domain.PriceDifference{Amount: 42500, Currency: domain.CurrencyUSD},
		TotalPayments:    5,
		ByDate: []domain.DailyEarnings{
			{Date: start, GrossAmount: domain.Money{Amount: 50000, Currency: domain.CurrencyUSD}, PaymentCount: 5},
		},
	}}
	h := NewFinancialHandler(svc)

	url := fmt.Sprintf("/api/v1/providers/%s/earnings?start_date=%s&end_date=%s&commission_percentage=15",
		providerID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", providerID.String())
	rr := httptest.NewRecorder()

	h.Earnings(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, svc.query.CommissionPercentage)
	assert.Equal(t, 15.0, *svc.query.CommissionPercentage)
	assert.Equal(t, start, svc.query.StartDate)

	var resp struct {
		Success bool        `json:"success"`
		Data    earningsDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(42500), resp.Data.NetEarnings)
	require.Len(t, resp.Data.ByDate, 1)
	assert.Equal(t, "2026-08-01", resp.Data.ByDate[0].Date)
}

func TestEarnings_Validation(t *testing.T) {
	tests := []struct {
		name       string
		pathID     string
		query      string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad provider id",
			pathID:     "not-a-uuid",
			query:      "start_date=2026-08-01T00:00:00Z&end_date=2026-08-08T00:00:00Z",
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
		},
		{
			name:       "missing start date",
			pathID:     uuid.NewString(),
			query:      "end_date=2026-08-08T00:00:00Z",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "malformed end date",
			pathID:     uuid.NewString(),
			query:      "start_date=2026-08-01T00:00:00Z&end_date=yesterday",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "non-numeric commission override",
			pathID:     uuid.NewString(),
			query:      "start_date=2026-08-01T00:00:00Z&end_date=2026-08-08T00:00:00Z&commission_percentage=lots",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewFinancialHandler(&mockEarningsService{})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/x/earnings?"+tc.query, nil)
			req.SetPathValue("id", tc.pathID)
			rr := httptest.NewRecorder()

			h.Earnings(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}
