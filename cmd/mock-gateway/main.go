// mock-gateway is an in-memory stand-in for a redirect-style payment
// gateway, used for local development and compose setups. It issues
// authorities, verifies them once, and tracks settlement state.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/salonova/payments/internal/logging"
)

type paymentState string

const (
	stateRequested paymentState = "requested"
	stateVerified  paymentState = "verified"
	stateSettled   paymentState = "settled"
	stateReversed  paymentState = "reversed"
)

type mockPayment struct {
	Authority string
	Amount    int64
	Currency  string
	State     paymentState
}

type store struct {
	mu       sync.Mutex
	payments map[string]*mockPayment
}

func newStore() *store {
	return &store{payments: make(map[string]*mockPayment)}
}

func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	s := newStore()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /request", s.handleRequest)
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("POST /settle", s.handleSettle)
	mux.HandleFunc("POST /reverse", s.handleReverse)
	mux.HandleFunc("POST /inquiry", s.handleInquiry)
	mux.HandleFunc("POST /transfer", s.handleTransfer)

	addr := ":8081"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	slog.Info("mock gateway started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *store) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		CallbackURL string `json:"callback_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	authority := "A" + uuid.NewString()

	s.mu.Lock()
	s.payments[authority] = &mockPayment{
		Authority: authority,
		Amount:    req.Amount,
		Currency:  req.Currency,
		State:     stateRequested,
	}
	s.mu.Unlock()

	slog.Info("payment request issued", "authority", authority, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{
		"authority":   authority,
		"payment_url": fmt.Sprintf("http://localhost%s/pay/%s", r.Host, authority),
	})
}

func (s *store) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority string `json:"authority"`
		Amount    int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[req.Authority]
	if !ok || p.Amount != req.Amount || p.State == stateReversed {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}
	if p.State == stateRequested {
		p.State = stateVerified
	}

	fee := p.Amount / 100
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"ref_number": "RN" + req.Authority[1:9],
		"card_pan":   "502229******1234",
		"fee":        fee,
	})
}

func (s *store) handleSettle(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, stateVerified, stateSettled)
}

func (s *store) handleReverse(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, stateVerified, stateReversed)
}

func (s *store) transition(w http.ResponseWriter, r *http.Request, from, to paymentState) {
	var req struct {
		Authority string `json:"authority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[req.Authority]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}
	if p.State == to {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if p.State != from {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}
	p.State = to
	slog.Info("payment state changed", "authority", p.Authority, "state", to)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *store) handleInquiry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority string `json:"authority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	s.mu.Lock()
	p, ok := s.payments[req.Authority]
	s.mu.Unlock()

	status := "unknown"
	if ok {
		switch p.State {
		case stateRequested, stateVerified:
			status = "pending"
		case stateSettled:
			status = "settled"
		case stateReversed:
			status = "reversed"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *store) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectedAccountID string `json:"connected_account_id"`
		Amount             int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConnectedAccountID == "" || req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	payoutID := "PO" + uuid.NewString()
	slog.Info("transfer accepted",
		"payout_id", payoutID,
		"connected_account_id", req.ConnectedAccountID,
		"amount", req.Amount,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"payout_id": payoutID,
		"accepted":  true,
	})
}
