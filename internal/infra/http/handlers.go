package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/infra/metrics"
)

type initiatePaymentRequest struct {
	ServiceSlug string `json:"service_slug"`
	Gateway     string `json:"gateway"`
	Currency    string `json:"currency"`
}

type paymentResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Gateway        string     `json:"gateway"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	CorrelationID  string     `json:"correlation_id,omitempty"`
	FailReason     string     `json:"fail_reason,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	SubscriptionID *string    `json:"subscription_id,omitempty"`
}

type initiatePaymentResponse struct {
	Payment       paymentResponse `json:"payment"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	Instructions  string          `json:"instructions,omitempty"`
}

type verifyCryptoRequest struct {
	TxReference string `json:"tx_reference"`
}

type trialRequest struct {
	ServiceSlug string `json:"service_slug"`
}

type subscriptionResponse struct {
	ID            string     `json:"id"`
	ServiceID     string     `json:"service_id"`
	Status        string     `json:"status"`
	StartAt       time.Time  `json:"start_at"`
	TrialEndAt    *time.Time `json:"trial_end_at,omitempty"`
	NextBillingAt *time.Time `json:"next_billing_at,omitempty"`
	EndAt         *time.Time `json:"end_at,omitempty"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		Status:         string(p.Status),
		Gateway:        string(p.Gateway),
		Amount:         p.Amount.String(),
		Currency:       p.Currency,
		CorrelationID:  p.CorrelationID,
		FailReason:     p.FailReason,
		CompletedAt:    p.CompletedAt,
		SubscriptionID: p.SubscriptionID,
	}
}

func toSubscriptionResponse(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:            s.ID,
		ServiceID:     s.ServiceID,
		Status:        string(s.Status),
		StartAt:       s.StartAt,
		TrialEndAt:    s.TrialEndAt,
		NextBillingAt: s.NextBillingAt,
		EndAt:         s.EndAt,
	}
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	gw := model.Gateway(req.Gateway)
	res, p, err := s.settle.Initiate(r.Context(), userID(r.Context()), req.ServiceSlug, gw, req.Currency)
	if err != nil {
		if p != nil {
			// The payment row exists; report its fate alongside the error.
			metrics.IncPayment(string(p.Gateway), string(p.Status))
		}
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncPayment(string(p.Gateway), string(p.Status))

	writeJSON(w, http.StatusCreated, initiatePaymentResponse{
		Payment:       toPaymentResponse(p),
		RedirectURL:   res.RedirectURL,
		WalletAddress: res.WalletAddress,
		Instructions:  res.Instructions,
	})
}

// handleCallback forwards the raw provider payload to Resume. POST bodies
// pass through verbatim; bancard redirects carry everything in the query
// string.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	gw := model.Gateway(chi.URLParam(r, "gateway"))
	if !model.KnownGateway(gw) {
		writeError(w, http.StatusBadRequest, "unknown gateway")
		return
	}

	var payload []byte
	if r.Method == http.MethodGet {
		payload = []byte(r.URL.RawQuery)
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		payload = body
	}

	p, err := s.settle.Resume(r.Context(), gw, payload)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCorrelationID) {
			// A confirmation for an order this ledger never opened is either
			// misrouting or forgery.
			s.log.Error().Str("gateway", string(gw)).Msg("callback for unknown correlation id")
		}
		s.writeDomainError(w, r, err)
		return
	}
	s.recordSettlement(p)
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) handleVerifyCrypto(w http.ResponseWriter, r *http.Request) {
	var req verifyCryptoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	p, err := s.settle.VerifyCrypto(r.Context(), userID(r.Context()), chi.URLParam(r, "id"), req.TxReference)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.recordSettlement(p)
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// recordSettlement emits the payment counters after a Resume round-trip.
func (s *Server) recordSettlement(p *model.Payment) {
	metrics.IncPayment(string(p.Gateway), string(p.Status))
	if p.Status == model.PaymentStatusCompleted {
		amount, _ := p.Amount.Float64()
		metrics.AddPaymentRevenue(p.Currency, amount)
		if p.SubscriptionID != nil {
			metrics.IncSubscriptionEvent("activated")
		}
	}
}

func (s *Server) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	var req trialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sub, err := s.subs.StartTrial(r.Context(), userID(r.Context()), req.ServiceSlug)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncSubscriptionEvent("trial")
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Cancel(r.Context(), chi.URLParam(r, "id"), userID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncSubscriptionEvent("cancelled")
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleResumeSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Resume(r.Context(), chi.URLParam(r, "id"), userID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncSubscriptionEvent("resumed")
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subs.ListByUser(r.Context(), userID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeDomainError maps the domain taxonomy onto status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidGateway),
		errors.Is(err, domain.ErrUnsupportedCurrency):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownCorrelationID):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrNotCancelled),
		errors.Is(err, domain.ErrTrialNotAvailable),
		errors.Is(err, domain.ErrServiceInactive),
		errors.Is(err, domain.ErrLockNotAcquired):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrProviderTransient),
		errors.Is(err, domain.ErrProviderDeclined):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
