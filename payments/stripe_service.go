package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/globalcarry/globalcarry/configs"
	"github.com/globalcarry/globalcarry/escrow"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeService talks to the Stripe REST API with form-encoded requests.
// It implements escrow.Gateway and never touches booking state itself.
type StripeService struct {
	secretKey string
	apiBase   string
	client    *http.Client
}

func NewStripeService() *StripeService {
	return &StripeService{
		secretKey: config.Config("STRIPE_SECRET_KEY"),
		apiBase:   stripeAPIBase,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
}

type stripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *StripeService) do(method, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, s.apiBase+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("stripe %s %s returned %s: %s", method, path, resp.Status, string(respBody))
	}
	return respBody, nil
}

func (s *StripeService) CreateCheckoutSession(params escrow.CheckoutParams) (*escrow.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", params.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Delivery: "+params.Title)
	if params.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", params.Description)
	}
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
		form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", k), v)
	}

	respBody, err := s.do(http.MethodPost, "/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	var session stripeSession
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, err
	}
	return &escrow.CheckoutSession{
		ID:              session.ID,
		URL:             session.URL,
		PaymentIntentID: session.PaymentIntent,
		PaymentStatus:   session.PaymentStatus,
		AmountTotal:     session.AmountTotal,
	}, nil
}

func (s *StripeService) RetrieveCheckoutSession(sessionID string) (*escrow.CheckoutSession, error) {
	respBody, err := s.do(http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}

	var session stripeSession
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, err
	}
	return &escrow.CheckoutSession{
		ID:              session.ID,
		URL:             session.URL,
		PaymentIntentID: session.PaymentIntent,
		PaymentStatus:   session.PaymentStatus,
		AmountTotal:     session.AmountTotal,
	}, nil
}

func (s *StripeService) CreateRefund(paymentIntentID, reason string, metadata map[string]string) (*escrow.Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	if reason == "requested_by_customer" || reason == "duplicate" || reason == "fraudulent" {
		form.Set("reason", reason)
	} else if reason != "" {
		form.Set("metadata[reason]", reason)
	}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	respBody, err := s.do(http.MethodPost, "/refunds", form)
	if err != nil {
		return nil, err
	}

	var refund stripeRefund
	if err := json.Unmarshal(respBody, &refund); err != nil {
		return nil, err
	}
	return &escrow.Refund{ID: refund.ID, Status: refund.Status}, nil
}
