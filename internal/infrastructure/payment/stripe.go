// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package payment charges stored payment methods through the Stripe REST API.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// ProviderName names the payment provider in errors and logs
	ProviderName = "stripe"
	// DefaultBaseURL is the Stripe API root
	DefaultBaseURL = "https://api.stripe.com/v1"
	// DefaultCurrency is charged when a TopUpCharge names none
	DefaultCurrency = "usd"
	// DefaultClientTimeout is the default HTTP client timeout for Stripe requests
	DefaultClientTimeout = 30 * time.Second

	// PaymentIntentSucceeded is the only status that grants credits
	PaymentIntentSucceeded = "succeeded"
)

// Config holds the Stripe client settings.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// StripeClient implements domain.PaymentProvider.
type StripeClient struct {
	config     Config
	httpClient *http.Client
}

var _ domain.PaymentProvider = (*StripeClient)(nil)

// NewStripeClient creates a Stripe client, filling unset settings with defaults.
func NewStripeClient(config Config) *StripeClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	return &StripeClient{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type customer struct {
	ID              string `json:"id"`
	Deleted         bool   `json:"deleted"`
	InvoiceSettings struct {
		// DefaultPaymentMethod is an id, or the expanded object.
		DefaultPaymentMethod json.RawMessage `json:"default_payment_method"`
	} `json:"invoice_settings"`
}

func (c *customer) defaultPaymentMethod() string {
	raw := c.InvoiceSettings.DefaultPaymentMethod
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}

type paymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ChargeDefaultPaymentMethod charges the customer's default payment method off-session.
// A customer without a default payment method, or a charge that needs customer
// action, is a precondition failure.
func (s *StripeClient) ChargeDefaultPaymentMethod(ctx context.Context, charge models.TopUpCharge) (*models.TopUpReceipt, error) {
	if charge.CustomerID == "" {
		return nil, domain.NewValidationError("customer id is required")
	}
	if charge.AmountCents <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}

	var cust customer
	if err := s.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(charge.CustomerID), nil, &cust); err != nil {
		return nil, err
	}
	paymentMethod := cust.defaultPaymentMethod()
	if cust.Deleted || paymentMethod == "" {
		return nil, domain.NewPreconditionFailedError("customer has no default payment method")
	}

	currency := charge.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(charge.AmountCents, 10))
	form.Set("currency", currency)
	form.Set("customer", charge.CustomerID)
	form.Set("payment_method", paymentMethod)
	form.Set("off_session", "true")
	form.Set("confirm", "true")
	if charge.Description != "" {
		form.Set("description", charge.Description)
	}
	keys := make([]string, 0, len(charge.Metadata))
	for k := range charge.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", charge.Metadata[k])
	}

	var intent paymentIntent
	if err := s.do(ctx, http.MethodPost, "/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	receipt := &models.TopUpReceipt{PaymentID: intent.ID, Status: intent.Status}
	if intent.Status != PaymentIntentSucceeded {
		slog.WarnContext(ctx, "top-up payment did not succeed",
			"payment_id", intent.ID,
			"status", intent.Status)
		return receipt, domain.NewPreconditionFailedError("payment " + intent.ID + " is " + intent.Status)
	}

	slog.InfoContext(ctx, "top-up payment succeeded", "payment_id", intent.ID, "amount_cents", charge.AmountCents)
	return receipt, nil
}

func (s *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.config.SecretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.NewProviderUnavailableError(ProviderName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewProviderUnavailableError(ProviderName, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr stripeError
		message := string(raw)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		cause := fmt.Errorf("stripe API error (status %d): %s", resp.StatusCode, message)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return domain.NewNotFoundError("payment customer not found", cause)
		case apiErr.Error.Type == "card_error":
			return domain.NewPreconditionFailedError("card declined", cause)
		default:
			return domain.NewProviderUnavailableError(ProviderName, cause)
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode stripe response: %w", err)
	}
	return nil
}
