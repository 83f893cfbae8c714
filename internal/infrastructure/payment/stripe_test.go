// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stripeStub struct {
	customerBody string
	customerCode int
	intentBody   string
	intentCode   int
	intentForm   map[string]string
}

func (s *stripeStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/customers/cus_1":
			w.WriteHeader(orOK(s.customerCode))
			_, _ = w.Write([]byte(s.customerBody))
		case r.Method == http.MethodPost && r.URL.Path == "/payment_intents":
			require.NoError(t, r.ParseForm())
			s.intentForm = map[string]string{}
			for k := range r.PostForm {
				s.intentForm[k] = r.PostForm.Get(k)
			}
			w.WriteHeader(orOK(s.intentCode))
			_, _ = w.Write([]byte(s.intentBody))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such resource"}}`))
		}
	}
}

func orOK(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}

func newStubbedClient(t *testing.T, stub *stripeStub) *StripeClient {
	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)
	return NewStripeClient(Config{SecretKey: "sk_test", BaseURL: server.URL})
}

func TestStripeClient_ChargeDefaultPaymentMethod(t *testing.T) {
	stub := &stripeStub{
		customerBody: `{"id":"cus_1","invoice_settings":{"default_payment_method":"pm_1"}}`,
		intentBody:   `{"id":"pi_1","status":"succeeded"}`,
	}
	client := newStubbedClient(t, stub)

	receipt, err := client.ChargeDefaultPaymentMethod(context.Background(), models.TopUpCharge{
		CustomerID:  "cus_1",
		AmountCents: 500,
		Description: "Auto top-up: 60 minutes",
		Metadata:    map[string]string{"user_id": "u1", "minutes": "60"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", receipt.PaymentID)
	assert.Equal(t, PaymentIntentSucceeded, receipt.Status)

	assert.Equal(t, "500", stub.intentForm["amount"])
	assert.Equal(t, "usd", stub.intentForm["currency"])
	assert.Equal(t, "pm_1", stub.intentForm["payment_method"])
	assert.Equal(t, "true", stub.intentForm["off_session"])
	assert.Equal(t, "true", stub.intentForm["confirm"])
	assert.Equal(t, "u1", stub.intentForm["metadata[user_id]"])
}

func TestStripeClient_ChargeDefaultPaymentMethod_ExpandedPaymentMethod(t *testing.T) {
	stub := &stripeStub{
		customerBody: `{"id":"cus_1","invoice_settings":{"default_payment_method":{"id":"pm_2","type":"card"}}}`,
		intentBody:   `{"id":"pi_2","status":"succeeded"}`,
	}
	client := newStubbedClient(t, stub)

	_, err := client.ChargeDefaultPaymentMethod(context.Background(), models.TopUpCharge{CustomerID: "cus_1", AmountCents: 100})
	require.NoError(t, err)
	assert.Equal(t, "pm_2", stub.intentForm["payment_method"])
}

func TestStripeClient_ChargeDefaultPaymentMethod_Failures(t *testing.T) {
	tests := []struct {
		name    string
		charge  models.TopUpCharge
		stub    stripeStub
		errType domain.ErrorType
		receipt bool
	}{
		{
			name:    "missing customer id",
			charge:  models.TopUpCharge{AmountCents: 100},
			errType: domain.ErrorTypeValidation,
		},
		{
			name:    "zero amount",
			charge:  models.TopUpCharge{CustomerID: "cus_1"},
			errType: domain.ErrorTypeValidation,
		},
		{
			name:    "no default payment method",
			charge:  models.TopUpCharge{CustomerID: "cus_1", AmountCents: 100},
			stub:    stripeStub{customerBody: `{"id":"cus_1","invoice_settings":{"default_payment_method":null}}`},
			errType: domain.ErrorTypePreconditionFailed,
		},
		{
			name:    "deleted customer",
			charge:  models.TopUpCharge{CustomerID: "cus_1", AmountCents: 100},
			stub:    stripeStub{customerBody: `{"id":"cus_1","deleted":true}`},
			errType: domain.ErrorTypePreconditionFailed,
		},
		{
			name:    "unknown customer",
			charge:  models.TopUpCharge{CustomerID: "cus_missing", AmountCents: 100},
			errType: domain.ErrorTypeNotFound,
		},
		{
			name:   "card declined",
			charge: models.TopUpCharge{CustomerID: "cus_1", AmountCents: 100},
			stub: stripeStub{
				customerBody: `{"id":"cus_1","invoice_settings":{"default_payment_method":"pm_1"}}`,
				intentCode:   http.StatusPaymentRequired,
				intentBody:   `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`,
			},
			errType: domain.ErrorTypePreconditionFailed,
		},
		{
			name:   "requires action",
			charge: models.TopUpCharge{CustomerID: "cus_1", AmountCents: 100},
			stub: stripeStub{
				customerBody: `{"id":"cus_1","invoice_settings":{"default_payment_method":"pm_1"}}`,
				intentBody:   `{"id":"pi_3","status":"requires_action"}`,
			},
			errType: domain.ErrorTypePreconditionFailed,
			receipt: true,
		},
		{
			name:   "stripe outage",
			charge: models.TopUpCharge{CustomerID: "cus_1", AmountCents: 100},
			stub: stripeStub{
				customerCode: http.StatusInternalServerError,
				customerBody: `{"error":{"type":"api_error","message":"internal"}}`,
			},
			errType: domain.ErrorTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := tt.stub
			client := newStubbedClient(t, &stub)

			receipt, err := client.ChargeDefaultPaymentMethod(context.Background(), tt.charge)
			require.Error(t, err)
			assert.Equal(t, tt.errType, domain.GetErrorType(err))
			if tt.receipt {
				require.NotNil(t, receipt)
				assert.Equal(t, "requires_action", receipt.Status)
			} else {
				assert.Nil(t, receipt)
			}
		})
	}
}
