// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
)

var (
	// ErrMissingSignature is returned when a signed webhook arrives without a signature.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrSignatureMismatch is returned when the signature does not match the body.
	ErrSignatureMismatch = errors.New("recall webhook signature does not match expected signature")
)

// RecallWebhookValidator checks the x-recall-signature header of Recall.ai webhooks.
type RecallWebhookValidator struct {
	secret []byte
}

var _ domain.WebhookValidator = (*RecallWebhookValidator)(nil)

// NewRecallWebhookValidator creates a validator. An empty secret disables verification.
func NewRecallWebhookValidator(secret string) *RecallWebhookValidator {
	return &RecallWebhookValidator{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *RecallWebhookValidator) Enabled() bool {
	return len(v.secret) > 0
}

// ValidateSignature checks signature, the hex HMAC-SHA256 of body. It accepts any
// body when verification is disabled.
func (v *RecallWebhookValidator) ValidateSignature(body []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		slog.Warn("recall webhook signature is not hex encoded")
		return ErrSignatureMismatch
	}

	if !hmac.Equal(given, Sign(v.secret, body)) {
		slog.Warn("recall webhook signature does not match expected signature")
		return ErrSignatureMismatch
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return h.Sum(nil)
}
