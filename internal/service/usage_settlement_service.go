// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
)

// UsageSettlementService charges completed meetings against user balances and tops
// balances up when they run low.
type UsageSettlementService struct {
	LedgerRepository domain.LedgerRepository
	// PaymentProvider is optional; without it auto top-up is disabled.
	PaymentProvider domain.PaymentProvider
	Metrics         *metrics.Metrics
}

// NewUsageSettlementService creates a new UsageSettlementService.
func NewUsageSettlementService(
	ledgerRepository domain.LedgerRepository,
	paymentProvider domain.PaymentProvider,
	m *metrics.Metrics,
) *UsageSettlementService {
	return &UsageSettlementService{
		LedgerRepository: ledgerRepository,
		PaymentProvider:  paymentProvider,
		Metrics:          m,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *UsageSettlementService) ServiceReady() bool {
	return s.LedgerRepository != nil
}

// Settle deducts minutes from the user's balance and records the usage of meetingUID.
// A meeting is settled at most once; repeated calls report AlreadySettled.
func (s *UsageSettlementService) Settle(ctx context.Context, user *models.User, meetingUID string, minutes int) (*models.SettlementResult, error) {
	if user == nil {
		return nil, domain.NewValidationError("user is required")
	}
	if minutes < 0 {
		return nil, domain.NewValidationError(fmt.Sprintf("minutes must not be negative, got %d", minutes))
	}

	ctx = logging.AppendCtx(ctx, slog.String("user_id", user.ID))

	result, err := s.LedgerRepository.SettleUsage(ctx, models.Settlement{
		UserID:     user.ID,
		MeetingUID: meetingUID,
		Minutes:    minutes,
		Cost:       models.UsageCost(minutes, user.Plan),
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadySettled {
		slog.InfoContext(ctx, "meeting usage already settled", "meeting_uid", meetingUID)
		return result, nil
	}

	s.Metrics.Settled(minutes)
	slog.InfoContext(ctx, "meeting usage settled",
		"meeting_uid", meetingUID,
		"minutes", minutes,
		"previous_credits", result.PreviousCredit,
		"credits", result.NewCredits)

	if result.NewCredits < models.LowBalanceThreshold && user.AutoTopUp {
		s.autoTopUp(ctx, user)
	}

	return result, nil
}

// autoTopUp buys the user's configured top-up with their default payment method.
// Failures are logged and never surface to the settlement.
func (s *UsageSettlementService) autoTopUp(ctx context.Context, user *models.User) {
	if s.PaymentProvider == nil {
		slog.WarnContext(ctx, "auto top-up requested but no payment provider is configured")
		return
	}
	if user.PaymentCustomerID == "" {
		slog.WarnContext(ctx, "auto top-up requested but user has no payment customer")
		return
	}

	minutes := user.EffectiveTopUpMinutes()
	amount := float64(minutes) * models.PAYGMinuteRate

	receipt, err := s.PaymentProvider.ChargeDefaultPaymentMethod(ctx, models.TopUpCharge{
		CustomerID:  user.PaymentCustomerID,
		AmountCents: int64(math.Round(amount * 100)),
		Description: fmt.Sprintf("Auto top-up: %d minutes", minutes),
		Metadata: map[string]string{
			"user_id": user.ID,
			"minutes": strconv.Itoa(minutes),
			"type":    "auto_topup",
		},
	})
	if err != nil {
		slog.WarnContext(ctx, "auto top-up charge failed", logging.ErrKey, err, "minutes", minutes)
		return
	}

	credits, err := s.LedgerRepository.RecordPurchase(ctx, models.CreditPurchase{
		UserID:           user.ID,
		Minutes:          minutes,
		Amount:           amount,
		PaymentReference: receipt.PaymentID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "payment taken but credits not recorded",
			logging.ErrKey, err,
			"payment_id", receipt.PaymentID,
			"minutes", minutes,
			logging.PriorityCritical())
		return
	}

	slog.InfoContext(ctx, "auto top-up completed",
		"payment_id", receipt.PaymentID,
		"minutes", minutes,
		"credits", credits)
}
