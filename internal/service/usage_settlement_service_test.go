// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUsageSettlementService_Settle(t *testing.T) {
	tests := []struct {
		name         string
		user         *models.User
		result       *models.SettlementResult
		expectCharge bool
	}{
		{
			name:   "healthy balance",
			user:   &models.User{ID: "user-1", Plan: models.PlanPAYG, AutoTopUp: true, PaymentCustomerID: "cus_1"},
			result: &models.SettlementResult{PreviousCredit: 200, NewCredits: 170},
		},
		{
			name:   "already settled",
			user:   &models.User{ID: "user-1", Plan: models.PlanPAYG, AutoTopUp: true, PaymentCustomerID: "cus_1"},
			result: &models.SettlementResult{AlreadySettled: true, PreviousCredit: 10, NewCredits: 10},
		},
		{
			name:   "low balance without auto top-up",
			user:   &models.User{ID: "user-1", Plan: models.PlanPAYG},
			result: &models.SettlementResult{PreviousCredit: 60, NewCredits: 30},
		},
		{
			name:   "low balance without payment customer",
			user:   &models.User{ID: "user-1", Plan: models.PlanPAYG, AutoTopUp: true},
			result: &models.SettlementResult{PreviousCredit: 60, NewCredits: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mocks.MockLedgerRepository{}
			payments := &mocks.MockPaymentProvider{}
			svc := NewUsageSettlementService(ledger, payments, nil)

			ledger.On("SettleUsage", mock.Anything, models.Settlement{
				UserID:     "user-1",
				MeetingUID: "m-1",
				Minutes:    30,
				Cost:       models.UsageCost(30, models.PlanPAYG),
			}).Return(tt.result, nil)

			result, err := svc.Settle(context.Background(), tt.user, "m-1", 30)
			require.NoError(t, err)
			assert.Equal(t, tt.result, result)
			payments.AssertNotCalled(t, "ChargeDefaultPaymentMethod", mock.Anything, mock.Anything)
			ledger.AssertNotCalled(t, "RecordPurchase", mock.Anything, mock.Anything)
			ledger.AssertExpectations(t)
		})
	}
}

func TestUsageSettlementService_Settle_InvalidInput(t *testing.T) {
	svc := NewUsageSettlementService(&mocks.MockLedgerRepository{}, nil, nil)

	_, err := svc.Settle(context.Background(), nil, "m-1", 5)
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeValidation))

	_, err = svc.Settle(context.Background(), &models.User{ID: "user-1"}, "m-1", -1)
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeValidation))
}

func TestUsageSettlementService_AutoTopUp(t *testing.T) {
	user := &models.User{
		ID:                "user-1",
		Plan:              models.PlanPAYG,
		AutoTopUp:         true,
		AutoTopUpMinutes:  120,
		PaymentCustomerID: "cus_1",
	}
	expectedCharge := models.TopUpCharge{
		CustomerID:  "cus_1",
		AmountCents: 1000,
		Description: "Auto top-up: 120 minutes",
		Metadata: map[string]string{
			"user_id": "user-1",
			"minutes": "120",
			"type":    "auto_topup",
		},
	}
	purchase := mock.MatchedBy(func(p models.CreditPurchase) bool {
		return p.UserID == "user-1" && p.Minutes == 120 && p.PaymentReference == "pi_1" &&
			p.Amount > 9.99 && p.Amount < 10.01
	})

	tests := []struct {
		name           string
		charge         func(*mocks.MockPaymentProvider)
		recordPurchase func(*mocks.MockLedgerRepository)
	}{
		{
			name: "charge and credit",
			charge: func(p *mocks.MockPaymentProvider) {
				p.On("ChargeDefaultPaymentMethod", mock.Anything, expectedCharge).
					Return(&models.TopUpReceipt{PaymentID: "pi_1", Status: "succeeded"}, nil)
			},
			recordPurchase: func(l *mocks.MockLedgerRepository) {
				l.On("RecordPurchase", mock.Anything, purchase).Return(160, nil)
			},
		},
		{
			name: "card declined",
			charge: func(p *mocks.MockPaymentProvider) {
				p.On("ChargeDefaultPaymentMethod", mock.Anything, expectedCharge).
					Return(nil, domain.NewPreconditionFailedError("card declined"))
			},
		},
		{
			name: "credit write fails after charge",
			charge: func(p *mocks.MockPaymentProvider) {
				p.On("ChargeDefaultPaymentMethod", mock.Anything, expectedCharge).
					Return(&models.TopUpReceipt{PaymentID: "pi_1", Status: "succeeded"}, nil)
			},
			recordPurchase: func(l *mocks.MockLedgerRepository) {
				l.On("RecordPurchase", mock.Anything, purchase).Return(0, errors.New("postgres down"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mocks.MockLedgerRepository{}
			payments := &mocks.MockPaymentProvider{}
			svc := NewUsageSettlementService(ledger, payments, nil)

			ledger.On("SettleUsage", mock.Anything, mock.Anything).
				Return(&models.SettlementResult{PreviousCredit: 70, NewCredits: 40}, nil)
			tt.charge(payments)
			if tt.recordPurchase != nil {
				tt.recordPurchase(ledger)
			}

			result, err := svc.Settle(context.Background(), user, "m-1", 30)
			require.NoError(t, err)
			assert.Equal(t, 40, result.NewCredits)
			payments.AssertExpectations(t)
			ledger.AssertExpectations(t)
			if tt.recordPurchase == nil {
				ledger.AssertNotCalled(t, "RecordPurchase", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUsageSettlementService_AutoTopUpWithoutProvider(t *testing.T) {
	ledger := &mocks.MockLedgerRepository{}
	svc := NewUsageSettlementService(ledger, nil, nil)

	ledger.On("SettleUsage", mock.Anything, mock.Anything).
		Return(&models.SettlementResult{PreviousCredit: 70, NewCredits: 40}, nil)

	user := &models.User{ID: "user-1", Plan: models.PlanPAYG, AutoTopUp: true, PaymentCustomerID: "cus_1"}
	_, err := svc.Settle(context.Background(), user, "m-1", 30)
	require.NoError(t, err)
	ledger.AssertNotCalled(t, "RecordPurchase", mock.Anything, mock.Anything)
}
