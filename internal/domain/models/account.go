// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// Plan identifiers.
const (
	PlanFree = "free"
	PlanPro  = "pro"
	PlanPAYG = "payg"
	PlanTeam = "team"
)

// Billing constants.
const (
	// PAYGHourlyRate is the pay-as-you-go price of one recorded hour in USD.
	PAYGHourlyRate = 5.0
	// PAYGMinuteRate is the pay-as-you-go price of one recorded minute in USD.
	PAYGMinuteRate = PAYGHourlyRate / 60

	// MinimumCreditsToRecord is the balance below which non-unlimited users cannot start a bot.
	MinimumCreditsToRecord = 5
	// LowBalanceThreshold triggers an auto top-up when the balance falls below it.
	LowBalanceThreshold = 60

	DefaultAutoJoinLeadTime = 2
	MaxAutoJoinLeadTime     = 60
	DefaultRetentionDays    = 7
	MaxRetentionDays        = 365
	DefaultAutoTopUpMinutes = 60
)

// User holds the account fields the recorder needs.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Credits           int       `json:"credits"`
	Plan              string    `json:"plan"`
	AutoJoinEnabled   bool      `json:"auto_join_enabled"`
	AutoJoinLeadTime  int       `json:"auto_join_lead_time"`
	RetentionDays     int       `json:"retention_days"`
	AutoTopUp         bool      `json:"auto_top_up"`
	AutoTopUpMinutes  int       `json:"auto_top_up_minutes"`
	PaymentCustomerID string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsUnlimited reports whether the user's plan has no usage limits.
func (u *User) IsUnlimited() bool {
	return u.Plan == PlanTeam
}

// EffectiveRetentionDays returns the configured retention, falling back to the default.
func (u *User) EffectiveRetentionDays() int {
	if u == nil || u.RetentionDays <= 0 {
		return DefaultRetentionDays
	}
	return u.RetentionDays
}

// EffectiveTopUpMinutes returns the configured top-up size, falling back to the default.
func (u *User) EffectiveTopUpMinutes() int {
	if u.AutoTopUpMinutes <= 0 {
		return DefaultAutoTopUpMinutes
	}
	return u.AutoTopUpMinutes
}

// MinuteRate returns the per-minute charge of a plan. Unlimited and free plans are not charged.
func MinuteRate(plan string) float64 {
	switch plan {
	case PlanTeam, PlanFree:
		return 0
	default:
		return PAYGMinuteRate
	}
}

// UsageCost returns the charge for minutes on plan.
func UsageCost(minutes int, plan string) float64 {
	return float64(minutes) * MinuteRate(plan)
}

// AutoJoinSettings are the user-editable auto-join preferences.
type AutoJoinSettings struct {
	AutoJoinEnabled  bool `json:"auto_join_enabled"`
	AutoJoinLeadTime int  `json:"auto_join_lead_time"`
}

// Validate checks the lead time bounds.
func (s *AutoJoinSettings) Validate() error {
	if s.AutoJoinLeadTime < 0 || s.AutoJoinLeadTime > MaxAutoJoinLeadTime {
		return fmt.Errorf("auto join lead time must be between 0 and %d minutes", MaxAutoJoinLeadTime)
	}
	return nil
}

// Usage is an immutable record of recorded minutes consumed by one meeting.
type Usage struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	MeetingUID string    `json:"meeting_uid"`
	Minutes    int       `json:"minutes"`
	Cost       float64   `json:"cost"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction types.
const (
	TransactionTypeUsage    = "usage"
	TransactionTypePurchase = "purchase"
)

// Transaction is an append-only credit ledger entry.
type Transaction struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	Type             string    `json:"type"`
	Amount           float64   `json:"amount"`
	Credits          int       `json:"credits"`
	Status           string    `json:"status"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
}

// Settlement is a request to charge a completed meeting against a user's balance.
type Settlement struct {
	UserID     string
	MeetingUID string
	Minutes    int
	Cost       float64
}

// SettlementResult reports the balance after a settlement.
type SettlementResult struct {
	AlreadySettled bool
	PreviousCredit int
	NewCredits     int
}

// CreditPurchase records credits bought through the payment provider.
type CreditPurchase struct {
	UserID           string
	Minutes          int
	Amount           float64
	PaymentReference string
}

// TopUpCharge is a request to charge a customer's default payment method.
type TopUpCharge struct {
	CustomerID  string
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// TopUpReceipt is the payment provider's answer to a TopUpCharge.
type TopUpReceipt struct {
	PaymentID string
	Status    string
}

// Succeeded reports whether the charge completed.
func (r *TopUpReceipt) Succeeded() bool {
	return r != nil && r.Status == "succeeded"
}
