// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"fmt"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
)

const transactionStatusCompleted = "completed"

// LedgerRepository implements domain.LedgerRepository.
type LedgerRepository struct {
	db      DB
	metrics *metrics.Metrics
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db DB, m *metrics.Metrics) *LedgerRepository {
	return &LedgerRepository{db: db, metrics: m}
}

// SettleUsage charges a meeting against the user's balance in one transaction.
// The user row is locked first so concurrent settlements serialize, and the
// unique meeting_uid on usage makes a repeated settlement a no-op.
func (r *LedgerRepository) SettleUsage(ctx context.Context, s models.Settlement) (*models.SettlementResult, error) {
	defer r.metrics.ObserveDB("settle_usage")()

	if s.Minutes < 0 {
		return nil, domain.NewValidationError("minutes cannot be negative")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, domain.NewInternalError("failed to start settlement", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var credits int
	err = tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, s.UserID).Scan(&credits)
	if err != nil {
		return nil, userQueryError(s.UserID, "lock", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO usage (user_id, meeting_uid, minutes, cost)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (meeting_uid) DO NOTHING`,
		s.UserID, s.MeetingUID, s.Minutes, s.Cost,
	)
	if err != nil {
		return nil, domain.NewInternalError("failed to insert usage", err)
	}
	if tag.RowsAffected() == 0 {
		return &models.SettlementResult{AlreadySettled: true, PreviousCredit: credits, NewCredits: credits}, nil
	}

	newCredits := max(credits-s.Minutes, 0)
	if _, err := tx.Exec(ctx, `UPDATE users SET credits = $2, updated_at = NOW() WHERE id = $1`, s.UserID, newCredits); err != nil {
		return nil, domain.NewInternalError("failed to update credits", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (user_id, type, amount, credits, status, description)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.UserID, models.TransactionTypeUsage, -s.Cost, -s.Minutes, transactionStatusCompleted,
		fmt.Sprintf("Recording usage for meeting %s (%d minutes)", s.MeetingUID, s.Minutes),
	); err != nil {
		return nil, domain.NewInternalError("failed to insert usage transaction", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewInternalError("failed to commit settlement", err)
	}

	return &models.SettlementResult{PreviousCredit: credits, NewCredits: newCredits}, nil
}

// RecordPurchase adds purchased minutes and returns the new balance.
func (r *LedgerRepository) RecordPurchase(ctx context.Context, p models.CreditPurchase) (int, error) {
	defer r.metrics.ObserveDB("record_purchase")()

	if p.Minutes <= 0 {
		return 0, domain.NewValidationError("purchased minutes must be positive")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, domain.NewInternalError("failed to start purchase", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var credits int
	err = tx.QueryRow(ctx, `
		UPDATE users SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits`,
		p.UserID, p.Minutes,
	).Scan(&credits)
	if err != nil {
		return 0, userQueryError(p.UserID, "credit", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (user_id, type, amount, credits, status, payment_reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.UserID, models.TransactionTypePurchase, p.Amount, p.Minutes, transactionStatusCompleted, p.PaymentReference,
		fmt.Sprintf("Auto top-up of %d minutes", p.Minutes),
	); err != nil {
		return 0, domain.NewInternalError("failed to insert purchase transaction", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, domain.NewInternalError("failed to commit purchase", err)
	}
	return credits, nil
}

// ListUsageByUser returns the user's usage rows, newest first.
func (r *LedgerRepository) ListUsageByUser(ctx context.Context, userID string) ([]*models.Usage, error) {
	defer r.metrics.ObserveDB("list_usage")()

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, meeting_uid, minutes, cost, created_at
		FROM usage
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list usage", err)
	}
	defer rows.Close()

	var usage []*models.Usage
	for rows.Next() {
		u := &models.Usage{}
		if err := rows.Scan(&u.ID, &u.UserID, &u.MeetingUID, &u.Minutes, &u.Cost, &u.CreatedAt); err != nil {
			return nil, domain.NewInternalError("failed to scan usage", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("error iterating usage", err)
	}
	return usage, nil
}

// DeleteUsageByMeeting removes the usage row of a deleted meeting. The ledger
// transaction stays.
func (r *LedgerRepository) DeleteUsageByMeeting(ctx context.Context, meetingUID string) error {
	defer r.metrics.ObserveDB("delete_usage")()

	if _, err := r.db.Exec(ctx, `DELETE FROM usage WHERE meeting_uid = $1`, meetingUID); err != nil {
		return domain.NewInternalError("failed to delete usage", err)
	}
	return nil
}
