// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
)

const userColumns = `id, email, credits, plan, auto_join_enabled, auto_join_lead_time,
	retention_days, auto_top_up, auto_top_up_minutes, payment_customer_id, created_at, updated_at`

// AccountRepository implements domain.AccountRepository.
type AccountRepository struct {
	db      DB
	metrics *metrics.Metrics
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db DB, m *metrics.Metrics) *AccountRepository {
	return &AccountRepository{db: db, metrics: m}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Credits, &u.Plan, &u.AutoJoinEnabled, &u.AutoJoinLeadTime,
		&u.RetentionDays, &u.AutoTopUp, &u.AutoTopUpMinutes, &u.PaymentCustomerID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func userQueryError(userID, op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError(fmt.Sprintf("user %s not found", userID))
	}
	return domain.NewInternalError(fmt.Sprintf("failed to %s user", op), err)
}

// GetUser retrieves a user by ID.
func (r *AccountRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	defer r.metrics.ObserveDB("get_user")()

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, userQueryError(userID, "get", err)
	}
	return u, nil
}

// ListAutoJoinUsers returns every user with auto-join enabled.
func (r *AccountRepository) ListAutoJoinUsers(ctx context.Context) ([]*models.User, error) {
	defer r.metrics.ObserveDB("list_auto_join_users")()

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE auto_join_enabled ORDER BY id`)
	if err != nil {
		return nil, domain.NewInternalError("failed to list auto-join users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.NewInternalError("failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("error iterating users", err)
	}
	return users, nil
}

// UpdateAutoJoinSettings stores the auto-join preferences and returns the updated user.
func (r *AccountRepository) UpdateAutoJoinSettings(ctx context.Context, userID string, settings models.AutoJoinSettings) (*models.User, error) {
	defer r.metrics.ObserveDB("update_auto_join_settings")()

	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET auto_join_enabled = $2, auto_join_lead_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, settings.AutoJoinEnabled, settings.AutoJoinLeadTime,
	))
	if err != nil {
		return nil, userQueryError(userID, "update", err)
	}
	return u, nil
}

// UpdateRetentionDays stores the retention period and returns the updated user.
func (r *AccountRepository) UpdateRetentionDays(ctx context.Context, userID string, days int) (*models.User, error) {
	defer r.metrics.ObserveDB("update_retention_days")()

	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET retention_days = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, days,
	))
	if err != nil {
		return nil, userQueryError(userID, "update", err)
	}
	return u, nil
}
