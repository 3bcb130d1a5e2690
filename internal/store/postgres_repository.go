/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed for the users, payments and
 * videos tables.
 *
 * @notes
 * - Every payment status transition is a single conditional UPDATE gated on
 *   `status = 'pending'`. The affected-row count is the idempotence check:
 *   a duplicate callback delivery matches zero rows and writes nothing, so
 *   there is no read-then-write window to race through.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benardngware/somanamimi2/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrVideoNotFound   = errors.New("video not found")
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateUser inserts a new user row and returns its id.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) (int64, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, has_subscription)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`
	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}

	var userID int64
	err := r.db.QueryRow(ctx, query, user.Name, user.Email, user.PasswordHash, role).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrEmailTaken
		}
		return 0, err
	}
	return userID, nil
}

// FindUserByEmail retrieves a user by email, including the password hash for
// credential verification.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT id, name, email, password_hash, role, has_subscription, created_at
		FROM users
		WHERE lower(email) = lower(btrim($1))
	`
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Role, &user.HasSubscription, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID retrieves a user by id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT id, name, email, password_hash, role, has_subscription, created_at
		FROM users
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Role, &user.HasSubscription, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreatePayment inserts the initial pending ledger row for an STK push attempt.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, phone_number, amount, merchant_request_id, checkout_request_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.UserID,
		payment.PhoneNumber,
		payment.Amount,
		payment.MerchantRequestID,
		payment.CheckoutRequestID,
		domain.PaymentStatusPending,
	)
	return err
}

// FindPaymentByMerchantRequestID retrieves a ledger entry by its provider
// correlation id.
func (r *PostgresRepository) FindPaymentByMerchantRequestID(ctx context.Context, merchantRequestID string) (*domain.Payment, error) {
	var payment domain.Payment
	query := `
		SELECT id, user_id, phone_number, amount, merchant_request_id, checkout_request_id,
		       status, failure_reason, created_at, updated_at
		FROM payments
		WHERE merchant_request_id = $1
	`
	err := r.db.QueryRow(ctx, query, merchantRequestID).Scan(
		&payment.ID, &payment.UserID, &payment.PhoneNumber, &payment.Amount,
		&payment.MerchantRequestID, &payment.CheckoutRequestID,
		&payment.Status, &payment.FailureReason, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// CompletePaymentAndGrantSubscription applies the success transition and the
// subscription grant atomically. Both writes commit together or not at all,
// so a retried callback can never leave the payment completed but the user
// ungranted.
func (r *PostgresRepository) CompletePaymentAndGrantSubscription(ctx context.Context, merchantRequestID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var userID int64
	transitionQuery := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE merchant_request_id = $1 AND status = $3
		RETURNING user_id
	`
	err = tx.QueryRow(ctx, transitionQuery, merchantRequestID, domain.PaymentStatusCompleted, domain.PaymentStatusPending).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already terminal (or unknown): nothing to apply.
			return false, nil
		}
		return false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET has_subscription = TRUE WHERE id = $1`, userID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// MarkPaymentFailed applies the failure transition. The user's subscription
// flag is left untouched.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, merchantRequestID, reason string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2, failure_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE merchant_request_id = $1 AND status = $4
	`
	result, err := r.db.Exec(ctx, query, merchantRequestID, domain.PaymentStatusFailed, reason, domain.PaymentStatusPending)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// ExpireStalePendingPayments fails every pending attempt older than cutoff.
// Attempts whose callback was lost (provider outage, dropped webhook) would
// otherwise stay pending forever.
func (r *PostgresRepository) ExpireStalePendingPayments(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET status = $2, failure_reason = 'expired', updated_at = NOW()
		WHERE status = $1 AND created_at < $3
	`
	result, err := r.db.Exec(ctx, query, domain.PaymentStatusPending, domain.PaymentStatusFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// ListVideos returns the full catalog, newest first.
func (r *PostgresRepository) ListVideos(ctx context.Context) ([]domain.Video, error) {
	query := `
		SELECT id, title, description, url, category, thumbnail_url, is_free, created_at
		FROM videos
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		var v domain.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.URL, &v.Category, &v.ThumbnailURL, &v.IsFree, &v.CreatedAt); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// CreateVideo inserts a new catalog entry and returns its id.
func (r *PostgresRepository) CreateVideo(ctx context.Context, video *domain.Video) (int64, error) {
	query := `
		INSERT INTO videos (title, description, url, category, thumbnail_url, is_free)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var videoID int64
	err := r.db.QueryRow(ctx, query,
		video.Title, video.Description, video.URL, video.Category, video.ThumbnailURL, video.IsFree,
	).Scan(&videoID)
	if err != nil {
		return 0, err
	}
	return videoID, nil
}

// UpdateVideo replaces a catalog entry's attributes.
func (r *PostgresRepository) UpdateVideo(ctx context.Context, videoID int64, video *domain.Video) error {
	query := `
		UPDATE videos
		SET title = $2, description = $3, url = $4, category = $5, thumbnail_url = $6, is_free = $7
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		videoID, video.Title, video.Description, video.URL, video.Category, video.ThumbnailURL, video.IsFree,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// DeleteVideo removes a catalog entry.
func (r *PostgresRepository) DeleteVideo(ctx context.Context, videoID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id = $1`, videoID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}
