/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the service needs. The application and API layers depend on this
 * interface rather than on PostgreSQL directly, which keeps the reconcile
 * logic testable with in-memory stubs.
 */

package store

import (
	"context"
	"time"

	"github.com/benardngware/somanamimi2/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	CreateUser(ctx context.Context, user *domain.User) (int64, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, userID int64) (*domain.User, error)

	// Payment ledger methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindPaymentByMerchantRequestID(ctx context.Context, merchantRequestID string) (*domain.Payment, error)

	// CompletePaymentAndGrantSubscription transitions the ledger entry to
	// `completed` and sets the owning user's subscription flag, in one
	// database transaction. The transition is guarded by `status = 'pending'`
	// so duplicate callback deliveries are harmless: applied is false when
	// the entry was already terminal (or vanished) and nothing was written.
	CompletePaymentAndGrantSubscription(ctx context.Context, merchantRequestID string) (applied bool, err error)

	// MarkPaymentFailed transitions the ledger entry to `failed` with the
	// provider's result description, again guarded by `status = 'pending'`.
	MarkPaymentFailed(ctx context.Context, merchantRequestID, reason string) (applied bool, err error)

	// ExpireStalePendingPayments fails every pending entry created before
	// cutoff and returns how many rows were transitioned.
	ExpireStalePendingPayments(ctx context.Context, cutoff time.Time) (int64, error)

	// Video methods
	ListVideos(ctx context.Context) ([]domain.Video, error)
	CreateVideo(ctx context.Context, video *domain.Video) (int64, error)
	UpdateVideo(ctx context.Context, videoID int64, video *domain.Video) error
	DeleteVideo(ctx context.Context, videoID int64) error
}
