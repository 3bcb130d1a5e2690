/**
 * @description
 * This file contains the subscription grant service, the state machine that
 * reconciles asynchronous Daraja callbacks against pending ledger entries.
 *
 * The callback is delivered by an external, sometimes-duplicating, untrusted
 * network actor, so every mutation is gated on "is this entry still pending"
 * inside the store. That makes the whole reconciliation idempotent per
 * merchant request id without a separate dedup table.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
	"github.com/benardngware/somanamimi2/pkg/rabbitmq"
)

// ErrMalformedCallback indicates the callback payload could not be parsed.
// This is the only condition under which the provider sees a non-200 reply;
// business-logic outcomes are always acknowledged.
var ErrMalformedCallback = errors.New("malformed stk callback payload")

// Daraja result code for a completed payment. Any nonzero code is a
// provider-defined failure reason.
const resultCodeSuccess = 0

// GrantService reconciles provider callbacks and grants subscriptions.
type GrantService struct {
	repo     store.Repository
	producer rabbitmq.Publisher
	exchange string
}

// NewGrantService creates a grant service. producer may be a fallback
// publisher; event publishing is best effort and never blocks the
// acknowledgement to the provider.
func NewGrantService(repo store.Repository, producer rabbitmq.Publisher, exchange string) *GrantService {
	return &GrantService{repo: repo, producer: producer, exchange: exchange}
}

// Reconcile applies one callback delivery to the ledger.
//
// Outcomes:
//   - malformed payload: ErrMalformedCallback (the caller replies non-200 and
//     logs the raw body for manual recovery)
//   - unknown merchant request id: acknowledged and discarded
//   - already terminal: acknowledged idempotently, no mutation
//   - pending + ResultCode 0: payment completed and subscription granted in
//     one transaction
//   - pending + nonzero code: payment failed, subscription untouched
//
// Persistence errors are returned so the caller can log them, but they must
// still be acknowledged to the provider: a retry storm for a business-logic
// failure helps nobody, and the pending gate makes a later manual replay safe.
func (g *GrantService) Reconcile(ctx context.Context, envelope domain.STKCallbackEnvelope) error {
	cb := envelope.Body.StkCallback
	// An absent ResultCode is malformed, never an implicit success.
	if cb == nil || cb.MerchantRequestID == "" || cb.ResultCode == nil {
		return ErrMalformedCallback
	}
	resultCode := *cb.ResultCode

	payment, err := g.repo.FindPaymentByMerchantRequestID(ctx, cb.MerchantRequestID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			// A row that will never exist; do not hand the provider an error
			// it would retry forever.
			log.Printf("level=warn component=grant msg=\"callback for unknown payment; discarding\" merchant_request_id=%s result_code=%d", cb.MerchantRequestID, resultCode)
			return nil
		}
		return fmt.Errorf("lookup payment %s: %w", cb.MerchantRequestID, err)
	}

	if payment.IsTerminal() {
		log.Printf("level=info component=grant msg=\"duplicate callback for terminal payment; ignoring\" merchant_request_id=%s status=%s", cb.MerchantRequestID, payment.Status)
		return nil
	}

	if resultCode == resultCodeSuccess {
		return g.complete(ctx, payment, cb)
	}
	return g.fail(ctx, payment, cb, resultCode)
}

func (g *GrantService) complete(ctx context.Context, payment *domain.Payment, cb *domain.STKCallback) error {
	applied, err := g.repo.CompletePaymentAndGrantSubscription(ctx, cb.MerchantRequestID)
	if err != nil {
		return fmt.Errorf("complete payment %s: %w", cb.MerchantRequestID, err)
	}
	if !applied {
		// Lost the race to a concurrent duplicate delivery.
		log.Printf("level=info component=grant msg=\"payment already transitioned; no-op\" merchant_request_id=%s", cb.MerchantRequestID)
		return nil
	}

	log.Printf("level=info component=grant msg=\"subscription activated\" user_id=%d merchant_request_id=%s", payment.UserID, cb.MerchantRequestID)

	if g.producer != nil {
		event := domain.SubscriptionActivatedEvent{
			UserID:            payment.UserID,
			MerchantRequestID: payment.MerchantRequestID,
			Amount:            payment.Amount,
			Timestamp:         time.Now().UTC(),
		}
		if pubErr := g.producer.Publish(ctx, g.exchange, "subscription.activated", event); pubErr != nil {
			// The grant is already durable; the client still finds out via polling.
			log.Printf("level=warn component=grant msg=\"subscription event publish failed\" user_id=%d merchant_request_id=%s err=%v", payment.UserID, payment.MerchantRequestID, pubErr)
		}
	}
	return nil
}

func (g *GrantService) fail(ctx context.Context, payment *domain.Payment, cb *domain.STKCallback, resultCode int) error {
	applied, err := g.repo.MarkPaymentFailed(ctx, cb.MerchantRequestID, cb.ResultDesc)
	if err != nil {
		return fmt.Errorf("mark payment %s failed: %w", cb.MerchantRequestID, err)
	}
	if !applied {
		log.Printf("level=info component=grant msg=\"payment already transitioned; no-op\" merchant_request_id=%s", cb.MerchantRequestID)
		return nil
	}
	log.Printf("level=info component=grant msg=\"payment failed\" user_id=%d merchant_request_id=%s result_code=%d reason=%q", payment.UserID, cb.MerchantRequestID, resultCode, cb.ResultDesc)
	return nil
}
