/**
 * @description
 * This file defines the payment ledger domain model and the DTOs for the
 * payment endpoints, including the Daraja STK callback envelope.
 *
 * @notes
 * - Each row in `payments` records one STK push attempt, keyed by the
 *   provider-issued merchant request id. Status only ever moves
 *   pending -> completed or pending -> failed, and at most once.
 * - Amounts are whole shillings as `int64`; Daraja takes integer amounts.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment represents a single STK push attempt and its eventual outcome.
// Maps to the `payments` table.
type Payment struct {
	ID                uuid.UUID `json:"id"`
	UserID            int64     `json:"user_id"`
	PhoneNumber       string    `json:"phone_number"`
	Amount            int64     `json:"amount"`
	MerchantRequestID string    `json:"merchant_request_id"`
	CheckoutRequestID string    `json:"checkout_request_id"`
	Status            string    `json:"status"`
	FailureReason     *string   `json:"failure_reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsTerminal reports whether the payment has reached a final status.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

// STKPushRequest is the DTO for POST /payments/stk-push. The amount charged is
// the configured unlock price; a client-supplied amount is ignored so an
// attacker cannot underpay for the subscription.
type STKPushRequest struct {
	Phone  string `json:"phone"`
	Amount int64  `json:"amount,omitempty"`
}

// STKPushResponse acknowledges an accepted initiation. The merchant request id
// lets the client poll GET /payments/{merchantRequestID} for the outcome.
type STKPushResponse struct {
	Message           string `json:"message"`
	MerchantRequestID string `json:"merchant_request_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
}

// PaymentStatusResponse is returned by the status-lookup endpoint.
type PaymentStatusResponse struct {
	MerchantRequestID string  `json:"merchant_request_id"`
	Status            string  `json:"status"`
	Amount            int64   `json:"amount"`
	FailureReason     *string `json:"failure_reason,omitempty"`
}

// STKCallbackEnvelope is the bit-exact shape Daraja posts to the callback URL.
type STKCallbackEnvelope struct {
	Body struct {
		StkCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the inner callback record. ResultCode 0 means the payer
// completed the prompt; any nonzero code is a distinct failure reason
// (e.g. 1032 = cancelled by user). The pointer distinguishes an absent code
// from a literal 0: a payload without a ResultCode is malformed, not a
// success.
type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        *int   `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}

// SubscriptionActivatedEvent is published to RabbitMQ after a successful
// grant so downstream consumers (e.g. a push-notification worker) can tell
// the client immediately instead of waiting for a poll.
type SubscriptionActivatedEvent struct {
	UserID            int64     `json:"user_id"`
	MerchantRequestID string    `json:"merchant_request_id"`
	Amount            int64     `json:"amount"`
	Timestamp         time.Time `json:"timestamp"`
}
