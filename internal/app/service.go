/**
 * @description
 * This file contains the payment initiation service. It drives the two
 * Daraja calls (token, STK push) and writes the initial pending ledger row.
 * The ledger row is only created after the gateway has accepted the push, so
 * a gateway failure never leaves an orphaned pending attempt behind.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and persistence contract.
 * - pkg/daraja: The M-Pesa gateway client.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
	"github.com/benardngware/somanamimi2/pkg/daraja"
)

var (
	// ErrInvalidPhoneNumber rejects destinations Daraja would bounce anyway.
	ErrInvalidPhoneNumber = errors.New("phone number must be in the format 2547XXXXXXXX")

	// ErrStkPushRateLimited is returned when a user exceeds the initiation
	// rate limit.
	ErrStkPushRateLimited = errors.New("too many payment attempts, please wait and try again")
)

// Accepts 254-prefixed Safaricom numbers (e.g. 254712345678).
var phonePattern = regexp.MustCompile(`^254[17]\d{8}$`)

// Gateway is the subset of the Daraja client the service depends on.
type Gateway interface {
	Authenticate(ctx context.Context) (string, error)
	InitiateSTKPush(ctx context.Context, token, phone string, amount int64, accountReference string) (*daraja.STKPushResponse, error)
}

// RateLimiter throttles initiation attempts per user. A nil limiter disables
// throttling.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service owns payment initiation.
type Service struct {
	repo         store.Repository
	gateway      Gateway
	limiter      RateLimiter
	unlockAmount int64
	rateLimit    int
}

// NewService creates the payment initiation service. unlockAmount is the
// configured premium price in whole shillings; it is deliberately not a
// parameter of InitiatePayment so client input can never set the charge.
func NewService(repo store.Repository, gateway Gateway, unlockAmount int64) *Service {
	return &Service{
		repo:         repo,
		gateway:      gateway,
		unlockAmount: unlockAmount,
	}
}

// SetRateLimiter enables per-user initiation throttling.
func (s *Service) SetRateLimiter(limiter RateLimiter, perMinute int) {
	s.limiter = limiter
	s.rateLimit = perMinute
}

// NormalizePhone converts common local formats (07XX..., +2547XX...) to the
// 254-prefixed form Daraja expects.
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") && len(p) == 10 {
		p = "254" + p[1:]
	}
	if !phonePattern.MatchString(p) {
		return "", ErrInvalidPhoneNumber
	}
	return p, nil
}

// InitiatePayment authenticates against Daraja, submits the STK push, and
// records the attempt as pending. The returned payment carries the merchant
// request id the client polls on; completion happens later, when the
// provider's callback is reconciled.
func (s *Service) InitiatePayment(ctx context.Context, userID int64, phone string) (*domain.Payment, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil && s.rateLimit > 0 {
		count, retryAfter, limitErr := s.limiter.ConsumeRateLimit(ctx, "stk_push", fmt.Sprintf("%d", userID), s.rateLimit, time.Minute)
		if limitErr != nil {
			// Fail open: a limiter outage must not block payments.
			log.Printf("level=warn component=service flow=stk_push msg=\"rate limiter unavailable; allowing request\" user_id=%d err=%v", userID, limitErr)
		} else if count > s.rateLimit {
			log.Printf("level=info component=service flow=stk_push outcome=rate_limited user_id=%d count=%d retry_after=%d", userID, count, retryAfter)
			return nil, ErrStkPushRateLimited
		}
	}

	token, err := s.gateway.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("daraja authentication failed: %w", err)
	}

	// The account reference ties the eventual callback back to the user.
	accountReference := fmt.Sprintf("USER%d", userID)
	pushResp, err := s.gateway.InitiateSTKPush(ctx, token, normalized, s.unlockAmount, accountReference)
	if err != nil {
		return nil, fmt.Errorf("stk push initiation failed: %w", err)
	}

	payment := &domain.Payment{
		ID:                uuid.New(),
		UserID:            userID,
		PhoneNumber:       normalized,
		Amount:            s.unlockAmount,
		MerchantRequestID: pushResp.MerchantRequestID,
		CheckoutRequestID: pushResp.CheckoutRequestID,
		Status:            domain.PaymentStatusPending,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		// The push already went out; the sweep will expire the attempt if
		// the callback can never match a row. Surface the failure so the
		// user is not told to expect a prompt that cannot be reconciled.
		return nil, fmt.Errorf("failed to record payment attempt %s: %w", pushResp.MerchantRequestID, err)
	}

	log.Printf("level=info component=service flow=stk_push outcome=initiated user_id=%d merchant_request_id=%s amount=%d", userID, payment.MerchantRequestID, payment.Amount)
	return payment, nil
}

// PaymentStatus looks up a payment attempt for the owning user.
func (s *Service) PaymentStatus(ctx context.Context, userID int64, merchantRequestID string) (*domain.Payment, error) {
	payment, err := s.repo.FindPaymentByMerchantRequestID(ctx, merchantRequestID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		// Do not reveal other users' attempts.
		return nil, store.ErrPaymentNotFound
	}
	return payment, nil
}
