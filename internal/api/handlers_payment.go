/**
 * @description
 * HTTP handlers for the payment endpoints: STK push initiation, the
 * provider-originated result callback, and the status lookup the client
 * polls while waiting for the callback to land.
 */

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/benardngware/somanamimi2/internal/app"
	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
	"github.com/benardngware/somanamimi2/pkg/daraja"
)

// STKPushHandler handles POST /payments/stk-push. It acknowledges as soon as
// the push has been accepted by the gateway; completion arrives later via
// the callback.
func (h *Handlers) STKPushHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	var req domain.STKPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.InitiatePayment(r.Context(), user.ID, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPhoneNumber):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrStkPushRateLimited):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, daraja.ErrMissingCredentials):
			log.Printf("level=error component=api endpoint=stk_push msg=\"gateway credentials missing or rejected\" user_id=%d err=%v", user.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Payment gateway is not configured")
		default:
			log.Printf("level=warn component=api endpoint=stk_push outcome=failed user_id=%d err=%v", user.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to initiate STK push")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, domain.STKPushResponse{
		Message:           "STK Push initiated successfully. Please check your phone.",
		MerchantRequestID: payment.MerchantRequestID,
		CheckoutRequestID: payment.CheckoutRequestID,
	})
}

// PaymentStatusHandler handles GET /payments/{merchantRequestID}. The client
// polls this instead of assuming success after a fixed delay.
func (h *Handlers) PaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	merchantRequestID := chi.URLParam(r, "merchantRequestID")
	payment, err := h.service.PaymentStatus(r.Context(), user.ID, merchantRequestID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment not found")
			return
		}
		log.Printf("level=error component=api endpoint=payment_status msg=\"status lookup failed\" user_id=%d merchant_request_id=%s err=%v", user.ID, merchantRequestID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to look up payment")
		return
	}

	h.writeJSON(w, http.StatusOK, domain.PaymentStatusResponse{
		MerchantRequestID: payment.MerchantRequestID,
		Status:            payment.Status,
		Amount:            payment.Amount,
		FailureReason:     payment.FailureReason,
	})
}

// CallbackHandler handles POST /payments/callback, the unauthenticated
// provider-originated result delivery. The provider is always answered 200
// unless the payload itself is unparsable: its retry behavior is outside our
// control, and the pending-gated transitions make duplicate deliveries
// harmless anyway.
func (h *Handlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Cannot read request body")
		return
	}

	var envelope domain.STKCallbackEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		log.Printf("level=error component=api endpoint=payment_callback msg=\"unparsable callback payload; manual recovery required\" raw=%q err=%v", string(body), err)
		h.writeError(w, http.StatusBadRequest, "Invalid callback payload")
		return
	}

	if err := h.grant.Reconcile(r.Context(), envelope); err != nil {
		if errors.Is(err, app.ErrMalformedCallback) {
			// Distinct from the unknown-id case so operators can tell a
			// provider contract change from a stray delivery.
			log.Printf("level=error component=api endpoint=payment_callback msg=\"malformed callback; manual recovery required\" raw=%q", string(body))
			h.writeError(w, http.StatusBadRequest, "Malformed callback payload")
			return
		}
		// Internal failure: log it, but never hand the provider an error it
		// would retry against business logic. Reconciliation is idempotent,
		// so a manual replay later is safe.
		log.Printf("level=error component=api endpoint=payment_callback msg=\"reconcile failed; acknowledged to provider\" raw=%q err=%v", string(body), err)
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Callback processed"})
}
