package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	c := NewClient(Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/payments/callback",
	})
	c.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return c
}

func TestAuthenticate_SendsBasicAuthAndReturnsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("expected basic auth with consumer credentials, got %q/%q", user, pass)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "token-123",
			"expires_in":   "3599",
		})
	}))
	defer server.Close()

	token, err := testClient(server.URL).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("expected token, got %v", err)
	}
	if token != "token-123" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"})
	if _, err := c.Authenticate(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestAuthenticate_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Authenticate(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected rejected credentials to map to ErrMissingCredentials, got %v", err)
	}
}

func TestInitiateSTKPush_BuildsDeterministicPassword(t *testing.T) {
	var received STKPushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mpesa/stkpush/v1/processrequest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-123" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(STKPushResponse{
			MerchantRequestID: "mr_123",
			CheckoutRequestID: "ws_CO_123",
			ResponseCode:      "0",
		})
	}))
	defer server.Close()

	resp, err := testClient(server.URL).InitiateSTKPush(context.Background(), "token-123", "254712345678", 200, "USER7")
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if resp.MerchantRequestID != "mr_123" || resp.CheckoutRequestID != "ws_CO_123" {
		t.Fatalf("unexpected response %+v", resp)
	}

	wantTimestamp := "20240315103000"
	if received.Timestamp != wantTimestamp {
		t.Fatalf("expected timestamp %q, got %q", wantTimestamp, received.Timestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + wantTimestamp))
	if received.Password != wantPassword {
		t.Fatalf("expected password %q, got %q", wantPassword, received.Password)
	}
	if received.TransactionType != "CustomerPayBillOnline" {
		t.Fatalf("unexpected transaction type %q", received.TransactionType)
	}
	if received.Amount != 200 || received.PhoneNumber != "254712345678" || received.PartyA != "254712345678" {
		t.Fatalf("payer fields mangled: %+v", received)
	}
	if received.PartyB != "174379" || received.BusinessShortCode != "174379" {
		t.Fatalf("shortcode fields mangled: %+v", received)
	}
	if received.AccountReference != "USER7" {
		t.Fatalf("unexpected account reference %q", received.AccountReference)
	}
	if received.CallBackURL != "https://example.com/payments/callback" {
		t.Fatalf("unexpected callback url %q", received.CallBackURL)
	}
}

func TestInitiateSTKPush_DecodesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{
			RequestID:    "req-1",
			ErrorCode:    "400.002.02",
			ErrorMessage: "Bad Request - Invalid PhoneNumber",
		})
	}))
	defer server.Close()

	_, err := testClient(server.URL).InitiateSTKPush(context.Background(), "token-123", "bad", 200, "USER7")
	if err == nil {
		t.Fatal("expected an error for a rejected push")
	}
	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ErrorResponse, got %T: %v", err, err)
	}
	if apiErr.ErrorCode != "400.002.02" {
		t.Fatalf("unexpected error code %q", apiErr.ErrorCode)
	}
}

func TestInitiateSTKPush_MissingMerchantRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"CustomerMessage": "ok"})
	}))
	defer server.Close()

	if _, err := testClient(server.URL).InitiateSTKPush(context.Background(), "token-123", "254712345678", 200, "USER7"); err == nil {
		t.Fatal("expected an error when the acknowledgement has no correlation id")
	}
}
