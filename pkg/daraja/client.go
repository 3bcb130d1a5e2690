/**
 * @description
 * This package provides a client for the Safaricom Daraja M-Pesa API. It
 * encapsulates the two calls the backend needs: exchanging consumer
 * credentials for a short-lived bearer token, and submitting an STK push
 * request that prompts the payer's phone for PIN entry.
 *
 * The client is stateless; the payment outcome arrives later through the
 * asynchronous callback the provider posts to CallbackURL.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrMissingCredentials indicates the consumer key or secret is not
// configured. Retrying with the same empty credentials cannot succeed, so
// callers must surface this to the operator instead of looping.
var ErrMissingCredentials = errors.New("daraja consumer key or secret is not configured")

// Config carries the provider-issued credentials and deployment URLs.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

// Client is a client for the Daraja API.
type Client struct {
	config     Config
	HTTPClient *http.Client

	// now is swappable in tests so the request password is deterministic.
	now func() time.Time
}

// NewClient creates a new Daraja API client.
func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// tokenResponse is the payload of the OAuth token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// STKPushRequest is the processrequest payload.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous acknowledgement from processrequest.
// The MerchantRequestID is the correlation id the eventual callback carries.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// ErrorResponse represents an error from the Daraja API.
type ErrorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *ErrorResponse) Error() string {
	if e.ErrorMessage != "" {
		return fmt.Sprintf("daraja api error: %s - %s", e.ErrorCode, e.ErrorMessage)
	}
	return "unknown daraja api error"
}

// Authenticate exchanges the consumer key/secret for a short-lived bearer
// token using basic auth against the OAuth endpoint.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if c.config.ConsumerKey == "" || c.config.ConsumerSecret == "" {
		return "", ErrMissingCredentials
	}

	url := c.config.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.config.ConsumerKey, c.config.ConsumerSecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=daraja_client op=authenticate status=%d msg=\"token request rejected\"", resp.StatusCode)
		return "", fmt.Errorf("daraja token request rejected (status %d): %w", resp.StatusCode, ErrMissingCredentials)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("daraja token response contained no access token")
	}

	return tokenResp.AccessToken, nil
}

// InitiateSTKPush asks Daraja to prompt the payer's phone for the given
// amount. accountReference ties the attempt back to the paying user so the
// callback can be traced.
func (c *Client) InitiateSTKPush(ctx context.Context, token, phone string, amount int64, accountReference string) (*STKPushResponse, error) {
	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.config.Shortcode + c.config.Passkey + timestamp),
	)

	payload := STKPushRequest{
		BusinessShortCode: c.config.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.config.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.config.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   "Unlock Somanamimi Videos",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create stk push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute stk push request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stk push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=daraja_client op=stk_push status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=daraja_client op=stk_push status=%d code=%q detail=%q", resp.StatusCode, errResp.ErrorCode, errResp.ErrorMessage)
		return nil, &errResp
	}

	var successResp STKPushResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response: %w", err)
	}
	if successResp.MerchantRequestID == "" {
		return nil, errors.New("stk push response missing merchant request id")
	}

	return &successResp, nil
}
