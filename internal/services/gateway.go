package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront-api/internal/config"
	"storefront-api/internal/metrics"
)

// GatewayVerdict is the normalized result of a verify-by-id call.
type GatewayVerdict struct {
	// Confirmed is true only when the gateway reports the charge as successful
	Confirmed bool
	Status    string
	Amount    float64
	Currency  string
	TxRef     string
	// TransactionID is the gateway-assigned id, authoritative once known
	TransactionID string
	// Raw is the gateway's data payload, kept verbatim for the audit trail
	Raw json.RawMessage
}

// GatewayUnreachableError reports a network failure or a non-2xx HTTP
// response from the gateway. The pipeline fails closed on it: nothing is
// persisted and the client is expected to resubmit the same tx_ref.
type GatewayUnreachableError struct {
	Err        error
	HTTPStatus int
	Body       string
}

func (e *GatewayUnreachableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway unreachable: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway returned HTTP %d", e.HTTPStatus)
}

func (e *GatewayUnreachableError) Unwrap() error { return e.Err }

// GatewayRejectedError reports a parseable gateway response whose envelope
// does not acknowledge the transaction.
type GatewayRejectedError struct {
	EnvelopeStatus string
	Message        string
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("gateway rejected verification: status=%q message=%q", e.EnvelopeStatus, e.Message)
}

// GatewayClient verifies transactions against the payment gateway
type GatewayClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewGatewayClient creates a gateway client from the app configuration
func NewGatewayClient() *GatewayClient {
	return &GatewayClient{
		baseURL:   config.AppConfig.GatewayBaseURL,
		secretKey: config.AppConfig.GatewaySecretKey,
		httpClient: &http.Client{
			Timeout: time.Duration(config.AppConfig.GatewayTimeoutSeconds) * time.Second,
		},
	}
}

// verifyEnvelope is the gateway's response wrapper
type verifyEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// verifyData is the subset of the gateway payload the pipeline cares about
type verifyData struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

// VerifyTransaction calls GET /v3/transactions/{id}/verify and normalizes
// the response. The call is read-only on the gateway side.
func (c *GatewayClient) VerifyTransaction(ctx context.Context, transactionID string) (*GatewayVerdict, error) {
	verifyURL := fmt.Sprintf("%s/v3/transactions/%s/verify", c.baseURL, url.PathEscape(transactionID))
	return c.verify(ctx, verifyURL)
}

// VerifyTransactionByRef verifies by transaction reference instead of the
// gateway id. Used by the webhook path, where the event sometimes carries
// only a tx_ref.
func (c *GatewayClient) VerifyTransactionByRef(ctx context.Context, txRef string) (*GatewayVerdict, error) {
	verifyURL := fmt.Sprintf("%s/v3/transactions/verify_by_reference?tx_ref=%s", c.baseURL, url.QueryEscape(txRef))
	return c.verify(ctx, verifyURL)
}

func (c *GatewayClient) verify(ctx context.Context, verifyURL string) (*GatewayVerdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("unreachable").Inc()
		return nil, &GatewayUnreachableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("unreachable").Inc()
		return nil, &GatewayUnreachableError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.GatewayRequests.WithLabelValues("unreachable").Inc()
		return nil, &GatewayUnreachableError{HTTPStatus: resp.StatusCode, Body: string(body)}
	}

	var envelope verifyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		metrics.GatewayRequests.WithLabelValues("unreachable").Inc()
		return nil, &GatewayUnreachableError{Err: fmt.Errorf("unparseable gateway response: %w", err)}
	}

	if envelope.Status != "success" || len(envelope.Data) == 0 {
		metrics.GatewayRequests.WithLabelValues("rejected").Inc()
		return nil, &GatewayRejectedError{EnvelopeStatus: envelope.Status, Message: envelope.Message}
	}
	metrics.GatewayRequests.WithLabelValues("ok").Inc()

	var data verifyData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &GatewayUnreachableError{Err: fmt.Errorf("unparseable gateway data: %w", err)}
	}

	return &GatewayVerdict{
		Confirmed:     data.Status == "successful",
		Status:        data.Status,
		Amount:        data.Amount,
		Currency:      data.Currency,
		TxRef:         data.TxRef,
		TransactionID: fmt.Sprintf("%d", data.ID),
		Raw:           envelope.Data,
	}, nil
}
