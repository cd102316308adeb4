package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-api/internal/config"
)

func setupGatewayConfig(baseURL string) {
	config.AppConfig = &config.Config{
		GatewayBaseURL:        baseURL,
		GatewaySecretKey:      "test-secret",
		GatewayName:           "flutterwave",
		GatewayTimeoutSeconds: 2,
		DefaultCurrency:       "NGN",
	}
}

func TestVerifyTransactionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/transactions/12345/verify" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-secret" {
			t.Errorf("Expected bearer credential, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"id":12345,"tx_ref":"A1","amount":5000,"currency":"NGN","status":"successful"}}`))
	}))
	defer server.Close()

	setupGatewayConfig(server.URL)
	client := NewGatewayClient()

	verdict, err := client.VerifyTransaction(context.Background(), "12345")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !verdict.Confirmed {
		t.Error("Expected confirmed verdict")
	}
	if verdict.Amount != 5000 {
		t.Errorf("Expected amount 5000, got %v", verdict.Amount)
	}
	if verdict.TxRef != "A1" {
		t.Errorf("Expected tx_ref A1, got %q", verdict.TxRef)
	}
	if verdict.TransactionID != "12345" {
		t.Errorf("Expected transaction id 12345, got %q", verdict.TransactionID)
	}
	if len(verdict.Raw) == 0 {
		t.Error("Expected raw payload to be preserved")
	}
}

func TestVerifyTransactionNotSuccessful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"id":12345,"tx_ref":"A1","amount":5000,"currency":"NGN","status":"failed"}}`))
	}))
	defer server.Close()

	setupGatewayConfig(server.URL)
	client := NewGatewayClient()

	verdict, err := client.VerifyTransaction(context.Background(), "12345")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if verdict.Confirmed {
		t.Error("Expected unconfirmed verdict for failed charge")
	}
	if verdict.Status != "failed" {
		t.Errorf("Expected status failed, got %q", verdict.Status)
	}
}

func TestVerifyTransactionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	setupGatewayConfig(server.URL)
	client := NewGatewayClient()

	_, err := client.VerifyTransaction(context.Background(), "12345")
	var unreachable *GatewayUnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Expected GatewayUnreachableError, got %v", err)
	}
	if unreachable.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("Expected HTTP 500 recorded, got %d", unreachable.HTTPStatus)
	}
}

func TestVerifyTransactionNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	setupGatewayConfig(server.URL)
	client := NewGatewayClient()

	_, err := client.VerifyTransaction(context.Background(), "12345")
	var unreachable *GatewayUnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Expected GatewayUnreachableError, got %v", err)
	}
}

func TestVerifyTransactionRejectedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"error","message":"No transaction was found for this id"}`))
	}))
	defer server.Close()

	setupGatewayConfig(server.URL)
	client := NewGatewayClient()

	_, err := client.VerifyTransaction(context.Background(), "missing")
	var rejected *GatewayRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected GatewayRejectedError, got %v", err)
	}
}

func TestVerifyTransactionByRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/transactions/verify_by_reference" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tx_ref"); got != "A1" {
			t.Errorf("Expected tx_ref A1, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"id":77,"tx_ref":"A1","amount":100,"currency":"NGN","status":"successful"}}`))
	}))
	defer server.Close()

	setupGatewayConfig(server.URL)
	client := NewGatewayClient()

	verdict, err := client.VerifyTransactionByRef(context.Background(), "A1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !verdict.Confirmed {
		t.Error("Expected confirmed verdict")
	}
}
