package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"storefront-api/internal/config"
	"storefront-api/internal/database"
	"storefront-api/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// fakeGateway returns a verify endpoint serving a fixed payload and a
// counter of how often it was hit
func fakeGateway(t *testing.T, payload string) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func setupPipelineTest(t *testing.T, gatewayURL string) {
	t.Helper()
	config.AppConfig = &config.Config{
		GatewayBaseURL:        gatewayURL,
		GatewaySecretKey:      "test-secret",
		GatewayName:           "flutterwave",
		GatewayTimeoutSeconds: 2,
		DefaultCurrency:       "NGN",
		StoreBaseURL:          "https://store.test",
		ServiceName:           "Storefront API",
	}
	if err := database.InitTestDatabase(); err != nil {
		t.Fatalf("Failed to init test database: %v", err)
	}
}

func verifyInput(txRef, email string, total float64) VerifyPaymentInput {
	return VerifyPaymentInput{
		TransactionID: "12345",
		TxRef:         txRef,
		Customer: CustomerDetails{
			Email:      email,
			Name:       "Ada Obi",
			Phone:      "+2348012345678",
			Address:    "1 Market Street",
			City:       "Lagos",
			State:      "Lagos",
			PostalCode: "100001",
			Country:    "Nigeria",
		},
		Items: []LineItem{
			{ProductID: "p-1", Name: "Cordless Drill", Quantity: 2, Price: 1500},
			{ProductID: "p-2", Name: "Work Gloves", Quantity: 1, Price: 2000},
		},
		Totals: OrderTotals{Subtotal: total, Total: total},
	}
}

const successfulPayload = `{"status":"success","data":{"id":12345,"tx_ref":"A1","amount":5000,"currency":"NGN","status":"successful"}}`

func TestPipelineSuccessCreatesOrderAndTransaction(t *testing.T) {
	server, _ := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)

	result, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Replayed || result.PaymentFailed {
		t.Fatalf("Expected fresh success, got %+v", result)
	}
	if result.Order == nil || result.Transaction == nil {
		t.Fatal("Expected order and transaction in result")
	}
	if result.Order.Status != models.OrderPaid {
		t.Errorf("Expected paid order, got %q", result.Order.Status)
	}
	if result.Order.TotalPrice != 5000 {
		t.Errorf("Expected total 5000, got %v", result.Order.TotalPrice)
	}
	if result.Order.PaymentReference != "A1" {
		t.Errorf("Expected payment reference A1, got %q", result.Order.PaymentReference)
	}
	if result.Transaction.Status != models.TransactionSuccessful {
		t.Errorf("Expected successful transaction, got %q", result.Transaction.Status)
	}
	if result.Transaction.OrderID == nil || *result.Transaction.OrderID != result.Order.ID {
		t.Error("Expected transaction linked to order")
	}
	if len(result.Order.Items) != 2 {
		t.Fatalf("Expected 2 line items, got %d", len(result.Order.Items))
	}
	if result.Order.Items[0].LineTotal != 3000 {
		t.Errorf("Expected line total 3000, got %v", result.Order.Items[0].LineTotal)
	}

	user, err := database.FindUserByEmail("ada@example.com")
	if err != nil || user == nil {
		t.Fatalf("Expected provisioned user, got %v %v", user, err)
	}
	if result.Order.CustomerID != user.ID {
		t.Error("Expected order owned by provisioned user")
	}
}

func TestPipelineIdempotentReplay(t *testing.T) {
	server, calls := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)

	input := verifyInput("A1", "ada@example.com", 5000)
	pipeline := NewPaymentPipeline()

	first, err := pipeline.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := atomic.LoadInt64(calls)

	second, err := pipeline.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !second.Replayed {
		t.Error("Expected second run to be a replay")
	}
	if second.Order == nil || second.Order.ID != first.Order.ID {
		t.Error("Expected replay to return the original order")
	}
	if got := atomic.LoadInt64(calls); got != callsAfterFirst {
		t.Errorf("Expected no gateway call on replay, got %d extra", got-callsAfterFirst)
	}

	count, err := database.CountOrders()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one order, got %d", count)
	}

	var txnCount int64
	if err := database.GetDB().Model(&models.Transaction{}).Count(&txnCount).Error; err != nil {
		t.Fatalf("Transaction count failed: %v", err)
	}
	if txnCount != 1 {
		t.Errorf("Expected exactly one transaction, got %d", txnCount)
	}
}

func TestPipelineAmountMismatch(t *testing.T) {
	server, _ := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)

	_, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 4000))

	var mismatch *AmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected AmountMismatchError, got %v", err)
	}
	if mismatch.GatewayAmount != 5000 {
		t.Errorf("Expected gateway amount 5000, got %v", mismatch.GatewayAmount)
	}

	count, _ := database.CountOrders()
	if count != 0 {
		t.Errorf("Expected no order on amount mismatch, got %d", count)
	}
}

func TestPipelineAmountWithinTolerance(t *testing.T) {
	server, _ := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)

	result, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000.005))
	if err != nil {
		t.Fatalf("Expected total within tolerance to pass, got %v", err)
	}
	if result.Order == nil {
		t.Fatal("Expected order to be created")
	}
}

func TestPipelineReferenceMismatch(t *testing.T) {
	server, _ := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)

	_, err := NewPaymentPipeline().Run(context.Background(), verifyInput("B2", "ada@example.com", 5000))

	var mismatch *ReferenceMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected ReferenceMismatchError, got %v", err)
	}
	if mismatch.GatewayTxRef != "A1" {
		t.Errorf("Expected gateway tx_ref A1, got %q", mismatch.GatewayTxRef)
	}

	count, _ := database.CountOrders()
	if count != 0 {
		t.Errorf("Expected no order on reference mismatch, got %d", count)
	}
}

func TestPipelineFailedVerdict(t *testing.T) {
	server, _ := fakeGateway(t, `{"status":"success","data":{"id":12345,"tx_ref":"A1","amount":5000,"currency":"NGN","status":"failed"}}`)
	setupPipelineTest(t, server.URL)

	result, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.PaymentFailed {
		t.Fatal("Expected PaymentFailed result")
	}
	if result.Transaction.Status != models.TransactionFailed {
		t.Errorf("Expected failed transaction, got %q", result.Transaction.Status)
	}

	count, _ := database.CountOrders()
	if count != 0 {
		t.Errorf("Expected no order for failed payment, got %d", count)
	}
	users := int64(0)
	database.GetDB().Model(&models.User{}).Count(&users)
	if users != 0 {
		t.Errorf("Expected no account provisioning for failed payment, got %d", users)
	}
}

func TestPipelinePromotesPendingOrder(t *testing.T) {
	server, _ := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)

	// Simulate checkout initiation: pending order and ledger entry exist
	hashed, _ := bcrypt.GenerateFromPassword([]byte("seed"), bcrypt.MinCost)
	customer := &models.User{Email: "ada@example.com", Name: "Ada Obi", Password: string(hashed)}
	if err := database.CreateUser(customer); err != nil {
		t.Fatalf("Seed user failed: %v", err)
	}
	pendingOrder := &models.Order{
		TxRef:      "A1",
		Status:     models.OrderPending,
		CustomerID: customer.ID,
		TotalPrice: 5000,
		Items:      []models.OrderItem{{ProductID: "p-1", Name: "Cordless Drill", Quantity: 2, UnitPrice: 1500, LineTotal: 3000}},
	}
	pendingTxn := &models.Transaction{TxRef: "A1", Status: models.TransactionPending, Amount: 5000, UserID: &customer.ID}
	if err := database.CreateOrderForTransaction(pendingOrder, pendingTxn); err != nil {
		t.Fatalf("Seed pending order failed: %v", err)
	}

	result, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Replayed {
		t.Error("Promoting a pending order is not a replay")
	}
	if result.Order.ID != pendingOrder.ID {
		t.Errorf("Expected the pending order to be reused, got order %d", result.Order.ID)
	}
	if result.Order.Status != models.OrderPaid {
		t.Errorf("Expected order promoted to paid, got %q", result.Order.Status)
	}

	count, _ := database.CountOrders()
	if count != 1 {
		t.Errorf("Expected one order, got %d", count)
	}
}

func TestPipelineGatewayUnreachableFailsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	setupPipelineTest(t, server.URL)

	_, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000))

	var unreachable *GatewayUnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Expected GatewayUnreachableError, got %v", err)
	}

	count, _ := database.CountOrders()
	if count != 0 {
		t.Errorf("Expected no order when gateway unreachable, got %d", count)
	}
	var txnCount int64
	database.GetDB().Model(&models.Transaction{}).Count(&txnCount)
	if txnCount != 0 {
		t.Errorf("Expected no transaction when gateway unreachable, got %d", txnCount)
	}
}

func TestPipelineVerifiedMarkerFastPath(t *testing.T) {
	server, calls := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)
	guard := setupRedisGuard(t)

	input := verifyInput("A1", "ada@example.com", 5000)
	pipeline := NewPaymentPipeline()

	first, err := pipeline.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if !guard.IsVerified(context.Background(), "A1") {
		t.Error("Expected verified marker after a successful run")
	}

	second, err := pipeline.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if !second.Replayed {
		t.Error("Expected replay on marker hit")
	}
	if second.Order == nil || second.Order.ID != first.Order.ID {
		t.Error("Expected the marker fast path to return the original order")
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("Expected one gateway call in total, got %d", got)
	}
}

func TestPipelineMarkerWithoutLedgerFallsThrough(t *testing.T) {
	server, calls := fakeGateway(t, successfulPayload)
	setupPipelineTest(t, server.URL)
	guard := setupRedisGuard(t)

	// A stale marker with no ledger entry must not fabricate a replay
	guard.MarkVerified(context.Background(), "A1")

	result, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Replayed {
		t.Error("Expected full verification, not a replay")
	}
	if result.Order == nil || result.Order.Status != models.OrderPaid {
		t.Fatalf("Expected a fresh paid order, got %+v", result.Order)
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("Expected the gateway to be consulted, got %d calls", got)
	}
}

func TestPipelineConcurrentFirstVerification(t *testing.T) {
	// Two first-time verifications of the same tx_ref race past the ledger
	// read together. The gateway call sits inside that window, so seeding
	// the winner's rows from the gateway handler reproduces exactly what
	// the loser sees: an empty ledger at read time, committed rows at
	// write time.
	var seeded atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seeded.CompareAndSwap(false, true) {
			winner := &models.User{Email: "ada@example.com", Name: "Ada Obi", Password: "hash"}
			if err := database.CreateUser(winner); err != nil {
				t.Errorf("Seed winner user failed: %v", err)
			}
			order := &models.Order{
				TxRef:                "A1",
				Status:               models.OrderPaid,
				CustomerID:           winner.ID,
				TotalPrice:           5000,
				PaymentReference:     "A1",
				PaymentTransactionID: "12345",
			}
			txn := &models.Transaction{
				TxRef:                "A1",
				Status:               models.TransactionSuccessful,
				Amount:               5000,
				Currency:             "NGN",
				GatewayTransactionID: "12345",
				UserID:               &winner.ID,
			}
			if err := database.CreateOrderForTransaction(order, txn); err != nil {
				t.Errorf("Seed winner order failed: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successfulPayload))
	}))
	t.Cleanup(server.Close)
	setupPipelineTest(t, server.URL)

	result, err := NewPaymentPipeline().Run(context.Background(), verifyInput("A1", "ada@example.com", 5000))
	if err != nil {
		t.Fatalf("Expected the race loser to replay, got %v", err)
	}
	if !result.Replayed {
		t.Error("Expected replayed result for the race loser")
	}
	if result.Order == nil || result.Order.TxRef != "A1" {
		t.Fatalf("Expected the winner's order, got %+v", result.Order)
	}

	orders, _ := database.CountOrders()
	if orders != 1 {
		t.Errorf("Expected exactly one order, got %d", orders)
	}
	var txns, users int64
	database.GetDB().Model(&models.Transaction{}).Count(&txns)
	database.GetDB().Model(&models.User{}).Count(&users)
	if txns != 1 {
		t.Errorf("Expected exactly one transaction, got %d", txns)
	}
	if users != 1 {
		t.Errorf("Expected exactly one account, got %d", users)
	}
}
