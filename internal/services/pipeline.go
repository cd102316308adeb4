package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"storefront-api/internal/config"
	"storefront-api/internal/database"
	"storefront-api/internal/events"
	"storefront-api/internal/metrics"
	"storefront-api/internal/models"
	"storefront-api/pkg/logging"
)

// amountTolerance is the maximum allowed difference between the
// client-declared total and the gateway-confirmed amount
const amountTolerance = 0.01

// LineItem is one cart line as submitted at checkout
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
	Image     string
}

// OrderTotals is the client-declared pricing breakdown
type OrderTotals struct {
	Subtotal       float64
	DiscountAmount float64
	ShippingCost   float64
	Total          float64
}

// VerifyPaymentInput is the validated payload of a verification request
type VerifyPaymentInput struct {
	TransactionID string
	TxRef         string
	Customer      CustomerDetails
	Items         []LineItem
	Coupon        string
	Totals        OrderTotals
}

// VerifyPaymentResult is the pipeline outcome handed back to the handler
type VerifyPaymentResult struct {
	// Replayed is true when a previous call already verified this tx_ref
	// and the existing order is returned
	Replayed bool
	// PaymentFailed is true when the gateway reports the charge as not
	// successful; the ledger records the failure and no order exists
	PaymentFailed bool

	Order       *models.Order
	Transaction *models.Transaction
	Verdict     *GatewayVerdict
}

// PaymentPipeline runs the verification and order-creation sequence:
// idempotency guard, gateway verification, cross-checks, account
// provisioning, ledger upsert, order materialization, notifications.
type PaymentPipeline struct {
	gateway     *GatewayClient
	guard       *RedisGuard
	provisioner *AccountProvisioner
	mailer      *Mailer
}

// NewPaymentPipeline creates a pipeline from the app configuration
func NewPaymentPipeline() *PaymentPipeline {
	return &PaymentPipeline{
		gateway:     NewGatewayClient(),
		guard:       NewRedisGuard(),
		provisioner: NewAccountProvisioner(),
		mailer:      NewMailer(),
	}
}

// Run executes the pipeline for one verification request
func (p *PaymentPipeline) Run(ctx context.Context, input VerifyPaymentInput) (*VerifyPaymentResult, error) {
	// Idempotency guard: a transaction that already reached successful
	// short-circuits the whole pipeline. The Redis marker is a fast-path
	// hint in front of the ledger; a marker without a confirming ledger
	// entry falls through to full verification.
	if input.TxRef != "" && p.guard.IsVerified(ctx, input.TxRef) {
		txn, err := database.FindTransactionByTxRef(input.TxRef)
		if err != nil {
			return nil, &PersistenceError{Step: "transaction lookup", Err: err}
		}
		if txn != nil && txn.Status == models.TransactionSuccessful {
			return p.replay(txn)
		}
	}

	existing, err := p.findExistingTransaction(input)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == models.TransactionSuccessful {
		return p.replay(existing)
	}

	verdict, err := p.verifyWithGateway(ctx, input)
	if err != nil {
		return nil, err
	}

	if !verdict.Confirmed {
		txn, err := p.recordVerdict(existing, input, verdict, models.TransactionFailed, nil)
		if err != nil {
			return nil, err
		}
		metrics.PaymentVerifications.WithLabelValues("failed").Inc()
		return &VerifyPaymentResult{PaymentFailed: true, Transaction: txn, Verdict: verdict}, nil
	}

	// Reference cross-check: a verified charge for some other reference
	// must not be attached to this checkout
	if input.TxRef != "" && verdict.TxRef != "" && input.TxRef != verdict.TxRef {
		logging.Warnf("tx_ref mismatch: client %q gateway %q", input.TxRef, verdict.TxRef)
		return nil, &ReferenceMismatchError{ClientTxRef: input.TxRef, GatewayTxRef: verdict.TxRef}
	}

	// Amount cross-check: the gateway-confirmed amount is authoritative
	if math.Abs(input.Totals.Total-verdict.Amount) > amountTolerance {
		logging.Errorf("Amount mismatch for %s: client total %.2f, gateway amount %.2f",
			txRefOf(input, verdict), input.Totals.Total, verdict.Amount)
		return nil, &AmountMismatchError{ExpectedTotal: input.Totals.Total, GatewayAmount: verdict.Amount}
	}

	user, err := p.provisioner.Provision(input.Customer)
	if err != nil {
		return nil, err
	}

	txn, err := p.recordVerdict(existing, input, verdict, models.TransactionSuccessful, &user.ID)
	if err != nil {
		return nil, err
	}

	order, replayed, err := p.materializeOrder(input, verdict, txn, user)
	if err != nil {
		return nil, err
	}

	p.guard.MarkVerified(ctx, txn.TxRef)

	if !replayed {
		metrics.PaymentVerifications.WithLabelValues("successful").Inc()
		metrics.OrdersCreated.WithLabelValues(order.Status).Inc()
		events.PublishOrderPaid(order, user.ID)
		p.mailer.SendAsync(func(m *Mailer) error {
			return m.SendOrderConfirmationEmail(user.Email, user.Name, order)
		})
	}

	return &VerifyPaymentResult{
		Replayed:    replayed,
		Order:       order,
		Transaction: txn,
		Verdict:     verdict,
	}, nil
}

// findExistingTransaction looks up the ledger by tx_ref first, then by the
// gateway transaction id
func (p *PaymentPipeline) findExistingTransaction(input VerifyPaymentInput) (*models.Transaction, error) {
	if input.TxRef != "" {
		txn, err := database.FindTransactionByTxRef(input.TxRef)
		if err != nil {
			return nil, &PersistenceError{Step: "transaction lookup", Err: err}
		}
		if txn != nil {
			return txn, nil
		}
	}
	if input.TransactionID != "" {
		txn, err := database.FindTransactionByGatewayID(input.TransactionID)
		if err != nil {
			return nil, &PersistenceError{Step: "transaction lookup", Err: err}
		}
		return txn, nil
	}
	return nil, nil
}

// replay returns the previously created order for an already-verified
// transaction without touching the gateway
func (p *PaymentPipeline) replay(txn *models.Transaction) (*VerifyPaymentResult, error) {
	var order *models.Order
	var err error

	if txn.OrderID != nil {
		order, err = database.FindOrderByID(*txn.OrderID)
		if err != nil {
			return nil, &PersistenceError{Step: "order lookup", Err: err}
		}
	}
	if order == nil {
		order, err = database.FindOrderByTxRef(txn.TxRef)
		if err != nil {
			return nil, &PersistenceError{Step: "order lookup", Err: err}
		}
	}

	metrics.PaymentVerifications.WithLabelValues("replayed").Inc()
	logging.Infof("Replayed verification for tx_ref %s", txn.TxRef)
	return &VerifyPaymentResult{Replayed: true, Order: order, Transaction: txn}, nil
}

func (p *PaymentPipeline) verifyWithGateway(ctx context.Context, input VerifyPaymentInput) (*GatewayVerdict, error) {
	if input.TransactionID != "" {
		return p.gateway.VerifyTransaction(ctx, input.TransactionID)
	}
	return p.gateway.VerifyTransactionByRef(ctx, input.TxRef)
}

// recordVerdict upserts the ledger entry for this reference, always keeping
// the raw gateway payload for audit
func (p *PaymentPipeline) recordVerdict(existing *models.Transaction, input VerifyPaymentInput, verdict *GatewayVerdict, status string, userID *uint) (*models.Transaction, error) {
	txn := existing
	if txn == nil {
		txn = &models.Transaction{
			TxRef:    txRefOf(input, verdict),
			Currency: currencyOf(verdict),
			Gateway:  config.AppConfig.GatewayName,
		}
	}

	txn.Status = status
	txn.Amount = verdict.Amount
	txn.Currency = currencyOf(verdict)
	txn.GatewayTransactionID = verdict.TransactionID
	txn.GatewayData = string(verdict.Raw)
	if userID != nil {
		txn.UserID = userID
	}

	var err error
	if txn.ID == 0 {
		err = database.CreateTransaction(txn)
		if errors.Is(err, database.ErrTransactionExists) {
			// A concurrent verification inserted the ledger row between our
			// read and this write; adopt it and re-apply the verdict
			adopted, lookupErr := database.FindTransactionByTxRef(txn.TxRef)
			if lookupErr != nil || adopted == nil {
				return nil, &PersistenceError{Step: "transaction upsert", Err: err}
			}
			adopted.Status = status
			adopted.Amount = verdict.Amount
			adopted.Currency = currencyOf(verdict)
			adopted.GatewayTransactionID = verdict.TransactionID
			adopted.GatewayData = string(verdict.Raw)
			if userID != nil {
				adopted.UserID = userID
			}
			txn = adopted
			err = database.SaveTransaction(txn)
		}
	} else {
		err = database.SaveTransaction(txn)
	}
	if err != nil {
		return nil, &PersistenceError{Step: "transaction upsert", Err: err}
	}
	return txn, nil
}

// materializeOrder builds and persists the order document. A duplicate
// tx_ref means a concurrent request won the race; its order is returned as
// the replay result.
func (p *PaymentPipeline) materializeOrder(input VerifyPaymentInput, verdict *GatewayVerdict, txn *models.Transaction, user *models.User) (*models.Order, bool, error) {
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, it := range input.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  qty,
			UnitPrice: it.Price,
			LineTotal: RoundMoney(it.Price * float64(qty)),
		})
	}

	order := &models.Order{
		TxRef:                txn.TxRef,
		Status:               models.OrderPaid,
		Items:                items,
		CustomerID:           user.ID,
		Coupon:               input.Coupon,
		TotalPrice:           verdict.Amount,
		PaymentReference:     txn.TxRef,
		PaymentTransactionID: verdict.TransactionID,
		PaymentMethod:        config.AppConfig.GatewayName,
	}

	err := database.CreateOrderForTransaction(order, txn)
	if err == nil {
		return order, false, nil
	}

	if errors.Is(err, database.ErrOrderExists) {
		existing, lookupErr := database.FindOrderByTxRef(txn.TxRef)
		if lookupErr != nil {
			return nil, false, &PersistenceError{Step: "order lookup", Err: lookupErr}
		}
		if existing == nil {
			return nil, false, &PersistenceError{Step: "order creation", Err: fmt.Errorf("duplicate tx_ref but no order found")}
		}
		if txn.OrderID == nil {
			txn.OrderID = &existing.ID
			if saveErr := database.SaveTransaction(txn); saveErr != nil {
				return nil, false, &PersistenceError{Step: "transaction link", Err: saveErr}
			}
		}

		// A pending order under this tx_ref means checkout was initiated
		// through POST /api/orders; promote it to paid now that the charge
		// is confirmed
		if existing.Status == models.OrderPending {
			existing.Status = models.OrderPaid
			existing.CustomerID = user.ID
			existing.TotalPrice = verdict.Amount
			existing.PaymentReference = txn.TxRef
			existing.PaymentTransactionID = verdict.TransactionID
			existing.PaymentMethod = config.AppConfig.GatewayName
			if saveErr := database.SaveOrder(existing); saveErr != nil {
				return nil, false, &PersistenceError{Step: "order update", Err: saveErr}
			}
			return existing, false, nil
		}

		// Already paid: a concurrent or repeated verification won the race
		metrics.PaymentVerifications.WithLabelValues("replayed").Inc()
		return existing, true, nil
	}

	return nil, false, &PersistenceError{Step: "order creation", Err: err}
}

func txRefOf(input VerifyPaymentInput, verdict *GatewayVerdict) string {
	if verdict != nil && verdict.TxRef != "" {
		return verdict.TxRef
	}
	return input.TxRef
}

func currencyOf(verdict *GatewayVerdict) string {
	if verdict.Currency != "" {
		return verdict.Currency
	}
	return config.AppConfig.DefaultCurrency
}

// RoundMoney rounds a monetary amount to two decimal places
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
