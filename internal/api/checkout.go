package api

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"storefront-api/internal/config"
	"storefront-api/internal/database"
	"storefront-api/internal/events"
	"storefront-api/internal/models"
	"storefront-api/internal/services"
	"storefront-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest is the body of POST /api/orders: the checkout
// initiation that reserves a tx_ref before the client starts the gateway
// payment flow
type CreateOrderRequest struct {
	CustomerID uint          `json:"customerId" binding:"required"`
	Items      []ItemPayload `json:"products" binding:"required,min=1"`
	Coupon     string        `json:"coupon"`
	Totals     TotalsPayload `json:"totals"`
}

// CreateOrderResponse returns the reference the client hands to the gateway
type CreateOrderResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	TxRef     string `json:"tx_ref,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
}

// CreateOrder creates a pending order plus its pending ledger entry under a
// server-generated tx_ref.
// POST /api/orders
func CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CreateOrderResponse{
			Success: false,
			Message: "Missing required fields: " + err.Error(),
		})
		return
	}

	customer, err := database.FindUserByID(req.CustomerID)
	if err != nil {
		logging.Errorf("Customer lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, CreateOrderResponse{Success: false, Message: "Internal server error"})
		return
	}
	if customer == nil {
		c.JSON(http.StatusBadRequest, CreateOrderResponse{Success: false, Message: "Unknown customer"})
		return
	}

	txRef, err := generateTxRef()
	if err != nil {
		logging.Errorf("Failed to generate tx_ref: %v", err)
		c.JSON(http.StatusInternalServerError, CreateOrderResponse{Success: false, Message: "Internal server error"})
		return
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  qty,
			UnitPrice: it.Price,
			LineTotal: services.RoundMoney(it.Price * float64(qty)),
		})
	}

	order := &models.Order{
		TxRef:      txRef,
		Status:     models.OrderPending,
		Items:      items,
		CustomerID: customer.ID,
		Coupon:     req.Coupon,
		TotalPrice: req.Totals.Total,
	}

	txn := &models.Transaction{
		TxRef:    txRef,
		UserID:   &customer.ID,
		Amount:   req.Totals.Total,
		Currency: config.AppConfig.DefaultCurrency,
		Status:   models.TransactionPending,
		Gateway:  config.AppConfig.GatewayName,
	}

	if err := database.CreateOrderForTransaction(order, txn); err != nil {
		logging.Errorf("Failed to create pending order: %v", err)
		c.JSON(http.StatusInternalServerError, CreateOrderResponse{Success: false, Message: "Internal server error"})
		return
	}

	events.PublishOrderCreated(order, customer.ID)

	c.JSON(http.StatusOK, CreateOrderResponse{
		Success:   true,
		TxRef:     txRef,
		PublicKey: config.AppConfig.GatewayPublicKey,
	})
}

// generateTxRef builds a unique-ish client-facing transaction reference
func generateTxRef() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d-%d", time.Now().UnixMilli(), n.Int64()), nil
}
