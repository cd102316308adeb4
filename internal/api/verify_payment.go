package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront-api/internal/models"
	"storefront-api/internal/services"
	"storefront-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// CustomerPayload is the checkout-supplied contact block
type CustomerPayload struct {
	UserID     uint   `json:"userId,omitempty"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// ItemPayload is one cart line in the request
type ItemPayload struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
}

// TotalsPayload is the client-declared pricing breakdown
type TotalsPayload struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	ShippingCost   float64 `json:"shippingCost"`
	Total          float64 `json:"total"`
}

// OrderPayload is the order block of the verification request
type OrderPayload struct {
	Customer CustomerPayload `json:"customer"`
	Items    []ItemPayload   `json:"items"`
	Coupon   string          `json:"coupon,omitempty"`
	Totals   TotalsPayload   `json:"totals"`
}

// VerifyPaymentRequest is the body of POST /api/verify-payment
type VerifyPaymentRequest struct {
	TransactionID string        `json:"transactionId"`
	TxRef         string        `json:"txRef"`
	Order         *OrderPayload `json:"order"`
}

// VerifyPaymentResponse is the success envelope for POST /api/verify-payment
type VerifyPaymentResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Order       *models.Order       `json:"order,omitempty"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Gateway     json.RawMessage     `json:"gateway,omitempty"`
}

// VerifyPayment verifies a client-initiated checkout against the payment
// gateway and materializes the order.
// POST /api/verify-payment
func VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{
			Success: false,
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	if msg := validateVerifyRequest(&req); msg != "" {
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{Success: false, Message: msg})
		return
	}

	input := services.VerifyPaymentInput{
		TransactionID: req.TransactionID,
		TxRef:         req.TxRef,
		Customer: services.CustomerDetails{
			Email:      req.Order.Customer.Email,
			Name:       req.Order.Customer.Name,
			Phone:      req.Order.Customer.Phone,
			Address:    req.Order.Customer.Address,
			City:       req.Order.Customer.City,
			State:      req.Order.Customer.State,
			PostalCode: req.Order.Customer.PostalCode,
			Country:    req.Order.Customer.Country,
		},
		Coupon: req.Order.Coupon,
		Totals: services.OrderTotals{
			Subtotal:       req.Order.Totals.Subtotal,
			DiscountAmount: req.Order.Totals.DiscountAmount,
			ShippingCost:   req.Order.Totals.ShippingCost,
			Total:          req.Order.Totals.Total,
		},
	}
	for _, item := range req.Order.Items {
		input.Items = append(input.Items, services.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Image:     item.Image,
		})
	}

	pipeline := services.NewPaymentPipeline()
	result, err := pipeline.Run(c.Request.Context(), input)
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	if result.PaymentFailed {
		c.JSON(http.StatusOK, VerifyPaymentResponse{
			Success:     false,
			Message:     "Payment not successful",
			Transaction: result.Transaction,
			Gateway:     rawVerdict(result),
		})
		return
	}

	message := "Payment verified, transaction and order created"
	if result.Replayed {
		message = "Already verified"
	}

	c.JSON(http.StatusOK, VerifyPaymentResponse{
		Success:     true,
		Message:     message,
		Order:       result.Order,
		Transaction: result.Transaction,
		Gateway:     rawVerdict(result),
	})
}

func validateVerifyRequest(req *VerifyPaymentRequest) string {
	if req.TransactionID == "" && req.TxRef == "" {
		return "transactionId or txRef required"
	}
	if req.Order == nil || len(req.Order.Items) == 0 {
		return "Order payload with items is required"
	}
	if req.Order.Customer.Email == "" || req.Order.Customer.Name == "" {
		return "Customer name and email are required in order payload"
	}
	return ""
}

func respondPipelineError(c *gin.Context, err error) {
	var unreachable *services.GatewayUnreachableError
	var rejected *services.GatewayRejectedError
	var amountMismatch *services.AmountMismatchError
	var refMismatch *services.ReferenceMismatchError
	var persistence *services.PersistenceError

	switch {
	case errors.As(err, &unreachable):
		logging.Errorf("Gateway verification failed: %v", unreachable)
		c.JSON(http.StatusBadGateway, VerifyPaymentResponse{
			Success: false,
			Message: "Failed to verify with payment gateway",
		})
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{
			Success: false,
			Message: "Payment not successful according to gateway",
		})
	case errors.As(err, &amountMismatch):
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{
			Success: false,
			Message: "Amount mismatch between client order totals and gateway",
		})
	case errors.As(err, &refMismatch):
		c.JSON(http.StatusBadRequest, VerifyPaymentResponse{
			Success: false,
			Message: "tx_ref mismatch",
		})
	case errors.As(err, &persistence):
		logging.Errorf("Pipeline persistence failure: %v", persistence)
		c.JSON(http.StatusInternalServerError, VerifyPaymentResponse{
			Success: false,
			Message: "Internal server error",
		})
	default:
		logging.Errorf("Unexpected pipeline error: %v", err)
		c.JSON(http.StatusInternalServerError, VerifyPaymentResponse{
			Success: false,
			Message: "Internal server error",
		})
	}
}

func rawVerdict(result *services.VerifyPaymentResult) json.RawMessage {
	if result.Verdict == nil {
		return nil
	}
	return result.Verdict.Raw
}
