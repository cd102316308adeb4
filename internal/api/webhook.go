package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront-api/internal/config"
	"storefront-api/internal/database"
	"storefront-api/internal/events"
	"storefront-api/internal/models"
	"storefront-api/internal/services"
	"storefront-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// webhookEvent covers the identifier layouts the gateway uses across its
// event types
type webhookEvent struct {
	ID     json.Number `json:"id"`
	TxRef  string      `json:"tx_ref"`
	FlwRef string      `json:"flw_ref"`
	Data   struct {
		ID            json.Number `json:"id"`
		TransactionID json.Number `json:"transaction_id"`
		TxRef         string      `json:"tx_ref"`
		FlwRef        string      `json:"flw_ref"`
	} `json:"data"`
}

// GatewayWebhook handles asynchronous payment notifications from the
// gateway. The event is never trusted on its own: the transaction is
// re-verified against the gateway before any state changes.
// POST /api/gateway/webhook
func GatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}

	// Optional signature check, enabled when a webhook hash is configured
	if secret := config.AppConfig.WebhookHash; secret != "" {
		signature := c.GetHeader("verif-hash")
		if subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) != 1 {
			logging.Warnf("Webhook signature mismatch from %s", c.ClientIP())
			c.String(http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}

	txID, txRef := extractIdentifiers(&event)
	if txID == "" && txRef == "" {
		logging.Warnf("Webhook missing identifiers")
		c.String(http.StatusBadRequest, "missing identifiers")
		return
	}

	// Gateways redeliver events; drop exact duplicates early
	guard := services.NewRedisGuard()
	if guard.SeenWebhookEvent(c.Request.Context(), body) {
		logging.Infof("Duplicate webhook event dropped (tx_ref %s)", txRef)
		c.String(http.StatusOK, "ok")
		return
	}

	client := services.NewGatewayClient()
	var verdict *services.GatewayVerdict
	if txID != "" {
		verdict, err = client.VerifyTransaction(c.Request.Context(), txID)
	} else {
		verdict, err = client.VerifyTransactionByRef(c.Request.Context(), txRef)
	}
	if err != nil {
		var unreachable *services.GatewayUnreachableError
		if errors.As(err, &unreachable) {
			logging.Errorf("Webhook verification failed: %v", err)
			c.String(http.StatusBadGateway, "gateway verification failed")
			return
		}
		c.String(http.StatusBadRequest, "not successful")
		return
	}

	status := models.TransactionSuccessful
	if !verdict.Confirmed {
		status = models.TransactionFailed
	}

	if err := upsertWebhookTransaction(verdict, status); err != nil {
		logging.Errorf("Webhook transaction upsert failed: %v", err)
		c.String(http.StatusInternalServerError, "server error")
		return
	}

	if verdict.Confirmed && verdict.TxRef != "" {
		if err := markOrderPaid(verdict); err != nil {
			logging.Errorf("Webhook order update failed: %v", err)
			c.String(http.StatusInternalServerError, "server error")
			return
		}
		guard.MarkVerified(c.Request.Context(), verdict.TxRef)
	}

	c.String(http.StatusOK, "ok")
}

func extractIdentifiers(event *webhookEvent) (txID, txRef string) {
	txID = event.Data.ID.String()
	if txID == "" {
		txID = event.Data.TransactionID.String()
	}
	if txID == "" {
		txID = event.ID.String()
	}

	txRef = event.Data.TxRef
	if txRef == "" {
		txRef = event.Data.FlwRef
	}
	if txRef == "" {
		txRef = event.TxRef
	}
	if txRef == "" {
		txRef = event.FlwRef
	}
	return txID, txRef
}

func upsertWebhookTransaction(verdict *services.GatewayVerdict, status string) error {
	txn, err := database.FindTransactionByTxRef(verdict.TxRef)
	if err != nil {
		return err
	}

	if txn == nil {
		txn = &models.Transaction{
			TxRef:   verdict.TxRef,
			Gateway: config.AppConfig.GatewayName,
		}
	}

	// A successful ledger entry is final; a late or duplicate event must
	// not flip it back
	if txn.Status == models.TransactionSuccessful && status != models.TransactionSuccessful {
		return nil
	}

	txn.Status = status
	txn.Amount = verdict.Amount
	if verdict.Currency != "" {
		txn.Currency = verdict.Currency
	}
	txn.GatewayTransactionID = verdict.TransactionID
	txn.GatewayData = string(verdict.Raw)

	if txn.ID == 0 {
		return database.CreateTransaction(txn)
	}
	return database.SaveTransaction(txn)
}

func markOrderPaid(verdict *services.GatewayVerdict) error {
	order, err := database.FindOrderByTxRef(verdict.TxRef)
	if err != nil || order == nil {
		return err
	}
	if order.Status != models.OrderPending {
		return nil
	}

	order.Status = models.OrderPaid
	order.PaymentReference = verdict.TxRef
	order.PaymentTransactionID = verdict.TransactionID
	order.PaymentMethod = config.AppConfig.GatewayName
	if err := database.SaveOrder(order); err != nil {
		return err
	}

	events.PublishOrderPaid(order, order.CustomerID)
	return nil
}
