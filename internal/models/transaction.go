package models

// Transaction statuses
const (
	TransactionPending    = "pending"
	TransactionSuccessful = "successful"
	TransactionFailed     = "failed"
	TransactionCancelled  = "cancelled"
)

// Transaction represents one attempt to pay for a cart.
// The tx_ref is the idempotency key: at most one transaction per reference,
// and at most one of them ever reaches status=successful. Rows are never
// deleted, they are the audit trail for gateway charges.
type Transaction struct {
	BaseModel

	// Client-generated transaction reference, idempotency key
	TxRef string `json:"tx_ref" gorm:"not null;size:100;uniqueIndex"`

	// Gateway-assigned transaction id, authoritative once known
	GatewayTransactionID string `json:"transaction_id" gorm:"size:100;index"`

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency" gorm:"size:10;default:'NGN'"`
	Status   string  `json:"status" gorm:"not null;size:20;index;default:'pending'"`
	Gateway  string  `json:"gateway" gorm:"size:50;default:'flutterwave'"`

	// Raw gateway payload, stored verbatim for auditing
	GatewayData string `json:"gateway_data,omitempty" gorm:"type:text"`

	// Set once the order / customer are resolved
	OrderID *uint `json:"order_id" gorm:"index"`
	UserID  *uint `json:"user_id" gorm:"index"`
}

// TableName specifies the table name
func (Transaction) TableName() string {
	return "transactions"
}
