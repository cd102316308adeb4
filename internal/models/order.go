package models

// Order statuses
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

// Order represents a confirmed purchase. An order is only created after
// the gateway has confirmed the charge; the unique index on tx_ref is
// what guarantees at most one order per transaction reference even under
// concurrent duplicate verification requests.
type Order struct {
	BaseModel

	TxRef  string `json:"tx_ref" gorm:"not null;size:100;uniqueIndex"`
	Status string `json:"status" gorm:"not null;size:20;index;default:'pending'"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`

	CustomerID uint    `json:"customer_id" gorm:"not null;index"`
	Coupon     string  `json:"coupon,omitempty" gorm:"size:50"`
	TotalPrice float64 `json:"total_price"`

	// Payment sub-record
	PaymentReference     string `json:"payment_reference" gorm:"size:100"`
	PaymentTransactionID string `json:"payment_transaction_id" gorm:"size:100"`
	PaymentMethod        string `json:"payment_method" gorm:"size:50"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one product line within an order
type OrderItem struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	OrderID uint `json:"order_id" gorm:"not null;index"`

	ProductID string  `json:"product_id" gorm:"size:100"`
	Name      string  `json:"name" gorm:"size:255"`
	Quantity  int     `json:"quantity" gorm:"not null;default:1"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}
