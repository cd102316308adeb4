package database

import (
	"errors"

	"storefront-api/internal/models"

	"gorm.io/gorm"
)

// ErrOrderExists reports that an order already exists for the tx_ref.
// Callers treat it as the idempotent-replay case, not a failure.
var ErrOrderExists = errors.New("order already exists for transaction reference")

// CreateOrderForTransaction creates the order and links the ledger entry to
// it in a single database transaction, so a crash cannot leave a successful
// transaction pointing at a half-created order. A duplicate tx_ref (two
// near-simultaneous verification calls racing past the read check) comes
// back as ErrOrderExists via the unique index on orders.tx_ref.
func CreateOrderForTransaction(order *models.Order, txn *models.Transaction) error {
	err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		txn.OrderID = &order.ID
		return tx.Save(txn).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrOrderExists
		}
		return err
	}
	return nil
}

// FindOrderByID finds an order with its line items
func FindOrderByID(id uint) (*models.Order, error) {
	var order models.Order
	err := DB.Preload("Items").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindOrderByTxRef finds an order by transaction reference
func FindOrderByTxRef(txRef string) (*models.Order, error) {
	var order models.Order
	err := DB.Preload("Items").Where("tx_ref = ?", txRef).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// SaveOrder persists changes to an existing order
func SaveOrder(order *models.Order) error {
	return DB.Save(order).Error
}

// ListOrders returns all orders, most recent first
func ListOrders() ([]models.Order, error) {
	var orders []models.Order
	err := DB.Preload("Items").Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// ListOrdersByCustomer returns a customer's orders, most recent first
func ListOrdersByCustomer(customerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := DB.Preload("Items").Where("customer_id = ?", customerID).
		Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// CountOrders counts all orders
func CountOrders() (int64, error) {
	var count int64
	err := DB.Model(&models.Order{}).Count(&count).Error
	return count, err
}

// CountOrdersByStatus counts orders in a given status
func CountOrdersByStatus(status string) (int64, error) {
	var count int64
	err := DB.Model(&models.Order{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountOrdersByCustomer counts a customer's orders
func CountOrdersByCustomer(customerID uint) (int64, error) {
	var count int64
	err := DB.Model(&models.Order{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}

// DeliveredRevenue sums the total price of delivered orders
func DeliveredRevenue() (float64, error) {
	var revenue float64
	err := DB.Model(&models.Order{}).Where("status = ?", models.OrderDelivered).
		Select("COALESCE(SUM(total_price), 0)").Scan(&revenue).Error
	return revenue, err
}
