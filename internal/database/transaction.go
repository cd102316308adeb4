package database

import (
	"errors"

	"storefront-api/internal/models"

	"gorm.io/gorm"
)

// ErrTransactionExists reports that a ledger entry already exists for the
// tx_ref. Callers adopt the existing row instead of failing.
var ErrTransactionExists = errors.New("transaction already exists for reference")

// CreateTransaction creates a transaction record
func CreateTransaction(txn *models.Transaction) error {
	if err := DB.Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrTransactionExists
		}
		return err
	}
	return nil
}

// SaveTransaction persists changes to an existing transaction
func SaveTransaction(txn *models.Transaction) error {
	return DB.Save(txn).Error
}

// FindTransactionByTxRef finds a transaction by its client reference.
// Returns (nil, nil) when no transaction exists for the reference.
func FindTransactionByTxRef(txRef string) (*models.Transaction, error) {
	var txn models.Transaction
	err := DB.Where("tx_ref = ?", txRef).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// FindTransactionByGatewayID finds a transaction by the gateway-assigned id.
// Returns (nil, nil) when no transaction exists for the id.
func FindTransactionByGatewayID(gatewayTransactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := DB.Where("gateway_transaction_id = ?", gatewayTransactionID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}
