package database

import (
	"errors"
	"strings"

	"storefront-api/internal/models"

	"gorm.io/gorm"
)

// ErrUserExists reports that an account already exists for the email.
// Callers adopt the existing account instead of failing.
var ErrUserExists = errors.New("account already exists for email")

// CreateUser creates a user record
func CreateUser(user *models.User) error {
	if err := DB.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// SaveUser persists changes to an existing user
func SaveUser(user *models.User) error {
	return DB.Save(user).Error
}

// FindUserByEmail finds a user by email, case-insensitive.
// Returns (nil, nil) when no user exists for the email.
func FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := DB.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID finds a user by primary key
func FindUserByID(id uint) (*models.User, error) {
	var user models.User
	err := DB.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
