package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"storefront-api/internal/config"
	"storefront-api/internal/database"
	"storefront-api/internal/models"
	"storefront-api/pkg/logging"

	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost is the bcrypt cost factor for generated guest credentials
const passwordHashCost = 12

var passwordSpecials = []string{"@", "!", "&", "^", "#"}

// CustomerDetails is the checkout-supplied contact information
type CustomerDetails struct {
	Email      string
	Name       string
	Phone      string
	Address    string
	City       string
	State      string
	PostalCode string
	Country    string
}

// AccountProvisioner finds or creates customer accounts from checkout
// contact details
type AccountProvisioner struct {
	mailer *Mailer
}

// NewAccountProvisioner creates an account provisioner
func NewAccountProvisioner() *AccountProvisioner {
	return &AccountProvisioner{
		mailer: NewMailer(),
	}
}

// Provision returns the account for the checkout email, creating a guest
// account with generated credentials when none exists. Existing accounts get
// their contact fields overwritten with the latest checkout values,
// last-write-wins. User persistence is on the pipeline's critical path: an
// order cannot exist without an owning customer.
func (p *AccountProvisioner) Provision(details CustomerDetails) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(details.Email))

	user, err := database.FindUserByEmail(email)
	if err != nil {
		return nil, &PersistenceError{Step: "user lookup", Err: err}
	}

	if user == nil {
		return p.createGuestAccount(email, details)
	}

	// Overwrite contact fields with the latest checkout values; empty
	// values keep the stored ones
	if details.Phone != "" {
		user.Phone = details.Phone
	}
	if details.Address != "" {
		user.Address = details.Address
	}
	if details.City != "" {
		user.City = details.City
	}
	if details.State != "" {
		user.State = details.State
	}
	if details.PostalCode != "" {
		user.PostalCode = details.PostalCode
	}
	if details.Country != "" {
		user.Country = details.Country
	}

	if err := database.SaveUser(user); err != nil {
		return nil, &PersistenceError{Step: "user update", Err: err}
	}
	return user, nil
}

func (p *AccountProvisioner) createGuestAccount(email string, details CustomerDetails) (*models.User, error) {
	password, err := generatePassword(details.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	country := details.Country
	if country == "" {
		country = "Nigeria"
	}

	user := &models.User{
		Email:      email,
		Name:       details.Name,
		Password:   string(hashed),
		Phone:      details.Phone,
		Address:    details.Address,
		City:       details.City,
		State:      details.State,
		PostalCode: details.PostalCode,
		Country:    country,
	}

	if err := database.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			// A concurrent checkout provisioned this account between our
			// read and this write; use it
			existing, lookupErr := database.FindUserByEmail(email)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, &PersistenceError{Step: "user creation", Err: err}
	}

	logging.Infof("Provisioned guest account for %s (user %d)", email, user.ID)

	// Welcome and credentials emails are best-effort, the pipeline does not
	// wait for them
	verificationLink := fmt.Sprintf("%s/verify/%d", config.AppConfig.StoreBaseURL, user.ID)
	loginLink := config.AppConfig.StoreBaseURL + "/login"
	p.mailer.SendAsync(func(m *Mailer) error {
		return m.SendWelcomeEmail(email, user.Name, verificationLink)
	})
	p.mailer.SendAsync(func(m *Mailer) error {
		return m.SendGuestCredentialsEmail(email, user.Name, password, loginLink)
	})

	return user, nil
}

// generatePassword builds a guest password from the first token of the
// customer name, one special character, and a random numeric suffix
func generatePassword(name string) (string, error) {
	first := "user"
	if fields := strings.Fields(name); len(fields) > 0 {
		first = fields[0]
	}

	specialIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordSpecials))))
	if err != nil {
		return "", err
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(3000000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%s%d", first, passwordSpecials[specialIdx.Int64()], suffix.Int64()), nil
}
