package models

// User represents a customer account, identified by email.
// Accounts are either registered explicitly or provisioned as guest
// accounts at checkout time.
type User struct {
	BaseModel

	Name  string `json:"name" gorm:"size:100"`
	Email string `json:"email" gorm:"not null;size:255;uniqueIndex"`

	// Password stores the bcrypt hash, never the plaintext
	Password string `json:"-" gorm:"not null;size:100"`

	Phone string `json:"phone" gorm:"size:30"`

	// Address fields, overwritten with the latest checkout values
	Address    string `json:"address" gorm:"size:255"`
	City       string `json:"city" gorm:"size:100"`
	State      string `json:"state" gorm:"size:100"`
	PostalCode string `json:"postal_code" gorm:"size:20"`
	Country    string `json:"country" gorm:"size:100;default:'Nigeria'"`

	Admin    bool `json:"admin" gorm:"default:false"`
	Verified bool `json:"verified" gorm:"default:false"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
