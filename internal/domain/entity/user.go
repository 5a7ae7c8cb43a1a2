package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Password holds a bcrypt hash and is empty for accounts that only ever
// signed in through a federated provider. It is excluded from JSON so no
// handler can leak it.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Password      string    `json:"-"`
	ProfileImg    string    `json:"profile_img"`
	IsAdmin       bool      `json:"is_admin"`
	LoginTypeCode string    `json:"login_type_code,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty"`
	Address1      string    `json:"address1,omitempty"`
	Address2      string    `json:"address2,omitempty"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a local
// password. Federated-only accounts have none.
func (u *User) HasPassword() bool {
	return u.Password != ""
}
