// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered identity. Password accounts carry a bcrypt hash;
// accounts created through the delegated-identity flow carry a ProviderID and
// no hash. Username and Email are unique across all accounts.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	ProviderID   string
	AvatarURL    string
	CreatedAt    time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// PublicAccount is the client-visible projection of an Account. It never
// carries credential material.
type PublicAccount struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Public returns the client-visible projection of a.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:             a.ID,
		Username:       a.Username,
		Email:          a.Email,
		ProfilePicture: a.AvatarURL,
	}
}
