package apikey

import (
	"time"

	"github.com/naira-wallet/wallet_service/internal/authz"
)

// MaxActiveKeys caps the usable keys a single owner may hold.
const MaxActiveKeys = 5

// SecretPrefix starts every issued plaintext key.
const SecretPrefix = "sk_live_"

// Key is a stored API key credential. The plaintext secret is never kept.
type Key struct {
	ID          string
	OwnerID     string
	Name        string
	SecretHash  string
	Permissions []authz.Permission
	Active      bool
	ExpiresAt   time.Time
	LastUsedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsExpired reports whether the key's expiry has passed at now.
func (k Key) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// CanBeUsed reports whether the key is active and unexpired.
func (k Key) CanBeUsed(now time.Time) bool {
	return k.Active && !k.IsExpired(now)
}

// Expiry is one of the accepted lifetime codes.
type Expiry string

const (
	ExpiryHour  Expiry = "1H"
	ExpiryDay   Expiry = "1D"
	ExpiryMonth Expiry = "1M"
	ExpiryYear  Expiry = "1Y"
)

// From returns the expiry instant counted from now. Month and year are
// calendar based.
func (e Expiry) From(now time.Time) (time.Time, bool) {
	switch e {
	case ExpiryHour:
		return now.Add(time.Hour), true
	case ExpiryDay:
		return now.Add(24 * time.Hour), true
	case ExpiryMonth:
		return now.AddDate(0, 1, 0), true
	case ExpiryYear:
		return now.AddDate(1, 0, 0), true
	}
	return time.Time{}, false
}

// Issued is returned once, on creation or rollover, and is the only place the
// plaintext key appears.
type Issued struct {
	APIKey      string             `json:"api_key"`
	ExpiresAt   time.Time          `json:"expires_at"`
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Permissions []authz.Permission `json:"permissions"`
	CreatedAt   time.Time          `json:"created_at"`
}

// View is the listing projection of a key.
type View struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Permissions []authz.Permission `json:"permissions"`
	Active      bool               `json:"is_active"`
	ExpiresAt   time.Time          `json:"expires_at"`
	LastUsedAt  *time.Time         `json:"last_used_at"`
	CreatedAt   time.Time          `json:"created_at"`
	Expired     bool               `json:"is_expired"`
}
