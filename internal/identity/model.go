package identity

import "time"

// User represents an onboarded wallet owner.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the identity asserted by the sign-in provider.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
}
