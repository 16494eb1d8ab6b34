// Package authz resolves who is calling and whether they may perform an
// operation. Callers authenticate with either an API key carrying a
// permission set or a bearer token for an onboarded identity.
package authz

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apperr"
)

// Permission is a capability an API key may carry.
type Permission string

const (
	Read     Permission = "read"
	Deposit  Permission = "deposit"
	Transfer Permission = "transfer"
)

// AllPermissions lists every known capability.
var AllPermissions = []Permission{Read, Deposit, Transfer}

// ParsePermission validates a raw permission string.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	for _, known := range AllPermissions {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Method records how a principal authenticated.
type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodBearer Method = "bearer"
)

// Principal is an authenticated caller.
type Principal struct {
	OwnerID     string
	Email       string
	FirstName   string
	LastName    string
	Method      Method
	KeyID       string
	Permissions []Permission
}

// FullName joins the principal's names.
func (p Principal) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Has reports whether the principal's permission set contains perm.
func (p Principal) Has(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// Authorize grants when every required permission is present. Bearer
// principals act as the owner themselves and skip the permission check.
func Authorize(p Principal, required ...Permission) error {
	if p.Method == MethodBearer {
		return nil
	}
	for _, perm := range required {
		if !p.Has(perm) {
			return apperr.Deny("authz.authorize", "API key lacks required permission: "+string(perm))
		}
	}
	return nil
}

// Credentials are the raw secrets presented on a request.
type Credentials struct {
	APIKey      string
	BearerToken string
}

// ErrNoCredential tells the chain an authenticator had nothing to check.
var ErrNoCredential = errors.New("no credential presented")

// Authenticator turns presented credentials into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Principal, error)
}

// Chain tries authenticators in order; the first principal that both
// authenticates and is authorized wins.
type Chain []Authenticator

// Resolve applies the chain. A principal that authenticated but lacked
// permissions yields Forbidden; no principal at all yields Unauthorized.
func (ch Chain) Resolve(ctx context.Context, creds Credentials, required ...Permission) (Principal, error) {
	var denied, failed error
	for _, a := range ch {
		p, err := a.Authenticate(ctx, creds)
		if errors.Is(err, ErrNoCredential) {
			continue
		}
		if err != nil {
			if failed == nil || apperr.CodeOf(err) == apperr.Internal {
				failed = err
			}
			continue
		}
		if err := Authorize(p, required...); err != nil {
			denied = err
			continue
		}
		return p, nil
	}
	switch {
	case denied != nil:
		return Principal{}, denied
	case failed != nil && apperr.CodeOf(failed) == apperr.Internal:
		return Principal{}, failed
	case failed != nil:
		return Principal{}, apperr.Unauthenticated("authz.resolve", apperr.MessageOf(failed))
	}
	return Principal{}, apperr.Unauthenticated("authz.resolve", "authentication required")
}

const principalKey = "principal"

// Attach stores the principal on the request.
func Attach(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
	c.Locals("user_id", p.OwnerID)
}

// From returns the request principal or Unauthorized when none was attached.
func From(c *fiber.Ctx) (Principal, error) {
	p, ok := c.Locals(principalKey).(Principal)
	if !ok || p.OwnerID == "" {
		return Principal{}, apperr.Unauthenticated("authz.from", "unauthorized")
	}
	return p, nil
}
