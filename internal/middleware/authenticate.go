package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apikey"
	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/auth"
	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/identity"
	"github.com/naira-wallet/wallet_service/internal/metrics"
)

// APIKeyHeader carries the plaintext API key.
const APIKeyHeader = "x-api-key"

// KeyValidator checks a presented API key.
type KeyValidator interface {
	Validate(ctx context.Context, plaintext string) (apikey.Key, error)
}

// TokenVerifier checks a presented bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// UserLookup loads the owner behind a credential.
type UserLookup interface {
	Get(ctx context.Context, id string) (identity.User, error)
}

// Authenticate resolves the caller through chain and attaches the principal.
// API key principals must carry every required permission.
func Authenticate(chain authz.Chain, required ...authz.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds := authz.Credentials{
			APIKey:      strings.TrimSpace(c.Get(APIKeyHeader)),
			BearerToken: bearerToken(c.Get(fiber.HeaderAuthorization)),
		}
		p, err := chain.Resolve(c.UserContext(), creds, required...)
		if err != nil {
			return err
		}
		authz.Attach(c, p)
		return c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}

// APIKeyAuthenticator authenticates the x-api-key header.
type APIKeyAuthenticator struct {
	Keys    KeyValidator
	Users   UserLookup
	Metrics *metrics.Collector
}

// Authenticate implements authz.Authenticator.
func (a APIKeyAuthenticator) Authenticate(ctx context.Context, creds authz.Credentials) (authz.Principal, error) {
	if creds.APIKey == "" {
		return authz.Principal{}, authz.ErrNoCredential
	}
	key, err := a.Keys.Validate(ctx, creds.APIKey)
	if err != nil {
		a.Metrics.KeyValidation(strings.ToLower(string(apperr.CodeOf(err))))
		return authz.Principal{}, err
	}
	user, err := activeUser(ctx, a.Users, key.OwnerID)
	if err != nil {
		return authz.Principal{}, err
	}
	a.Metrics.KeyValidation("ok")
	return authz.Principal{
		OwnerID:     user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Method:      authz.MethodAPIKey,
		KeyID:       key.ID,
		Permissions: key.Permissions,
	}, nil
}

// BearerAuthenticator authenticates the Authorization: Bearer header.
type BearerAuthenticator struct {
	Tokens TokenVerifier
	Users  UserLookup
}

// Authenticate implements authz.Authenticator.
func (a BearerAuthenticator) Authenticate(ctx context.Context, creds authz.Credentials) (authz.Principal, error) {
	if creds.BearerToken == "" {
		return authz.Principal{}, authz.ErrNoCredential
	}
	claims, err := a.Tokens.Verify(creds.BearerToken)
	if err != nil {
		return authz.Principal{}, apperr.Unauthenticated("auth.bearer", "invalid token")
	}
	user, err := activeUser(ctx, a.Users, claims.Subject)
	if err != nil {
		return authz.Principal{}, err
	}
	return authz.Principal{
		OwnerID:     user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Method:      authz.MethodBearer,
		Permissions: authz.AllPermissions,
	}, nil
}

func activeUser(ctx context.Context, users UserLookup, id string) (identity.User, error) {
	user, err := users.Get(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return identity.User{}, apperr.Unauthenticated("auth.user", "user not found")
		}
		return identity.User{}, err
	}
	if !user.Active {
		return identity.User{}, apperr.Unauthenticated("auth.user", "user is inactive")
	}
	return user, nil
}
