package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/naira-wallet/wallet_service/internal/identity"
)

func TestIssueAndVerify(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour, "wallet")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	user := identity.User{ID: "u-1", Email: "ada@example.com", FirstName: "Ada", LastName: "Obi"}

	signed, exp, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("expiry must be in the future")
	}
	claims, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u-1" || claims.Email != "ada@example.com" || claims.FirstName != "Ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	tokens, _ := NewTokens("test-secret", time.Minute, "wallet")
	signed, _, err := tokens.Issue(identity.User{ID: "u-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := time.Now().Add(2 * time.Minute)
	tokens.now = func() time.Time { return later }
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}

	other, _ := NewTokens("other-secret", time.Hour, "wallet")
	foreign, _, _ := other.Issue(identity.User{ID: "u-1"})
	tokens.now = time.Now
	if _, err := tokens.Verify(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch rejection, got %v", err)
	}

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "iss": "wallet"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := tokens.Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none rejection, got %v", err)
	}

	if _, err := NewTokens("", time.Hour, "wallet"); err == nil {
		t.Fatal("expected empty secret to be refused")
	}
}
