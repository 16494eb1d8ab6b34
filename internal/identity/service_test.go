package identity

import (
	"context"
	"testing"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/ledger"
	"github.com/naira-wallet/wallet_service/internal/logging"
)

func newTestService() (*Service, ledger.Store) {
	store := ledger.NewInMemory()
	return NewService(NewMemoryRepository(store), store, logging.Discard()), store
}

func TestOnboardCreatesUserWithWallet(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	out, err := svc.Onboard(ctx, Profile{Email: "Ada@Example.com", FirstName: "Ada", LastName: "Obi"})
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if !out.Created || out.User.Email != "ada@example.com" {
		t.Fatalf("unexpected onboarding result %+v", out.User)
	}
	if !ledger.ValidWalletNumber(out.Wallet.WalletNumber) || out.Wallet.Balance != 0 {
		t.Fatalf("unexpected wallet %+v", out.Wallet)
	}

	w, err := store.WalletByOwner(ctx, out.User.ID)
	if err != nil || w.ID != out.Wallet.ID {
		t.Fatalf("wallet not persisted with user: %v", err)
	}
}

func TestOnboardIsIdempotentPerEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Onboard(ctx, Profile{Email: "ada@example.com", FirstName: "Ada", LastName: "Obi"})
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	again, err := svc.Onboard(ctx, Profile{Email: "ada@example.com", FirstName: "Adaeze", LastName: "Obi"})
	if err != nil {
		t.Fatalf("second onboard: %v", err)
	}
	if again.Created || again.User.ID != first.User.ID || again.Wallet.WalletNumber != first.Wallet.WalletNumber {
		t.Fatal("second sign-in must reuse user and wallet")
	}
	if again.User.FirstName != "Adaeze" {
		t.Fatalf("profile not refreshed: %s", again.User.FirstName)
	}
	got, err := svc.Get(ctx, first.User.ID)
	if err != nil || got.FirstName != "Adaeze" {
		t.Fatalf("get: %+v %v", got, err)
	}
}

func TestOnboardRejectsBadEmail(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Onboard(context.Background(), Profile{Email: "not-an-email"}); !apperr.Is(err, apperr.InvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
