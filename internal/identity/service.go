package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/ledger"
)

const walletNumberAttempts = 5

// Service manages identity lifecycle.
type Service struct {
	repo    Repository
	wallets ledger.Store
	logger  *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, wallets ledger.Store, logger *slog.Logger) *Service {
	return &Service{repo: repo, wallets: wallets, logger: logger}
}

// Onboarded is a user together with their wallet.
type Onboarded struct {
	User    User
	Wallet  ledger.Wallet
	Created bool
}

// Onboard signs in a federated profile. Unknown emails get a new user and
// wallet in one unit; known emails get their names refreshed.
func (s *Service) Onboard(ctx context.Context, p Profile) (Onboarded, error) {
	const op = "identity.onboard"

	addr, err := mail.ParseAddress(strings.TrimSpace(p.Email))
	if err != nil {
		return Onboarded{}, apperr.Invalid(op, "a valid email is required")
	}
	p.Email = strings.ToLower(addr.Address)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)

	user, err := s.repo.FindByEmail(ctx, p.Email)
	switch {
	case err == nil:
		return s.refresh(ctx, user, p)
	case !errors.Is(err, ErrNotFound):
		return Onboarded{}, apperr.Internalf(op, err)
	}

	now := time.Now().UTC()
	user = User{ID: uuid.NewString(), Email: p.Email, FirstName: p.FirstName, LastName: p.LastName, Active: true, CreatedAt: now}
	for attempt := 0; attempt < walletNumberAttempts; attempt++ {
		number, err := ledger.NewWalletNumber()
		if err != nil {
			return Onboarded{}, apperr.Internalf(op, err)
		}
		wallet := ledger.Wallet{
			ID:           uuid.NewString(),
			OwnerID:      user.ID,
			WalletNumber: number,
			Currency:     ledger.DefaultCurrency,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.repo.CreateWithWallet(ctx, user, wallet)
		switch {
		case err == nil:
			s.logger.Info("identity.onboarded", slog.String("user_id", user.ID), slog.String("wallet_number", number))
			return Onboarded{User: user, Wallet: wallet, Created: true}, nil
		case errors.Is(err, ledger.ErrDuplicateWalletNumber):
			continue
		case errors.Is(err, ErrEmailTaken):
			existing, findErr := s.repo.FindByEmail(ctx, p.Email)
			if findErr != nil {
				return Onboarded{}, apperr.Internalf(op, findErr)
			}
			return s.refresh(ctx, existing, p)
		default:
			return Onboarded{}, apperr.Internalf(op, err)
		}
	}
	return Onboarded{}, apperr.Internalf(op, errors.New("could not allocate a unique wallet number"))
}

func (s *Service) refresh(ctx context.Context, user User, p Profile) (Onboarded, error) {
	const op = "identity.onboard"
	if p.FirstName != user.FirstName || p.LastName != user.LastName {
		if err := s.repo.UpdateProfile(ctx, user.ID, p.FirstName, p.LastName); err != nil {
			return Onboarded{}, apperr.Internalf(op, err)
		}
		user.FirstName, user.LastName = p.FirstName, p.LastName
	}
	wallet, err := s.wallets.WalletByOwner(ctx, user.ID)
	if err != nil {
		return Onboarded{}, apperr.Internalf(op, err)
	}
	return Onboarded{User: user, Wallet: wallet}, nil
}

// Get returns an active user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return User{}, apperr.Missing("identity.get", "user")
	}
	if err != nil {
		return User{}, apperr.Internalf("identity.get", err)
	}
	return user, nil
}
