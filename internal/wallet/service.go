package wallet

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/ledger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	recentWindow = 30 * 24 * time.Hour
	recentCount  = 5
)

// Service exposes read-only wallet queries backed by the ledger store.
type Service struct {
	store ledger.Store
	now   func() time.Time
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Balance returns the owner's current balance.
func (s *Service) Balance(ctx context.Context, ownerID string) (Balance, error) {
	w, err := s.wallet(ctx, "wallet.balance", ownerID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Balance: w.Balance, Display: ledger.MajorUnits(w.Balance).StringFixed(2), Currency: w.Currency}, nil
}

// Details returns the wallet with its five most recent transactions of the
// last 30 days and the number of transactions in that window.
func (s *Service) Details(ctx context.Context, ownerID string) (Details, error) {
	const op = "wallet.details"

	w, err := s.wallet(ctx, op, ownerID)
	if err != nil {
		return Details{}, err
	}
	recent, total, err := s.store.ListTransactions(ctx, ownerID, ledger.Filter{
		Since: s.now().Add(-recentWindow),
		Limit: recentCount,
	})
	if err != nil {
		return Details{}, apperr.Internalf(op, err)
	}
	return Details{
		Wallet: Summary{
			WalletNumber: w.WalletNumber,
			Balance:      w.Balance,
			Display:      ledger.MajorUnits(w.Balance).StringFixed(2),
			Currency:     w.Currency,
			CreatedAt:    w.CreatedAt,
		},
		RecentTransactions: views(recent),
		TotalLast30Days:    total,
	}, nil
}

// History returns a page of the owner's transactions, newest first.
func (s *Service) History(ctx context.Context, ownerID string, q HistoryQuery) (History, error) {
	const op = "wallet.history"

	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Page < 1 {
		return History{}, apperr.Invalid(op, "page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return History{}, apperr.Invalid(op, "limit must be between 1 and 100")
	}
	if q.Page > math.MaxInt/q.Limit {
		return History{}, apperr.Invalid(op, "page is out of range")
	}
	filter := ledger.Filter{Limit: q.Limit, Offset: (q.Page - 1) * q.Limit}
	if q.Type != "" {
		filter.Type = ledger.TransactionType(q.Type)
		if !filter.Type.Valid() {
			return History{}, apperr.Invalid(op, "type must be one of deposit, transfer, withdrawal")
		}
	}
	if q.Status != "" {
		filter.Status = ledger.Status(q.Status)
		if !filter.Status.Valid() {
			return History{}, apperr.Invalid(op, "status must be one of pending, success, failed")
		}
	}

	if _, err := s.wallet(ctx, op, ownerID); err != nil {
		return History{}, err
	}
	txns, total, err := s.store.ListTransactions(ctx, ownerID, filter)
	if err != nil {
		return History{}, apperr.Internalf(op, err)
	}
	return History{Transactions: views(txns), Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *Service) wallet(ctx context.Context, op, ownerID string) (ledger.Wallet, error) {
	w, err := s.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Wallet{}, apperr.Missing(op, "wallet")
		}
		return ledger.Wallet{}, apperr.Internalf(op, err)
	}
	return w, nil
}
