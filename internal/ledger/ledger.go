package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a wallet or transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds occurs when a debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateWalletNumber indicates the generated wallet number is taken.
	ErrDuplicateWalletNumber = errors.New("duplicate wallet number")

	// ErrDuplicateReference indicates a transaction reference is already recorded.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrStatusConflict is returned when a conditional status change finds the
	// transaction in a different state than expected.
	ErrStatusConflict = errors.New("transaction status changed concurrently")
)

// TransactionType enumerates balance-affecting events.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeTransfer   TransactionType = "transfer"
	TypeWithdrawal TransactionType = "withdrawal"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeTransfer, TypeWithdrawal:
		return true
	}
	return false
}

// Status is the lifecycle state of a transaction. It only ever moves from
// pending to success or from pending to failed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Direction tells whether a transaction adds to or takes from its wallet.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// DefaultCurrency is assigned to wallets created without an explicit code.
const DefaultCurrency = "NGN"

// Wallet is a per-owner balance in minor units.
type Wallet struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	WalletNumber string    `json:"wallet_number"`
	Balance      int64     `json:"balance"`
	Currency     string    `json:"currency"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transaction records one balance-affecting event against one wallet.
type Transaction struct {
	ID                    string          `json:"id"`
	Reference             string          `json:"reference"`
	OwnerID               string          `json:"owner_id"`
	WalletID              string          `json:"wallet_id"`
	Type                  TransactionType `json:"type"`
	Status                Status          `json:"status"`
	Direction             Direction       `json:"direction"`
	Amount                int64           `json:"amount"`
	SenderWalletNumber    string          `json:"sender_wallet_number,omitempty"`
	RecipientWalletNumber string          `json:"recipient_wallet_number,omitempty"`
	Metadata              map[string]any  `json:"metadata,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Filter narrows a transaction listing. Zero values mean "any".
type Filter struct {
	Type   TransactionType
	Status Status
	Since  time.Time
	Limit  int
	Offset int
}

// Store persists wallets and transactions. Reads outside Atomically observe
// committed state only.
type Store interface {
	CreateWallet(ctx context.Context, wallet Wallet) error
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	WalletByNumber(ctx context.Context, number string) (Wallet, error)

	TransactionByReference(ctx context.Context, reference string) (Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, filter Filter) ([]Transaction, int, error)
	LatestPendingDeposit(ctx context.Context, ownerID string, since time.Time) (Transaction, error)
	InsertTransaction(ctx context.Context, txn Transaction) error
	// RepointPending swaps the reference and amount of a still-pending transaction.
	RepointPending(ctx context.Context, id, reference string, amount int64) error
	// FailPending moves a pending transaction to failed.
	FailPending(ctx context.Context, id string) error

	// Atomically runs fn as one unit: every write made through tx commits
	// together or not at all.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside an atomic unit.
type Tx interface {
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	WalletByNumber(ctx context.Context, number string) (Wallet, error)
	// LockWallets locks the wallets for the rest of the unit, in ascending id
	// order, and returns their current state keyed by id.
	LockWallets(ctx context.Context, ids ...string) (map[string]Wallet, error)
	LockTransaction(ctx context.Context, reference string) (Transaction, error)
	// TransferVolume sums the owner's successful outgoing transfers created in [from, to).
	TransferVolume(ctx context.Context, ownerID string, from, to time.Time) (int64, error)
	// AdjustBalance adds delta to the balance, refusing to go below zero.
	AdjustBalance(ctx context.Context, walletID string, delta int64) (Wallet, error)
	InsertTransaction(ctx context.Context, txn Transaction) error
	SetStatus(ctx context.Context, id string, from, to Status) error
}

// MajorUnits converts minor units (kobo) to the major unit (naira).
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
