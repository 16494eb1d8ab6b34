package wallet

import (
	"time"

	"github.com/naira-wallet/wallet_service/internal/ledger"
)

// Balance is the spendable amount of a wallet.
type Balance struct {
	Balance  int64  `json:"balance"`
	Display  string `json:"balance_display"`
	Currency string `json:"currency"`
}

// Summary is the owner-facing view of a wallet.
type Summary struct {
	WalletNumber string    `json:"wallet_number"`
	Balance      int64     `json:"balance"`
	Display      string    `json:"balance_display"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

// Details is a wallet with its recent activity.
type Details struct {
	Wallet             Summary           `json:"wallet"`
	RecentTransactions []TransactionView `json:"recent_transactions"`
	TotalLast30Days    int               `json:"total_transactions_last_30_days"`
}

// TransactionView is a ledger row as shown to its owner.
type TransactionView struct {
	ID                    string                 `json:"id"`
	Type                  ledger.TransactionType `json:"type"`
	Direction             ledger.Direction       `json:"direction"`
	Amount                int64                  `json:"amount"`
	Display               string                 `json:"amount_display"`
	Status                ledger.Status          `json:"status"`
	Reference             string                 `json:"reference"`
	RecipientWalletNumber string                 `json:"recipient_wallet_number,omitempty"`
	SenderWalletNumber    string                 `json:"sender_wallet_number,omitempty"`
	Metadata              map[string]any         `json:"metadata,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
}

// History is one page of an owner's transactions.
type History struct {
	Transactions []TransactionView `json:"transactions"`
	Total        int               `json:"total"`
	Page         int               `json:"page"`
	Limit        int               `json:"limit"`
}

// HistoryQuery selects a page of history. Empty Type or Status match all.
type HistoryQuery struct {
	Page   int
	Limit  int
	Type   string
	Status string
}

func view(txn ledger.Transaction) TransactionView {
	return TransactionView{
		ID:                    txn.ID,
		Type:                  txn.Type,
		Direction:             txn.Direction,
		Amount:                txn.Amount,
		Display:               ledger.MajorUnits(txn.Amount).StringFixed(2),
		Status:                txn.Status,
		Reference:             txn.Reference,
		RecipientWalletNumber: txn.RecipientWalletNumber,
		SenderWalletNumber:    txn.SenderWalletNumber,
		Metadata:              txn.Metadata,
		CreatedAt:             txn.CreatedAt,
	}
}

func views(txns []ledger.Transaction) []TransactionView {
	out := make([]TransactionView, 0, len(txns))
	for _, txn := range txns {
		out = append(out, view(txn))
	}
	return out
}
