package funding

import (
	"time"

	"github.com/naira-wallet/wallet_service/internal/ledger"
	"github.com/naira-wallet/wallet_service/internal/paystack"
)

// DepositRequest is the body of a deposit initialization, amount in kobo.
type DepositRequest struct {
	Amount int64 `json:"amount"`
}

// Initialized is the outcome of a deposit initialization.
type Initialized struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// CallbackResult reports whether a redirect callback credited the wallet.
type CallbackResult struct {
	Completed    bool
	Verification paystack.Verification
}

// DepositStatus projects a deposit together with the gateway's current view.
type DepositStatus struct {
	Reference      string                `json:"reference"`
	Status         ledger.Status         `json:"status"`
	Amount         int64                 `json:"amount"`
	VerifiedStatus string                `json:"verified_status"`
	CreatedAt      time.Time             `json:"created_at"`
	Gateway        paystack.Verification `json:"paystack_data"`
}
