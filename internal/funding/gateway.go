package funding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naira-wallet/wallet_service/internal/paystack"
)

// Gateway represents the card payment processor that collects deposits.
type Gateway interface {
	Initialize(ctx context.Context, email string, amount int64, metadata map[string]any) (paystack.Initialized, error)
	Verify(ctx context.Context, reference string) paystack.Verification
	VerifyWebhookSignature(raw []byte, signature string) bool
}

var _ Gateway = (*paystack.Client)(nil)

// StaticGateway simulates the processor for local runs. Every initialized
// payment verifies as paid when Paid is set.
type StaticGateway struct {
	Paid bool

	mu       sync.Mutex
	payments map[string]int64
}

// NewStaticGateway constructs a simulated gateway.
func NewStaticGateway(paid bool) *StaticGateway {
	return &StaticGateway{Paid: paid, payments: make(map[string]int64)}
}

// Initialize records the payment under a synthetic reference.
func (g *StaticGateway) Initialize(_ context.Context, _ string, amount int64, _ map[string]any) (paystack.Initialized, error) {
	ref := "static_" + uuid.NewString()
	g.mu.Lock()
	g.payments[ref] = amount
	g.mu.Unlock()
	return paystack.Initialized{
		Reference:        ref,
		AuthorizationURL: "https://checkout.local/" + ref,
		AccessCode:       ref,
	}, nil
}

// Verify reports a recorded payment as paid when the gateway is configured to.
func (g *StaticGateway) Verify(_ context.Context, reference string) paystack.Verification {
	g.mu.Lock()
	amount, known := g.payments[reference]
	g.mu.Unlock()
	if !known || !g.Paid {
		return paystack.Verification{Reference: reference, Status: "abandoned"}
	}
	paidAt := time.Now().UTC()
	return paystack.Verification{
		Succeeded: true,
		Status:    "success",
		Reference: reference,
		Amount:    amount,
		Currency:  "NGN",
		PaidAt:    &paidAt,
	}
}

// VerifyWebhookSignature never accepts a signature; the simulator has no secret.
func (g *StaticGateway) VerifyWebhookSignature([]byte, string) bool {
	return false
}
