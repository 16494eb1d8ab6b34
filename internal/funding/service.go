package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/ledger"
	"github.com/naira-wallet/wallet_service/internal/metrics"
	"github.com/naira-wallet/wallet_service/internal/notification"
	"github.com/naira-wallet/wallet_service/internal/paystack"
)

const (
	// MinDepositAmount and MaxDepositAmount bound a deposit, in kobo.
	MinDepositAmount int64 = 100
	MaxDepositAmount int64 = 10_000_000

	// PendingReuseWindow is how long a pending deposit is resumed instead of
	// opening a new one.
	PendingReuseWindow = 5 * time.Minute

	initLockTTL = 30 * time.Second
)

// Options carries the optional collaborators of the service.
type Options struct {
	Locker   Locker
	Notifier notification.Notifier
	Metrics  *metrics.Collector
	// RequireWebhookSignature rejects webhooks whose HMAC does not verify.
	RequireWebhookSignature bool
}

// Service drives deposits from initialization at the gateway to a credited balance.
type Service struct {
	store      ledger.Store
	gateway    Gateway
	logger     *slog.Logger
	locker     Locker
	notifier   notification.Notifier
	metrics    *metrics.Collector
	requireSig bool
	now        func() time.Time
}

// NewService wires a deposit service. A nil Locker falls back to a process-local one.
func NewService(store ledger.Store, gateway Gateway, logger *slog.Logger, opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = NewMemoryLocker()
	}
	return &Service{
		store:      store,
		gateway:    gateway,
		logger:     logger,
		locker:     opts.Locker,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		requireSig: opts.RequireWebhookSignature,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Payer identifies who is funding their wallet.
type Payer struct {
	OwnerID string
	Email   string
}

// InitializeDeposit opens, or resumes, a deposit at the gateway. An empty
// AuthorizationURL means a resumed deposit was already paid and is now credited.
func (s *Service) InitializeDeposit(ctx context.Context, payer Payer, amount int64) (Initialized, error) {
	const op = "funding.initialize"

	if amount < MinDepositAmount || amount > MaxDepositAmount {
		return Initialized{}, apperr.Invalid(op, fmt.Sprintf("amount must be between %d and %d", MinDepositAmount, MaxDepositAmount))
	}
	wallet, err := s.store.WalletByOwner(ctx, payer.OwnerID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Initialized{}, apperr.Missing(op, "wallet")
		}
		return Initialized{}, apperr.Internalf(op, err)
	}
	if !wallet.Active {
		return Initialized{}, apperr.State(op, "wallet is not active")
	}

	release, err := s.locker.Acquire(ctx, "deposit:init:"+payer.OwnerID, initLockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return Initialized{}, apperr.State(op, "a deposit is already being initialized")
		}
		return Initialized{}, apperr.Internalf(op, err)
	}
	defer release()

	now := s.now()
	pending, err := s.store.LatestPendingDeposit(ctx, payer.OwnerID, now.Add(-PendingReuseWindow))
	switch {
	case err == nil:
		return s.resume(ctx, payer, pending, amount)
	case !errors.Is(err, ledger.ErrNotFound):
		return Initialized{}, apperr.Internalf(op, err)
	}

	txn := ledger.Transaction{
		ID:                    uuid.NewString(),
		Reference:             ledger.NewReference(ledger.DepositReferencePrefix, now),
		OwnerID:               payer.OwnerID,
		WalletID:              wallet.ID,
		Type:                  ledger.TypeDeposit,
		Status:                ledger.StatusPending,
		Direction:             ledger.DirectionCredit,
		Amount:                amount,
		RecipientWalletNumber: wallet.WalletNumber,
		Metadata:              map[string]any{"email": payer.Email},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return Initialized{}, apperr.Internalf(op, err)
	}

	init, err := s.gateway.Initialize(ctx, payer.Email, amount, gatewayMetadata(payer.OwnerID, txn.ID))
	if err != nil {
		if ferr := s.store.FailPending(context.WithoutCancel(ctx), txn.ID); ferr != nil {
			s.logger.Error("deposit.fail_pending", slog.String("transaction_id", txn.ID), slog.String("error", ferr.Error()))
		}
		s.metrics.Deposit("gateway_failed", amount)
		return Initialized{}, apperr.Gateway(op, err)
	}
	reference := init.Reference
	if reference == "" {
		reference = txn.Reference
	}
	if err := s.store.RepointPending(ctx, txn.ID, reference, amount); err != nil {
		return Initialized{}, repointErr(op, err)
	}

	s.metrics.Deposit("initialized", amount)
	s.logger.Info("deposit.initialized",
		slog.String("owner_id", payer.OwnerID),
		slog.String("reference", reference),
		slog.Int64("amount", amount),
	)
	return Initialized{Reference: reference, AuthorizationURL: init.AuthorizationURL}, nil
}

// resume re-verifies a recent pending deposit and either completes it or
// points it at a fresh gateway payment for the requested amount.
func (s *Service) resume(ctx context.Context, payer Payer, pending ledger.Transaction, amount int64) (Initialized, error) {
	const op = "funding.initialize"

	if v := s.gateway.Verify(ctx, pending.Reference); v.Succeeded {
		if _, err := s.complete(ctx, pending.Reference, v.Amount); err != nil {
			return Initialized{}, err
		}
		return Initialized{Reference: pending.Reference}, nil
	}

	init, err := s.gateway.Initialize(ctx, payer.Email, amount, gatewayMetadata(payer.OwnerID, pending.ID))
	if err != nil {
		return Initialized{}, apperr.Gateway(op, err)
	}
	reference := init.Reference
	if reference == "" {
		reference = pending.Reference
	}
	if err := s.store.RepointPending(ctx, pending.ID, reference, amount); err != nil {
		return Initialized{}, repointErr(op, err)
	}
	s.metrics.Deposit("resumed", amount)
	s.logger.Info("deposit.resumed",
		slog.String("owner_id", payer.OwnerID),
		slog.String("previous_reference", pending.Reference),
		slog.String("reference", reference),
		slog.Int64("amount", amount),
	)
	return Initialized{Reference: reference, AuthorizationURL: init.AuthorizationURL}, nil
}

// CompleteDeposit credits a pending deposit exactly once. Completing an
// already successful deposit is a no-op.
func (s *Service) CompleteDeposit(ctx context.Context, reference string) (ledger.Transaction, error) {
	return s.complete(ctx, reference, 0)
}

// complete runs the pending->success transition under the transaction's row
// lock. A positive verified amount must equal the recorded amount.
func (s *Service) complete(ctx context.Context, reference string, verified int64) (ledger.Transaction, error) {
	const op = "funding.complete"

	var (
		result   ledger.Transaction
		wallet   ledger.Wallet
		credited bool
	)
	err := s.store.Atomically(ctx, func(ctx context.Context, tx ledger.Tx) error {
		txn, err := tx.LockTransaction(ctx, reference)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperr.Missing(op, "transaction")
			}
			return apperr.Internalf(op, err)
		}
		if txn.Type != ledger.TypeDeposit {
			return apperr.State(op, "transaction is not a deposit")
		}
		switch txn.Status {
		case ledger.StatusSuccess:
			result = txn
			return nil
		case ledger.StatusFailed:
			return apperr.State(op, "deposit has already failed")
		}
		if verified > 0 && verified != txn.Amount {
			return apperr.State(op, "verified amount does not match the deposit")
		}

		if _, err := tx.LockWallets(ctx, txn.WalletID); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperr.Missing(op, "wallet")
			}
			return apperr.Internalf(op, err)
		}
		if err := tx.SetStatus(ctx, txn.ID, ledger.StatusPending, ledger.StatusSuccess); err != nil {
			if errors.Is(err, ledger.ErrStatusConflict) {
				return apperr.State(op, "deposit status changed concurrently")
			}
			return apperr.Internalf(op, err)
		}
		w, err := tx.AdjustBalance(ctx, txn.WalletID, txn.Amount)
		if err != nil {
			return apperr.Internalf(op, err)
		}
		txn.Status = ledger.StatusSuccess
		result, wallet, credited = txn, w, true
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	if credited {
		s.metrics.Deposit("completed", result.Amount)
		s.logger.Info("deposit.completed",
			slog.String("owner_id", result.OwnerID),
			slog.String("reference", result.Reference),
			slog.Int64("amount", result.Amount),
			slog.Int64("balance", wallet.Balance),
		)
		notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
			Kind:        notification.KindDepositCredited,
			OwnerID:     result.OwnerID,
			Destination: wallet.WalletNumber,
			Reference:   result.Reference,
			Body:        fmt.Sprintf("Your wallet was credited with NGN %s", ledger.MajorUnits(result.Amount).StringFixed(2)),
		})
	}
	return result, nil
}

// HandleCallback settles a deposit when the payer is redirected back from checkout.
func (s *Service) HandleCallback(ctx context.Context, reference string) (CallbackResult, error) {
	const op = "funding.callback"

	if reference == "" {
		return CallbackResult{}, apperr.Invalid(op, "No transaction reference provided")
	}
	v := s.gateway.Verify(ctx, reference)
	if !v.Succeeded {
		return CallbackResult{Completed: false, Verification: v}, nil
	}
	if _, err := s.complete(ctx, reference, v.Amount); err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{Completed: true, Verification: v}, nil
}

// HandleWebhook processes a gateway event. Only charge.success drives
// completion, and only after the payment re-verifies at the gateway.
// Events that cannot be acted upon are acknowledged without error.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte, signature string) error {
	const op = "funding.webhook"

	if s.requireSig && !s.gateway.VerifyWebhookSignature(raw, signature) {
		s.metrics.Deposit("webhook_rejected", 0)
		return apperr.Invalid(op, "Invalid webhook signature")
	}
	ev, err := paystack.ParseEvent(raw)
	if err != nil {
		return apperr.Invalid(op, "invalid webhook payload")
	}
	if ev.Event != paystack.EventChargeSuccess {
		s.logger.Info("deposit.webhook.ignored", slog.String("event", ev.Event))
		return nil
	}
	if ev.Data.Reference == "" {
		s.logger.Warn("deposit.webhook.no_reference")
		return nil
	}

	v := s.gateway.Verify(ctx, ev.Data.Reference)
	if !v.Succeeded {
		s.logger.Warn("deposit.webhook.unverified", slog.String("reference", ev.Data.Reference), slog.String("status", v.Status))
		return nil
	}
	if _, err := s.complete(ctx, ev.Data.Reference, v.Amount); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			s.logger.Warn("deposit.webhook.unknown_reference", slog.String("reference", ev.Data.Reference))
			return nil
		}
		// A redelivery cannot change the outcome; the record stays pending
		// for manual reconciliation.
		if apperr.Is(err, apperr.InvalidState) {
			s.logger.Warn("deposit.webhook.unreconciled",
				slog.String("reference", ev.Data.Reference),
				slog.Int64("verified_amount", v.Amount),
				slog.String("reason", apperr.MessageOf(err)),
			)
			return nil
		}
		return err
	}
	return nil
}

// VerifyDepositStatus reports the local record of the caller's deposit next
// to a live gateway verification.
func (s *Service) VerifyDepositStatus(ctx context.Context, reference, ownerID string) (DepositStatus, error) {
	const op = "funding.status"

	txn, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return DepositStatus{}, apperr.Missing(op, "transaction")
		}
		return DepositStatus{}, apperr.Internalf(op, err)
	}
	if txn.OwnerID != ownerID || txn.Type != ledger.TypeDeposit {
		return DepositStatus{}, apperr.Missing(op, "transaction")
	}

	v := s.gateway.Verify(ctx, reference)
	verified := "failed"
	if v.Succeeded {
		verified = "success"
	}
	return DepositStatus{
		Reference:      txn.Reference,
		Status:         txn.Status,
		Amount:         txn.Amount,
		VerifiedStatus: verified,
		CreatedAt:      txn.CreatedAt,
		Gateway:        v,
	}, nil
}

func gatewayMetadata(ownerID, transactionID string) map[string]any {
	return map[string]any{
		"userId":        ownerID,
		"transactionId": transactionID,
		"custom_fields": []map[string]any{{
			"display_name":  "User ID",
			"variable_name": "user_id",
			"value":         ownerID,
		}},
	}
}

func repointErr(op string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrStatusConflict):
		return apperr.State(op, "deposit is no longer pending")
	case errors.Is(err, ledger.ErrDuplicateReference):
		return apperr.State(op, "gateway reference is already recorded")
	default:
		return apperr.Internalf(op, err)
	}
}
