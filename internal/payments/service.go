package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/identity"
	"github.com/naira-wallet/wallet_service/internal/ledger"
	"github.com/naira-wallet/wallet_service/internal/metrics"
	"github.com/naira-wallet/wallet_service/internal/notification"
)

const (
	// MaxTransferAmount caps a single transfer, in kobo.
	MaxTransferAmount int64 = 10_000_000
	// DailyTransferLimit caps an owner's successful outgoing transfers per calendar day.
	DailyTransferLimit int64 = 1_000_000
)

// Profiles resolves the display details of a wallet owner.
type Profiles interface {
	Get(ctx context.Context, id string) (identity.User, error)
}

// Options carries the optional collaborators of the service.
type Options struct {
	Notifier notification.Notifier
	Metrics  *metrics.Collector
	// Location defines the calendar day of the daily limit. Defaults to time.Local.
	Location *time.Location
}

// Service moves funds between wallets.
type Service struct {
	store    ledger.Store
	profiles Profiles
	logger   *slog.Logger
	notifier notification.Notifier
	metrics  *metrics.Collector
	location *time.Location
	now      func() time.Time
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, profiles Profiles, logger *slog.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		store:    store,
		profiles: profiles,
		logger:   logger,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		location: opts.Location,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sender identifies the authenticated owner paying out.
type Sender struct {
	OwnerID string
	Email   string
	Name    string
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	Sender                Sender
	RecipientWalletNumber string
	Amount                int64
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	TransactionID         string
	Reference             string
	Amount                int64
	SenderBalance         int64
	RecipientWalletNumber string
	CompletedAt           time.Time
}

type party struct {
	name  string
	email string
}

// Transfer debits the sender and credits the recipient in one atomic unit,
// recording a debit row for the sender and a credit row for the recipient.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	res, err := s.transfer(ctx, in)
	if err != nil {
		s.metrics.Transfer(string(apperr.CodeOf(err)), in.Amount)
		return TransferResult{}, err
	}
	s.metrics.Transfer("success", in.Amount)
	return res, nil
}

func (s *Service) transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	const op = "payments.transfer"

	if in.Amount <= 0 || in.Amount > MaxTransferAmount {
		return TransferResult{}, apperr.Invalid(op, fmt.Sprintf("amount must be between 1 and %d", MaxTransferAmount))
	}
	number := strings.TrimSpace(in.RecipientWalletNumber)
	if number == "" {
		return TransferResult{}, apperr.Invalid(op, "recipient wallet number is required")
	}

	recipientParty := s.lookupParty(ctx, number)
	now := s.now()
	dayStart := startOfDay(now, s.location)
	suffix := ledger.NewReferenceSuffix(now)

	var (
		result        TransferResult
		sender        ledger.Wallet
		recipient     ledger.Wallet
		recipientLeft int64
	)
	err := s.store.Atomically(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		sender, err = tx.WalletByOwner(ctx, in.Sender.OwnerID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperr.Missing(op, "wallet")
			}
			return apperr.Internalf(op, err)
		}
		var recipientErr error
		recipient, recipientErr = tx.WalletByNumber(ctx, number)

		ids := []string{sender.ID}
		if recipientErr == nil && recipient.ID != sender.ID {
			ids = append(ids, recipient.ID)
		}
		locked, err := tx.LockWallets(ctx, ids...)
		if err != nil {
			return apperr.Internalf(op, err)
		}
		sender = locked[sender.ID]
		if !sender.Active {
			return apperr.State(op, "wallet is not active")
		}
		if sender.Balance < in.Amount {
			return apperr.New(apperr.InsufficientFunds, op, "Insufficient balance")
		}

		spent, err := tx.TransferVolume(ctx, sender.OwnerID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return apperr.Internalf(op, err)
		}
		if spent+in.Amount > DailyTransferLimit {
			return apperr.Limit(op, fmt.Sprintf("Daily transfer limit of %d exceeded", DailyTransferLimit))
		}

		if recipientErr != nil {
			if errors.Is(recipientErr, ledger.ErrNotFound) {
				return apperr.Missing(op, "recipient wallet")
			}
			return apperr.Internalf(op, recipientErr)
		}
		if recipient.WalletNumber == sender.WalletNumber {
			return apperr.New(apperr.SelfTransfer, op, "Cannot transfer to your own wallet")
		}
		recipient = locked[recipient.ID]
		if !recipient.Active {
			return apperr.State(op, "recipient wallet is not active")
		}

		debited, err := tx.AdjustBalance(ctx, sender.ID, -in.Amount)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return apperr.New(apperr.InsufficientFunds, op, "Insufficient balance")
			}
			return apperr.Internalf(op, err)
		}
		credited, err := tx.AdjustBalance(ctx, recipient.ID, in.Amount)
		if err != nil {
			return apperr.Internalf(op, err)
		}

		stamp := now.Format(time.RFC3339)
		debit := ledger.Transaction{
			ID:                    uuid.NewString(),
			Reference:             ledger.TransferReferencePrefix + "_" + suffix,
			OwnerID:               sender.OwnerID,
			WalletID:              sender.ID,
			Type:                  ledger.TypeTransfer,
			Status:                ledger.StatusSuccess,
			Direction:             ledger.DirectionDebit,
			Amount:                in.Amount,
			SenderWalletNumber:    sender.WalletNumber,
			RecipientWalletNumber: recipient.WalletNumber,
			Metadata: map[string]any{
				"recipientEmail": recipientParty.email,
				"recipientName":  recipientParty.name,
				"timestamp":      stamp,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		credit := ledger.Transaction{
			ID:                    uuid.NewString(),
			Reference:             ledger.TransferInReferencePrefix + "_" + suffix,
			OwnerID:               recipient.OwnerID,
			WalletID:              recipient.ID,
			Type:                  ledger.TypeTransfer,
			Status:                ledger.StatusSuccess,
			Direction:             ledger.DirectionCredit,
			Amount:                in.Amount,
			SenderWalletNumber:    sender.WalletNumber,
			RecipientWalletNumber: recipient.WalletNumber,
			Metadata: map[string]any{
				"senderEmail": in.Sender.Email,
				"senderName":  in.Sender.Name,
				"timestamp":   stamp,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertTransaction(ctx, debit); err != nil {
			return apperr.Internalf(op, err)
		}
		if err := tx.InsertTransaction(ctx, credit); err != nil {
			return apperr.Internalf(op, err)
		}

		recipientLeft = credited.Balance
		result = TransferResult{
			TransactionID:         debit.ID,
			Reference:             debit.Reference,
			Amount:                in.Amount,
			SenderBalance:         debited.Balance,
			RecipientWalletNumber: recipient.WalletNumber,
			CompletedAt:           now,
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.logger.Info("transfer.completed",
		slog.String("reference", result.Reference),
		slog.String("sender_wallet", sender.WalletNumber),
		slog.String("recipient_wallet", recipient.WalletNumber),
		slog.Int64("amount", in.Amount),
		slog.Int64("sender_balance", result.SenderBalance),
		slog.Int64("recipient_balance", recipientLeft),
	)
	amount := ledger.MajorUnits(in.Amount).StringFixed(2)
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindTransferReceived,
		OwnerID:     recipient.OwnerID,
		Destination: recipient.WalletNumber,
		Reference:   ledger.TransferInReferencePrefix + "_" + suffix,
		Body:        fmt.Sprintf("You received NGN %s from wallet %s", amount, sender.WalletNumber),
	})
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindTransferSent,
		OwnerID:     sender.OwnerID,
		Destination: sender.WalletNumber,
		Reference:   result.Reference,
		Body:        fmt.Sprintf("You sent NGN %s to wallet %s", amount, recipient.WalletNumber),
	})
	return result, nil
}

// lookupParty resolves the recipient's name and email for the transfer
// metadata. Missing details leave the fields empty; the transfer itself
// re-reads the wallet under lock.
func (s *Service) lookupParty(ctx context.Context, walletNumber string) party {
	if s.profiles == nil {
		return party{}
	}
	wallet, err := s.store.WalletByNumber(ctx, walletNumber)
	if err != nil {
		return party{}
	}
	user, err := s.profiles.Get(ctx, wallet.OwnerID)
	if err != nil {
		s.logger.Warn("transfer.recipient_profile", slog.String("owner_id", wallet.OwnerID), slog.String("error", err.Error()))
		return party{}
	}
	return party{name: strings.TrimSpace(user.FirstName + " " + user.LastName), email: user.Email}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
