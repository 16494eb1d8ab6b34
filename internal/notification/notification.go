package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferReceived tells a recipient funds arrived.
	KindTransferReceived = "transfer_received"
	// KindTransferSent confirms an outgoing transfer to the sender.
	KindTransferSent = "transfer_sent"
	// KindDepositCredited tells an owner a deposit landed.
	KindDepositCredited = "deposit_credited"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	OwnerID     string
	Destination string
	Reference   string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger in place of a delivery channel.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("owner_id", message.OwnerID),
		slog.String("destination", message.Destination),
		slog.String("reference", message.Reference),
		slog.String("body", message.Body),
	)
	return nil
}

// Deliver sends message when n is set and logs, rather than returns, a
// delivery failure. Notifications never fail the ledger operation that
// produced them.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, message Message) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil && logger != nil {
		logger.Warn("notification.failed", slog.String("kind", message.Kind), slog.String("owner_id", message.OwnerID), slog.String("error", err.Error()))
	}
}
