package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	WalletNumber string `json:"wallet_number"`
	Amount       int64  `json:"amount"`
}

// Transfer moves funds from the caller's wallet to another wallet number.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Invalid("payments.transfer", "invalid request body")
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		Sender:                Sender{OwnerID: p.OwnerID, Email: p.Email, Name: p.FullName()},
		RecipientWalletNumber: req.WalletNumber,
		Amount:                req.Amount,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":        "success",
		"message":       "Transfer completed successfully",
		"transactionId": res.TransactionID,
		"reference":     res.Reference,
		"balance":       res.SenderBalance,
	})
}
