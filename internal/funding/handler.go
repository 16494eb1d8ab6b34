package funding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/paystack"
)

// Handler exposes HTTP endpoints for wallet deposits.
type Handler struct {
	service *Service
}

// NewHandler constructs a deposit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Initialize starts a deposit for the caller.
func (h *Handler) Initialize(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Invalid("funding.initialize", "invalid request body")
	}
	out, err := h.service.InitializeDeposit(c.UserContext(), Payer{OwnerID: p.OwnerID, Email: p.Email}, req.Amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(out)
}

// Status reports a deposit of the caller by reference.
func (h *Handler) Status(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	out, err := h.service.VerifyDepositStatus(c.UserContext(), c.Params("reference"), p.OwnerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Callback handles the checkout redirect. The gateway sends the reference
// as either "reference" or "trxref".
func (h *Handler) Callback(c *fiber.Ctx) error {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	out, err := h.service.HandleCallback(c.UserContext(), reference)
	if err != nil {
		return c.Status(apperr.HTTPStatus(apperr.CodeOf(err))).JSON(fiber.Map{
			"status":  "error",
			"message": apperr.MessageOf(err),
		})
	}
	if !out.Completed {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":  "failed",
			"message": "Payment verification failed",
			"data":    out.Verification,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Deposit completed successfully",
		"data":    out.Verification,
	})
}

// Webhook receives gateway events. The raw body is what the signature covers.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)
	if err := h.service.HandleWebhook(c.UserContext(), raw, c.Get(paystack.SignatureHeader)); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": true})
}
