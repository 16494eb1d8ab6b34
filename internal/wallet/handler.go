package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/authz"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Details returns the caller's wallet and recent activity.
func (h *Handler) Details(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	out, err := h.service.Details(c.UserContext(), p.OwnerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns the caller's wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	out, err := h.service.Balance(c.UserContext(), p.OwnerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Transactions returns a page of the caller's history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	out, err := h.service.History(c.UserContext(), p.OwnerID, HistoryQuery{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", DefaultPageSize),
		Type:   c.Query("type"),
		Status: c.Query("status"),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(out)
}
