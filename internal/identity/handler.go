package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/authz"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Me returns the caller's profile and how they authenticated.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.UserContext(), p.OwnerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user":        user,
		"auth_method": p.Method,
		"permissions": p.Permissions,
	})
}
