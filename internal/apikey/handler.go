package apikey

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
)

// Handler exposes key management endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a key HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry"`
}

type rolloverRequest struct {
	ExpiredKeyID string `json:"expired_key_id"`
	Expiry       string `json:"expiry"`
}

// Create issues a new key for the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Invalid("apikey.create", "invalid request body")
	}
	out, err := h.service.CreateKey(c.UserContext(), p.OwnerID, CreateInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(out)
}

// Rollover replaces an expired key.
func (h *Handler) Rollover(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	var req rolloverRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Invalid("apikey.rollover", "invalid request body")
	}
	out, err := h.service.RolloverKey(c.UserContext(), p.OwnerID, RolloverInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(out)
}

// List returns the caller's keys.
func (h *Handler) List(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListKeys(c.UserContext(), p.OwnerID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(views)
}

// Revoke deactivates a key by id.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	p, err := authz.From(c)
	if err != nil {
		return err
	}
	key, err := h.service.RevokeKey(c.UserContext(), p.OwnerID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "API key revoked successfully",
		"id":      key.ID,
		"name":    key.Name,
	})
}
