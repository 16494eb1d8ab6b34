package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apikey"
)

// keyRoutes manage API keys. Only the owner's own identity may do so.
func keyRoutes(h *apikey.Handler) []route {
	return []route{
		{method: fiber.MethodPost, path: "/keys/create", access: bearerOnly, handlers: []fiber.Handler{h.Create}},
		{method: fiber.MethodPost, path: "/keys/rollover", access: bearerOnly, handlers: []fiber.Handler{h.Rollover}},
		{method: fiber.MethodGet, path: "/keys", access: bearerOnly, handlers: []fiber.Handler{h.List}},
		{method: fiber.MethodDelete, path: "/keys/:id", access: bearerOnly, handlers: []fiber.Handler{h.Revoke}},
	}
}
