package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/funding"
)

// fundingRoutes wires deposits. The callback and webhook are called by the
// gateway and carry no credentials; the webhook is signature gated instead.
func fundingRoutes(h *funding.Handler, idem, webhookLimit fiber.Handler) []route {
	return []route{
		{method: fiber.MethodPost, path: "/wallet/deposit", access: keyOrBearer, perms: []authz.Permission{authz.Deposit}, handlers: []fiber.Handler{idem, h.Initialize}},
		{method: fiber.MethodGet, path: "/wallet/deposit/callback", access: public, handlers: []fiber.Handler{h.Callback}},
		{method: fiber.MethodGet, path: "/wallet/deposit/:reference/status", access: keyOrBearer, perms: []authz.Permission{authz.Read}, handlers: []fiber.Handler{h.Status}},
		{method: fiber.MethodPost, path: "/wallet/paystack/webhook", access: public, handlers: []fiber.Handler{webhookLimit, h.Webhook}},
	}
}
