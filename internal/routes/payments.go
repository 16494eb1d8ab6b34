package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/payments"
)

func paymentRoutes(h *payments.Handler, idem fiber.Handler) []route {
	return []route{
		{method: fiber.MethodPost, path: "/wallet/transfer", access: keyOrBearer, perms: []authz.Permission{authz.Transfer}, handlers: []fiber.Handler{idem, h.Transfer}},
	}
}
