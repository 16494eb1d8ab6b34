package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/wallet"
)

func walletRoutes(h *wallet.Handler) []route {
	read := []authz.Permission{authz.Read}
	return []route{
		{method: fiber.MethodGet, path: "/wallet", access: keyOrBearer, perms: read, handlers: []fiber.Handler{h.Details}},
		{method: fiber.MethodGet, path: "/wallet/balance", access: keyOrBearer, perms: read, handlers: []fiber.Handler{h.Balance}},
		{method: fiber.MethodGet, path: "/wallet/transactions", access: keyOrBearer, perms: read, handlers: []fiber.Handler{h.Transactions}},
	}
}
