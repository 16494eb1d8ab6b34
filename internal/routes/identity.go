package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/auth"
	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/identity"
)

func identityRoutes(h *identity.Handler) []route {
	return []route{
		{method: fiber.MethodGet, path: "/me", access: keyOrBearer, perms: []authz.Permission{authz.Read}, handlers: []fiber.Handler{h.Me}},
	}
}

// onboardRoutes stand in for the federated sign-in callback outside production.
func onboardRoutes(h *auth.Handler, limit fiber.Handler) []route {
	return []route{
		{method: fiber.MethodPost, path: "/identity/onboard", access: public, handlers: []fiber.Handler{limit, h.Onboard}},
	}
}
