package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/identity"
)

// Handler exposes the development sign-in endpoint that stands in for the
// federated provider's callback.
type Handler struct {
	ids    *identity.Service
	tokens *Tokens
}

// NewHandler builds the sign-in handler.
func NewHandler(ids *identity.Service, tokens *Tokens) *Handler {
	return &Handler{ids: ids, tokens: tokens}
}

type onboardRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type onboardResponse struct {
	User         identity.User `json:"user"`
	WalletNumber string        `json:"wallet_number"`
	AccessToken  string        `json:"access_token"`
	ExpiresAt    int64         `json:"expires_at"`
}

// Onboard signs in (creating the user and wallet when new) and returns a bearer token.
func (h *Handler) Onboard(c *fiber.Ctx) error {
	var req onboardRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Invalid("auth.onboard", "invalid request body")
	}
	out, err := h.ids.Onboard(c.UserContext(), identity.Profile{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		return err
	}
	token, exp, err := h.tokens.Issue(out.User)
	if err != nil {
		return apperr.Internalf("auth.onboard", err)
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(onboardResponse{
		User:         out.User,
		WalletNumber: out.Wallet.WalletNumber,
		AccessToken:  token,
		ExpiresAt:    exp.Unix(),
	})
}
