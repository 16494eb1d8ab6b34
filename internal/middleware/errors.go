package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/naira-wallet/wallet_service/internal/apperr"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler renders every failure as {"error": {"code", "message"}}.
// Internal failures are logged and reported without detail.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := RequestIDFrom(c)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": errorBody{
				Code:      fiberCode(fe.Code),
				Message:   fe.Message,
				RequestID: requestID,
			}})
		}

		code := apperr.CodeOf(err)
		if code == apperr.Internal {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
		}
		return c.Status(apperr.HTTPStatus(code)).JSON(fiber.Map{"error": errorBody{
			Code:      string(code),
			Message:   apperr.MessageOf(err),
			RequestID: requestID,
		}})
	}
}

func fiberCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return string(apperr.InvalidArgument)
	case http.StatusUnauthorized:
		return string(apperr.Unauthorized)
	case http.StatusForbidden:
		return string(apperr.Forbidden)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return string(apperr.NotFound)
	case http.StatusConflict:
		return string(apperr.InvalidState)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if status >= http.StatusInternalServerError {
		return string(apperr.Internal)
	}
	return string(apperr.InvalidArgument)
}
