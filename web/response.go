package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-dashboard-auth"
)

// Envelope is the {data, error} shape every endpoint returns
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody carries the human readable message and the text code
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Data: data})
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(Envelope{
		Error: &ErrorBody{
			Message: auth.UserMessage(err),
			Code:    auth.ErrorCode(err),
		},
	})
}

// StatusFor maps an error text code onto an HTTP status
func StatusFor(err error) int {
	if errors.Is(err, auth.ErrNoIdentity) {
		return fiber.StatusUnauthorized
	}

	switch auth.ErrorCode(err) {
	case auth.TextCodeInvalidCredentials:
		return fiber.StatusUnauthorized
	case auth.TextCodeRateLimited:
		return fiber.StatusTooManyRequests
	case auth.TextCodeEmailInUse:
		return fiber.StatusConflict
	case auth.TextCodeInvalidInput:
		return fiber.StatusBadRequest
	case auth.TextCodeProviderUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
