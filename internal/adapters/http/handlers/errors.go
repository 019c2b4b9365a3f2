package handlers

import (
	"errors"
	"log"

	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// errorStatus maps a service error onto an HTTP status
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, services.ErrUserInactive):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenExpired),
		errors.Is(err, services.ErrTokenRevoked):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, services.ErrUserAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrWouldGoNegative),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrLoanNotApproved):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTenor),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, services.ErrOldPasswordWrong),
		errors.Is(err, services.ErrCannotDeleteSelf),
		errors.Is(err, services.ErrCannotChangeOwnRole):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// fail writes err in the response envelope. Unexpected errors are logged and
// replaced by fallback so internals never reach the client.
func fail(c *fiber.Ctx, err error, fallback string) error {
	status := errorStatus(err)
	switch status {
	case fiber.StatusInternalServerError:
		log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
		return response.InternalServerError(c, fallback)
	case fiber.StatusServiceUnavailable:
		log.Printf("⚠️ %s %s: %v", c.Method(), c.Path(), err)
		return response.ServiceUnavailable(c, "Ledger store is unavailable, try again later")
	}
	return response.Error(c, status, err.Error())
}

// unauthorized is returned by handlers reached without an authenticated caller
func unauthorized(c *fiber.Ctx) error {
	return response.Unauthorized(c, "Unauthorized")
}
