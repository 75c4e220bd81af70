package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"cryptvault-client/internal/codec"
	"cryptvault-client/internal/domain/fhe"
	"cryptvault-client/internal/domain/loan"
)

// statusFor maps use case errors to HTTP status codes. 5xx codes release the
// idempotency key so the client may retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, loan.ErrInvalidLoanParameters),
		errors.Is(err, fhe.ErrValueOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrWalletNotConnected):
		return http.StatusPreconditionFailed
	case errors.Is(err, fhe.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, loan.ErrTransactionReverted):
		return http.StatusConflict
	case errors.Is(err, loan.ErrEnvironmentNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, fhe.ErrProviderUnavailable),
		errors.Is(err, codec.ErrUnsupportedEncoding):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, err error) error {
	return c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}
