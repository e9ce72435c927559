package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"irisapi/internal/auth"
	"irisapi/internal/errors"
)

// IdentityContextKey is where the JWT middleware stores the verified *auth.Identity.
const IdentityContextKey = "identity"

// MessageResponse is returned by endpoints without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// identityFrom returns the identity set by the JWT middleware.
func identityFrom(c echo.Context) (*auth.Identity, error) {
	identity, ok := c.Get(IdentityContextKey).(*auth.Identity)
	if !ok || identity == nil {
		return nil, errorResponse(errors.ErrInvalidToken)
	}
	return identity, nil
}

// errorResponse converts a domain error into an echo HTTP error.
func errorResponse(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  string(errors.KindValidation),
	})
}
