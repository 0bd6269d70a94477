package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/librarydesk/lending-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   string                  `json:"error"`
	Details []domain.FieldViolation `json:"details,omitempty"`
}

// knownErrors maps domain sentinels to status codes. The sentinel's own text
// is the client message, so wrapping context never leaks.
var knownErrors = []struct {
	err  error
	code int
}{
	{domain.ErrBookNotFound, http.StatusNotFound},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrLoanNotFound, http.StatusNotFound},
	{domain.ErrDuplicateISBN, http.StatusConflict},
	{domain.ErrDuplicateEmail, http.StatusConflict},
	{domain.ErrBookUnavailable, http.StatusConflict},
	{domain.ErrLoanAlreadyReturned, http.StatusConflict},
	{domain.ErrBookOnLoan, http.StatusConflict},
	{domain.ErrUserHasLoans, http.StatusConflict},
	{domain.ErrIdempotencyKeyBusy, http.StatusConflict},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp, code := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (errorResponse, int) {
	// Echo's own errors (bind failures, 404 from router, request validation).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return errorResponse{Error: fmt.Sprintf("%v", he.Message)}, he.Code
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return errorResponse{Error: ve.Error(), Details: ve.Violations}, http.StatusBadRequest
	}

	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			return errorResponse{Error: k.err.Error()}, k.code
		}
	}

	// Category fallbacks for sentinels added later.
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errorResponse{Error: "not found"}, http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return errorResponse{Error: "conflict"}, http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse{Error: "request timed out"}, http.StatusServiceUnavailable
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return errorResponse{Error: "internal server error"}, http.StatusInternalServerError
}
