package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MaxIdempotencyKeyLength bounds the Idempotency-Key header.
const MaxIdempotencyKeyLength = 255

// IdempotencyKey rejects requests whose Idempotency-Key header is too long or
// contains characters outside printable ASCII.
func IdempotencyKey(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(header)
			if key == "" {
				return next(c)
			}
			if len(key) > MaxIdempotencyKeyLength {
				return echo.NewHTTPError(http.StatusBadRequest, "idempotency key too long")
			}
			for i := 0; i < len(key); i++ {
				if key[i] < 0x21 || key[i] > 0x7e {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid idempotency key")
				}
			}
			return next(c)
		}
	}
}
