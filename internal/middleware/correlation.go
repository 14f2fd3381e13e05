package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/openpayflow/orchestrator/internal/corrid"
)

// HeaderRequestID is read from an inbound request, or generated when
// absent, and echoed back on the response so a caller can correlate a
// 500 response with server-side logs.
const HeaderRequestID = "X-Request-Id"

// CorrelationID assigns c.Get("correlationId") for handlers and the
// error handler to read.
func CorrelationID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(HeaderRequestID)
		if id == "" {
			id = corrid.New()
		}
		c.Set("correlationId", id)
		c.Response().Header().Set(HeaderRequestID, id)
		return next(c)
	}
}
