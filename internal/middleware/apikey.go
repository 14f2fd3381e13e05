package middleware

import "github.com/labstack/echo/v4"

// MerchantAPIKey reads merchantApiKey wherever spec.md §6 places it for a
// given endpoint: JSON body field, else query param. Handlers
// call this after binding the body so a POST body field wins over a
// same-named query param.
func MerchantAPIKey(c echo.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.QueryParam("merchantApiKey")
}
