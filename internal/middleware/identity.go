package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// identityKey renders the authenticated user for rate-limit keys.  Public
// routes run without JWTAuth, so absence of a user is normal and keyed as
// "anon".
func identityKey(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(uint64); ok && v > 0 {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
