package middleware

// identity.go holds the helpers that read the authenticated user back out of
// the Echo context.  The rate limiter and the response cache both key on it.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// CurrentUser returns the user stored by JWTAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ContextUser).(model.User)
	return u, ok
}

// userKey returns the authenticated user id as a string, or "anon" when the
// request has not been through JWTAuth.
func userKey(c echo.Context) string {
	if id, ok := c.Get(ContextUserID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
