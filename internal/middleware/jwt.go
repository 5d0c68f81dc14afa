package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"  // context for the user lookup
	"errors"   // errors.Is for repository sentinels
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/movie-catalog/internal/logging"    // request scoped logger
	"github.com/iliyamo/movie-catalog/internal/model"      // user record placed in the context
	"github.com/iliyamo/movie-catalog/internal/repository" // ErrUserNotFound
	"github.com/iliyamo/movie-catalog/internal/utils"      // access token verification
)

// Context keys set by JWTAuth.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
)

// UserLookup resolves a token subject to a stored user.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// loads the user it was issued to and stores it in the context under
// ContextUser (model.User) and ContextUserID (uint64).
//
// A request without a bearer token is refused with 403.  A token that does
// not verify, or whose user no longer exists, is refused with 401.
func JWTAuth(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "Authentication required"})
			}

			uid, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Authentication error"})
			}

			ctx := c.Request().Context()
			u, err := users.GetByID(ctx, uid)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"message": "User not found"})
				}
				logging.Ctx(ctx).Error().Err(err).Uint64("user_id", uid).Msg("load token user")
				return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Authentication error"})
			}

			c.Set(ContextUser, u)
			c.Set(ContextUserID, u.ID)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return raw, raw != ""
}
