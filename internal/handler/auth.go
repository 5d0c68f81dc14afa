package handler

import (
	"context"  // provides context with cancellation for DB calls
	"errors"   // errors.Is / errors.As on repository and validation errors
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/movie-catalog/internal/config"     // app configuration
	"github.com/iliyamo/movie-catalog/internal/logging"    // request scoped logger
	"github.com/iliyamo/movie-catalog/internal/middleware" // CurrentUser
	"github.com/iliyamo/movie-catalog/internal/model"      // user record
	"github.com/iliyamo/movie-catalog/internal/repository" // sentinel errors
	"github.com/iliyamo/movie-catalog/internal/utils"      // token issuing and password checks
	"github.com/iliyamo/movie-catalog/internal/validation" // request validation
)

// UserStore is the user persistence used by AuthHandler.
type UserStore interface {
	Create(ctx context.Context, email, name, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore keeps hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

// Fields are validated in declaration order and only the first failure is
// reported, so the order below decides which message a client sees.
type registerReq struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Name            string `json:"name" validate:"max=255"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
	Password        string `json:"password" validate:"required"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResp struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Status       int    `json:"status"`
}

// registerMessage maps the first rejected field to its client message.
func registerMessage(err error) string {
	var ve *validation.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) == 0 {
		return "Error while registering user"
	}
	switch ve.Fields[0].Field {
	case "email":
		return "Email must be valid"
	case "confirmPassword":
		return "Passwords do not match."
	case "password":
		return "Password must be a string"
	case "name":
		return "Name is too long"
	}
	return "Error while registering user"
}

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Error while registering user", err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return fail(c, http.StatusBadRequest, registerMessage(err), err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Name, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusBadRequest, "User with this email already exists", nil)
		}
		logging.Ctx(ctx).Error().Err(err).Msg("create user")
		return fail(c, http.StatusInternalServerError, "Error while registering user", nil)
	}

	resp, err := h.issueTokens(ctx, uid, req.Email)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Error while registering user", nil)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid credentials", err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusNotFound, "User not found", nil)
		}
		logging.Ctx(ctx).Error().Err(err).Msg("load user by email")
		return fail(c, http.StatusInternalServerError, "Error while logging in", nil)
	}
	if req.Password == "" || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusBadRequest, "Invalid credentials", nil)
	}

	resp, err := h.issueTokens(ctx, u.ID, u.Email)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Error while logging in", nil)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required", nil)
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidRefresh) {
			logging.Ctx(ctx).Error().Err(err).Msg("validate refresh token")
		}
		return fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
	}
	// a concurrent refresh may already have revoked it
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
		}
		return fail(c, http.StatusInternalServerError, "Error while refreshing session", nil)
	}

	resp, err := h.issueTokens(ctx, u.ID, u.Email)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Error while refreshing session", nil)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes either one session or all of them.
func (h *AuthHandler) Logout(c echo.Context) error {
	// Two modes: a refresh_token in the body revokes that one session; a
	// valid bearer access token with no body token revokes every session of
	// its user.  The route is public so an expired access token does not
	// prevent logging out with a refresh token.
	var uid uint64
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		// An invalid bearer is ignored here; it only matters when no refresh
		// token was sent.
		if id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, rawToken); err == nil {
			uid = id
		}
	}

	// Invalid JSON simply leaves the refresh token empty.
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrInvalidRefresh) {
				return fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
			}
			return fail(c, http.StatusInternalServerError, "Error while logging out", nil)
		}
		return c.NoContent(http.StatusNoContent)
	}

	if uid != 0 {
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			logging.Ctx(ctx).Error().Err(err).Uint64("user_id", uid).Msg("revoke all refresh tokens")
			return fail(c, http.StatusInternalServerError, "Error while logging out", nil)
		}
		return c.NoContent(http.StatusNoContent)
	}

	if authHeader != "" {
		return fail(c, http.StatusUnauthorized, "Authentication error", nil)
	}
	return fail(c, http.StatusBadRequest, "Provide an Authorization header or refresh_token", nil)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Authentication error", nil)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":   echo.Map{"id": u.ID, "email": u.Email, "name": u.Name},
		"status": 1,
	})
}

// issueTokens signs an access token and stores a fresh refresh token.
func (h *AuthHandler) issueTokens(ctx context.Context, uid uint64, email string) (tokenResp, error) {
	log := logging.Ctx(ctx)
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, email, h.Cfg.AccessTTLMin)
	if err != nil {
		log.Error().Err(err).Msg("issue access token")
		return tokenResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		log.Error().Err(err).Msg("issue refresh token")
		return tokenResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		log.Error().Err(err).Uint64("user_id", uid).Msg("save refresh token")
		return tokenResp{}, err
	}
	return tokenResp{Token: access.Token, RefreshToken: refresh.Raw, Status: 1}, nil
}
