package handlers

import (
	"strings"
	"time"

	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/config"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		cfg:         cfg,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest carries the refresh token for clients that do not keep cookies
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents change password request body
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Login handles user login
// @Summary Login user
// @Description Authenticate user and return tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Username == "" {
		return response.BadRequest(c, "Username is required")
	}
	if req.Password == "" {
		return response.BadRequest(c, "Password is required")
	}

	result, err := h.authService.Login(c.Context(), &services.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		return fail(c, err, "Failed to login")
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return response.Success(c, "Login successful", result)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Description Rotate the refresh token (cookie or body) and issue a new access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token when not sent as cookie"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := h.refreshTokenFrom(c)
	if refreshToken == "" {
		return response.Unauthorized(c, "Refresh token not found")
	}

	result, err := h.authService.RefreshToken(c.Context(), refreshToken)
	if err != nil {
		h.clearAuthCookies(c)
		return fail(c, err, "Failed to refresh token")
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return response.Success(c, "Token refreshed successfully", result)
}

// Logout handles user logout
// @Summary Logout user
// @Description Logout user and revoke refresh token
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := h.refreshTokenFrom(c); refreshToken != "" {
		_ = h.authService.Logout(c.Context(), refreshToken)
	}

	h.clearAuthCookies(c)
	return response.Success(c, "Logged out successfully", nil)
}

// LogoutAll handles logout from all devices
// @Summary Logout from all devices
// @Description Revoke all refresh tokens for the user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.authService.LogoutAll(c.Context(), actor.ID); err != nil {
		return fail(c, err, "Failed to logout from all devices")
	}

	h.clearAuthCookies(c)
	return response.Success(c, "Logged out from all devices", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Description Get the currently authenticated user's information
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.authService.Me(c.Context(), actor.ID)
	if err != nil {
		return fail(c, err, "Failed to get user")
	}

	return response.Success(c, "User retrieved successfully", user)
}

// ChangePassword changes the caller's own password
// @Summary Change password
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ChangePasswordRequest true "Old and new password"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	err := h.userService.ChangePassword(c.Context(), actor.ID, &services.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return fail(c, err, "Failed to change password")
	}

	// every session must log in again with the new password
	_ = h.authService.LogoutAll(c.Context(), actor.ID)
	h.clearAuthCookies(c)
	return response.Success(c, "Password changed, please login again", nil)
}

func (h *AuthHandler) refreshTokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies("refresh_token"); token != "" {
		return token
	}
	var req RefreshRequest
	if len(c.Body()) > 0 && c.BodyParser(&req) == nil {
		return req.RefreshToken
	}
	return ""
}

// setAuthCookies sets access and refresh token cookies
func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   h.cfg.JWT.AccessTokenMins * 60,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})

	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/api/v1/auth",
		MaxAge:   h.cfg.JWT.RefreshTokenDays * 24 * 60 * 60,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})
}

// clearAuthCookies clears auth cookies
func (h *AuthHandler) clearAuthCookies(c *fiber.Ctx) {
	for name, path := range map[string]string{"access_token": "/", "refresh_token": "/api/v1/auth"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			Expires:  time.Now().Add(-1 * time.Hour),
			Secure:   h.cfg.Cookie.Secure,
			HTTPOnly: true,
			SameSite: h.cfg.Cookie.SameSite,
			Domain:   h.cfg.Cookie.Domain,
		})
	}
}
