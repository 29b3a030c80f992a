package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AuthHandler exposes registration and session endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler builds the handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password, req.Role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

// Login authenticates and returns a bearer token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		return err
	}

	user, token, expiresAt, err := h.authService.Login(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{
		User:      dto.NewUserResponse(user),
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// Logout ends the session. Tokens are stateless so this is advisory.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.authService.Logout(c.Context(), identity.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.UserResponse{ID: identity.ID, Email: identity.Email, Role: identity.Role})
}

func validateCredentials(email, password string) error {
	details := map[string]any{}
	if !strings.Contains(email, "@") {
		details["email"] = "must be a valid email address"
	}
	if len(password) < 6 {
		details["password"] = "must be at least 6 characters"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid credentials payload", details)
	}
	return nil
}
