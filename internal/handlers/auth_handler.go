package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nullpass/nullpass/internal/dto"
	"github.com/nullpass/nullpass/internal/middleware"
	"github.com/nullpass/nullpass/internal/services"
	"github.com/nullpass/nullpass/internal/tenant"
)

type AuthHandler struct {
	authService    *services.AuthService
	sessionService *services.SessionService
}

func NewAuthHandler(authService *services.AuthService, sessionService *services.SessionService) *AuthHandler {
	return &AuthHandler{authService: authService, sessionService: sessionService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.TrimSpace(req.Email)

	resp, err := h.authService.Register(c.UserContext(), &req, middleware.ClientIP(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Email and password are required")
	}

	resp, err := h.authService.Login(c.UserContext(), &req, middleware.ClientIP(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

// Verify checks a token's signature and expiry for downstream services. The
// token comes from the body or, failing that, the bearer header.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyTokenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c)
		}
	}
	raw := req.Token
	if raw == "" {
		raw = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if raw == "" {
		return respondError(c, fiber.StatusBadRequest, "Token is required")
	}

	resp, err := h.authService.VerifyToken(raw)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	user, err := h.authService.Me(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.MeResponse{User: user})
}

// GetUser serves trusted services looking up any user by id.
func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	user, err := h.authService.GetUserInternal(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.MeResponse{User: user})
}

func (h *AuthHandler) TwoFactor(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.TwoFactorRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.authService.ToggleTwoFactor(c.UserContext(), userID, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.ChangePassword(c.UserContext(), userID, &req); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Message: "Password updated successfully"})
}

func (h *AuthHandler) DisableAccount(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.AccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.DisableAccount(c.UserContext(), userID, &req); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Message: "Account disabled successfully"})
}

func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.AccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.DeleteAccount(c.UserContext(), userID, &req); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Message: "Account deleted successfully"})
}

func (h *AuthHandler) ListSessions(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	sessions, err := h.sessionService.List(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SessionsResponse{Sessions: sessions})
}

// RevokeSessions deletes the session named by ?id=, or every session of the
// caller when no id is given.
func (h *AuthHandler) RevokeSessions(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	if raw := c.Query("id"); raw != "" {
		sessionID, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid session ID")
		}
		if err := h.sessionService.Revoke(c.UserContext(), userID, sessionID); err != nil {
			return fail(c, err)
		}
		return c.JSON(dto.SuccessResponse{Success: true, Message: "Session revoked"})
	}

	if _, err := h.sessionService.RevokeAll(c.UserContext(), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Message: "All sessions revoked"})
}
