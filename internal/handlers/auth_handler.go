package handlers

import (
	"partshop/internal/middleware"
	"partshop/internal/models"
	"partshop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for accounts and tokens.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	log         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
		log:         log,
	}
}

// RegisterRoutes registers the authentication routes. Moderation routes
// require a credential; the rest are public.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth/v1")
	authRoutes.Post("/signup", h.HandleSignUp)
	authRoutes.Post("/otp", h.HandleRequestCode)
	authRoutes.Post("/verify", h.HandleVerifyCode)
	authRoutes.Post("/token", h.HandleToken)

	admin := authRoutes.Group("/admin", middleware.AuthRequired(h.authService, h.log))
	admin.Patch("/users/:id/status", h.HandleSetStatus)
}

// HandleSignUp registers a pending account.
func (h *AuthHandler) HandleSignUp(c *fiber.Ctx) error {
	var req services.SignUpInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, h.log, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user, err := h.authService.SignUp(c.UserContext(), req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info("user signed up", zap.String("user_id", user.ID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered, awaiting approval",
		"user":    user,
	})
}

// EmailRequest carries the address a code is sent to.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleRequestCode issues a new verification code. The code itself is only
// handed to the mailer.
func (h *AuthHandler) HandleRequestCode(c *fiber.Ctx) error {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, h.log, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	vc, err := h.authService.IssueCode(c.UserContext(), req.Email)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"message":    "Verification code sent",
		"expires_at": vc.ExpiresAt,
	})
}

// VerifyRequest represents the request body for code verification.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (h *AuthHandler) HandleVerifyCode(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, h.log, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.authService.VerifyCode(c.UserContext(), req.Email, req.Code); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Email verified"})
}

// LoginRequest represents the request body for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleToken exchanges credentials of an approved user for an access token.
func (h *AuthHandler) HandleToken(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, h.log, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	token, err := h.authService.Token(c.UserContext(), req.Email, req.Password)
	if err != nil {
		h.log.Info("token refused", zap.Error(err))
		return writeError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(h.authService.TokenTTL().Seconds()),
	})
}

// StatusRequest represents the request body for moderation.
type StatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}

func (h *AuthHandler) HandleSetStatus(c *fiber.Ctx) error {
	pr, _ := middleware.PrincipalFrom(c)

	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, h.log, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	id := c.Params("id")
	user, err := h.authService.SetUserStatus(c.UserContext(), pr, id, req.Status)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info("user status changed", zap.String("user_id", id), zap.String("status", string(user.Status)))
	return c.JSON(fiber.Map{"user": user})
}
