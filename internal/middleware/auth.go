package middleware

import (
	"strings"

	"partshop/internal/policy"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const principalKey = "principal"

// CodeInvalidToken is the error code of every 401 written here.
const CodeInvalidToken = "invalid_token"

// TokenValidator resolves an API key or access token to a caller.
type TokenValidator interface {
	ValidateToken(token string) (policy.Principal, error)
}

// AuthRequired resolves the caller from the Authorization bearer token, or
// from the apikey header when no bearer token is sent, and stores it in the
// request locals. Requests without a valid credential get 401.
func AuthRequired(tokens TokenValidator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("apikey")
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer")) {
				return unauthorized(c, "authorization header format must be 'Bearer <token>'")
			}
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			return unauthorized(c, "an apikey header or bearer token is required")
		}

		pr, err := tokens.ValidateToken(token)
		if err != nil {
			log.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
			return unauthorized(c, err.Error())
		}

		c.Locals(principalKey, pr)
		return c.Next()
	}
}

// unauthorized writes the same error body as the handlers, so clients can
// switch on code.
func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": msg,
		"code":    CodeInvalidToken,
	})
}

// PrincipalFrom returns the caller stored by AuthRequired.
func PrincipalFrom(c *fiber.Ctx) (policy.Principal, bool) {
	pr, ok := c.Locals(principalKey).(policy.Principal)
	return pr, ok
}
