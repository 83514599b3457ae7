package middleware

import (
	"strings"

	"github.com/pixora-ai/pixora-api/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	defaultUnauthorizedMessage = "Not authenticated"
	// sessionCookie is the cookie Clerk's frontend SDK stores the session token in.
	sessionCookie = "__session"
)

type AuthMiddleware struct {
	verifier auth.TokenVerifier
	config   *AuthMiddlewareConfig
}

type AuthMiddlewareConfig struct {
	HeaderNames []string
	CookieName  string
	SkipPaths   []string
}

func DefaultAuthMiddlewareConfig() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{
		HeaderNames: []string{"Authorization"},
		CookieName:  sessionCookie,
	}
}

func NewAuthMiddleware(verifier auth.TokenVerifier, config *AuthMiddlewareConfig) *AuthMiddleware {
	if config == nil {
		config = DefaultAuthMiddlewareConfig()
	}
	if len(config.HeaderNames) == 0 {
		config.HeaderNames = []string{"Authorization"}
	}
	return &AuthMiddleware{verifier: verifier, config: config}
}

// RequireAuth rejects requests without a valid token with 401 and the given message.
func (m *AuthMiddleware) RequireAuth(message ...string) fiber.Handler {
	msg := defaultUnauthorizedMessage
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions || m.shouldSkipPath(c.Path()) {
			return c.Next()
		}

		token := m.extractToken(c)
		if token == "" {
			return unauthorized(c, msg)
		}

		identity, err := m.verifier.Verify(c.UserContext(), token)
		if err != nil {
			fiberlog.Debugf("[%s] Token rejected: %v", RequestID(c), err)
			return unauthorized(c, msg)
		}

		auth.SetIdentity(c, identity)
		return c.Next()
	}
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	for _, headerName := range m.config.HeaderNames {
		if header := c.Get(headerName); header != "" {
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				return strings.TrimSpace(after)
			}
			return strings.TrimSpace(header)
		}
	}

	if m.config.CookieName != "" {
		return c.Cookies(m.config.CookieName)
	}
	return ""
}

func (m *AuthMiddleware) shouldSkipPath(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
