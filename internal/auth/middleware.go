package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/edu-platform/credential-service/pkg/errorutil"
)

const identityKey = "auth_identity"

// TokenParser verifies a bearer token.
type TokenParser interface {
	ParseToken(tokenStr string) (*Identity, error)
}

// AuthMiddleware gates protected routes on a valid bearer token.
type AuthMiddleware struct {
	tokens TokenParser
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens TokenParser, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Authenticate resolves an Authorization header value to a verified identity.
// It returns ErrUnauthenticated when no bearer token is present and
// ErrInvalidToken when one is present but fails verification.
func (m *AuthMiddleware) Authenticate(authHeader string) (*Identity, error) {
	token, ok := bearerToken(authHeader)
	if !ok {
		return nil, ErrUnauthenticated
	}

	identity, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return identity, nil
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		m.logger.Debug("request rejected",
			zap.String("path", c.Path()),
			zap.Error(err))
		if errors.Is(err, ErrUnauthenticated) {
			return errorutil.NewUnauthenticated("missing or malformed authorization header")
		}
		return errorutil.NewInvalidToken()
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext retrieves the verified identity.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
