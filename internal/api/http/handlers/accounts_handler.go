package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/edu-platform/credential-service/internal/api/dto"
	"github.com/edu-platform/credential-service/internal/auth"
	"github.com/edu-platform/credential-service/internal/domain"
	"github.com/edu-platform/credential-service/internal/service"
	"github.com/edu-platform/credential-service/pkg/errorutil"
)

// CredentialService is the subset of service.CredentialService used by the handler.
type CredentialService interface {
	Register(ctx context.Context, username, email, password string) (*domain.AccountProfile, error)
	Login(ctx context.Context, email, password string) (domain.IssuedToken, error)
	Profile(ctx context.Context, id string) (*domain.AccountProfile, error)
}

// AccountsHandler exposes registration, login and profile endpoints.
type AccountsHandler struct {
	credentials CredentialService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(credentials CredentialService) *AccountsHandler {
	return &AccountsHandler{credentials: credentials}
}

// Register handles POST /api/users/register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	profile, err := h.credentials.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return mapCredentialError(err)
	}

	return c.Status(http.StatusCreated).JSON(dto.RegisterResponse{
		Message: "User registered successfully.",
		ID:      profile.ID,
	})
}

// Login handles POST /api/users/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	token, err := h.credentials.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapCredentialError(err)
	}

	return c.JSON(dto.LoginResponse{Token: token.Value, ExpiresAt: token.ExpiresAt})
}

// Me handles GET /api/users/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("authentication required")
	}
	return h.writeProfile(c, identity.SubjectID)
}

// Get handles GET /api/users/:id.
func (h *AccountsHandler) Get(c *fiber.Ctx) error {
	return h.writeProfile(c, c.Params("id"))
}

func (h *AccountsHandler) writeProfile(c *fiber.Ctx, id string) error {
	profile, err := h.credentials.Profile(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return errorutil.NewNotFound("account", nil)
		}
		return errorutil.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": profile})
}

// mapCredentialError translates service failures into caller-facing errors.
// Unknown account and wrong password collapse into one response.
func mapCredentialError(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return errorutil.NewValidationError("invalid input", map[string]any{
			"fields": verr.Fields,
			"reason": verr.Reason,
		})
	case errors.Is(err, service.ErrDuplicateAccount):
		return errorutil.NewConflict("account already exists", nil)
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrInvalidCredentials):
		return errorutil.NewInvalidCredentials(err)
	default:
		return errorutil.NewInternalError(err)
	}
}
