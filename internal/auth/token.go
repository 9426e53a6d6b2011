package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/edu-platform/credential-service/internal/domain"
)

// DefaultTokenTTL is the lifetime of an access token when none is configured.
const DefaultTokenTTL = time.Hour

// Claims describes JWT payload. The account ID travels in the registered "sub" claim.
type Claims struct {
	Role domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified claim set attached to a request.
type Identity struct {
	SubjectID string
	Role      domain.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries one of the given roles.
func (i *Identity) HasRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IssueToken builds and signs an HS256 token for subjectID that expires at now+ttl.
func IssueToken(subjectID string, role domain.Role, secret []byte, ttl time.Duration, now time.Time) (domain.IssuedToken, error) {
	if len(secret) == 0 {
		return domain.IssuedToken{}, fmt.Errorf("%w: empty secret", ErrSigning)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	expiresAt := now.Add(ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return domain.IssuedToken{
		Value:     signed,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// VerifyToken checks the signature against secret and then expiry against now.
// Only HS256 is accepted. Errors are one of ErrMalformed, ErrInvalidSignature or ErrExpired.
func VerifyToken(tokenStr string, secret []byte, now time.Time) (*Identity, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidSignature)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing claims", ErrMalformed)
	}

	identity := &Identity{
		SubjectID: claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// TokenManager issues and validates tokens with a fixed secret and TTL.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. The secret must be non-empty; callers
// load it from configuration and fail at startup otherwise.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// TTL returns the lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// GenerateToken builds and signs a token for the subject.
func (tm *TokenManager) GenerateToken(subjectID string, role domain.Role) (domain.IssuedToken, error) {
	return IssueToken(subjectID, role, tm.secret, tm.ttl, tm.now())
}

// ParseToken validates and returns the verified identity.
func (tm *TokenManager) ParseToken(tokenStr string) (*Identity, error) {
	return VerifyToken(tokenStr, tm.secret, tm.now())
}
