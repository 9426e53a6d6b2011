package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edu-platform/credential-service/internal/api/http/handlers"
	"github.com/edu-platform/credential-service/internal/auth"
	"github.com/edu-platform/credential-service/internal/config"
	"github.com/edu-platform/credential-service/internal/domain"
	"github.com/edu-platform/credential-service/internal/events"
	"github.com/edu-platform/credential-service/internal/observability"
	"github.com/edu-platform/credential-service/internal/repository"
	"github.com/edu-platform/credential-service/internal/service"
	"github.com/edu-platform/credential-service/pkg/errorutil"
)

type testServer struct {
	app     *fiber.App
	repo    *repository.MemoryAccountRepository
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, deps ...handlers.Dependency) *testServer {
	t.Helper()
	logger := zap.NewNop()
	repo := repository.NewMemoryAccountRepository()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, logger, metrics).RegisterHandlers()

	credentials, err := service.NewCredentialService(config.AuthConfig{
		JWTSecret:             "router-test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, service.CredentialDependencies{
		Accounts:   repo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("credential-service", "test", deps...),
		Accounts:       handlers.NewAccountsHandler(credentials),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(credentials.TokenManager(), logger),
	})
	return &testServer{app: app, repo: repo, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func errorMessage(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	msg, _ := e["message"].(string)
	return msg
}

func TestCredentialLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, stdhttp.MethodPost, "/api/users/register",
		map[string]string{"username": "alice", "email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, stdhttp.StatusCreated, code)
	assert.Equal(t, "User registered successfully.", body["message"])
	aliceID, _ := body["id"].(string)
	require.NotEmpty(t, aliceID)
	assert.NotContains(t, body, "password")

	code, body = s.do(t, stdhttp.MethodPost, "/api/users/login",
		map[string]string{"email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, stdhttp.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, body["expires_at"])

	code, wrongPw := s.do(t, stdhttp.MethodPost, "/api/users/login",
		map[string]string{"email": "a@x.com", "password": "wrong"}, "")
	assert.Equal(t, stdhttp.StatusUnauthorized, code)
	assert.Equal(t, errorutil.CodeInvalidCredentials, errorCode(wrongPw))

	code, unknown := s.do(t, stdhttp.MethodPost, "/api/users/login",
		map[string]string{"email": "nobody@x.com", "password": "secret1"}, "")
	assert.Equal(t, stdhttp.StatusUnauthorized, code)
	assert.Equal(t, wrongPw, unknown, "unknown account and wrong password must look identical")

	code, body = s.do(t, stdhttp.MethodGet, "/api/users/me", nil, "")
	assert.Equal(t, stdhttp.StatusUnauthorized, code)
	assert.Equal(t, errorutil.CodeUnauthenticated, errorCode(body))

	code, body = s.do(t, stdhttp.MethodGet, "/api/users/me", nil, "not-a-token")
	assert.Equal(t, stdhttp.StatusUnauthorized, code)
	assert.Equal(t, errorutil.CodeInvalidToken, errorCode(body))

	code, body = s.do(t, stdhttp.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, stdhttp.StatusOK, code)
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, aliceID, data["id"])
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "student", data["role"])
	assert.NotContains(t, data, "password_hash")
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t)
	payload := map[string]string{"username": "bob", "email": "b@x.com", "password": "pw"}

	code, _ := s.do(t, stdhttp.MethodPost, "/api/users/register", payload, "")
	require.Equal(t, stdhttp.StatusCreated, code)

	code, body := s.do(t, stdhttp.MethodPost, "/api/users/register",
		map[string]string{"username": "bobby", "email": "b@x.com", "password": "pw"}, "")
	assert.Equal(t, stdhttp.StatusConflict, code)
	assert.Equal(t, errorutil.CodeConflict, errorCode(body))

	code, body = s.do(t, stdhttp.MethodPost, "/api/users/register",
		map[string]string{"username": "carol"}, "")
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, errorutil.CodeValidation, errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.ElementsMatch(t, []any{"email", "password"}, details["fields"])
}

func TestLogin_MissingFields(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "a@x.com"}, "")
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, errorutil.CodeValidation, errorCode(body))
}

func TestGetAccount_RequiresPrivilegedRole(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.repo.Create(ctx, &domain.Account{
		Username:     "root",
		Email:        "root@x.com",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}))

	_, body := s.do(t, stdhttp.MethodPost, "/api/users/register",
		map[string]string{"username": "alice", "email": "a@x.com", "password": "secret1"}, "")
	aliceID := body["id"].(string)

	_, body = s.do(t, stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "a@x.com", "password": "secret1"}, "")
	studentToken := body["token"].(string)
	_, body = s.do(t, stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "root@x.com", "password": "admin-pw"}, "")
	adminToken := body["token"].(string)

	code, body := s.do(t, stdhttp.MethodGet, "/api/users/"+aliceID, nil, studentToken)
	assert.Equal(t, stdhttp.StatusForbidden, code)
	assert.Equal(t, errorutil.CodeForbidden, errorCode(body))

	code, body = s.do(t, stdhttp.MethodGet, "/api/users/"+aliceID, nil, adminToken)
	require.Equal(t, stdhttp.StatusOK, code)
	assert.Equal(t, "alice", body["data"].(map[string]any)["username"])

	code, body = s.do(t, stdhttp.MethodGet, "/api/users/does-not-exist", nil, adminToken)
	assert.Equal(t, stdhttp.StatusNotFound, code)
	assert.Equal(t, errorutil.CodeNotFound, errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t,
		handlers.Dependency{Name: "postgres", Ping: func(context.Context) error { return nil }},
		handlers.Dependency{Name: "redis", Ping: func(context.Context) error { return errors.New("dial tcp: refused") }},
	)

	code, body := s.do(t, stdhttp.MethodGet, "/health/live", nil, "")
	assert.Equal(t, stdhttp.StatusOK, code)
	assert.Equal(t, "alive", body["status"])

	code, body = s.do(t, stdhttp.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, code)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))

	_, _ = s.do(t, stdhttp.MethodPost, "/api/users/login", map[string]string{"email": "x@x.com", "password": "pw"}, "")

	code, body = s.do(t, stdhttp.MethodGet, "/metrics", nil, "")
	require.Equal(t, stdhttp.StatusOK, code)
	authCounts := body["auth"].(map[string]any)
	assert.Equal(t, float64(1), authCounts["login_failed|account_not_found"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, stdhttp.MethodGet, "/nope", nil, "")
	assert.Equal(t, stdhttp.StatusNotFound, code)
	assert.Equal(t, errorutil.CodeNotFound, errorCode(body))
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/boom", func(*fiber.Ctx) error {
		return errors.New("pq: relation \"accounts\" does not exist")
	})
	app.Get("/panic", func(*fiber.Ctx) error {
		panic("unexpected")
	})
	s := &testServer{app: app}

	for _, path := range []string{"/boom", "/panic"} {
		code, body := s.do(t, stdhttp.MethodGet, path, nil, "")
		assert.Equal(t, stdhttp.StatusInternalServerError, code)
		assert.Equal(t, errorutil.CodeInternal, errorCode(body))
		assert.Equal(t, "internal server error", errorMessage(body))
	}
}
