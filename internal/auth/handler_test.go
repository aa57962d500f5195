package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazo-app/hazo-auth/internal/auth"
	"github.com/hazo-app/hazo-auth/internal/shared"
	_ "github.com/hazo-app/hazo-auth/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(handler *auth.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

type stubRepo struct {
	user     *auth.User
	sessions []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	s.sessions = append(s.sessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(discardLogger(), auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{ID: "user-1", Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}
}

func doLogin(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router := newRouter(handler)
	router.ServeHTTP(res, req)
	require.NoError(t, sessionManager.Commit(req.Context(), res, req, sess))
	return res
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass1")}
	handler, sessionManager := newAuthHandler(t, repo)

	res := doLogin(t, handler, sessionManager, `{"email":"user@test.local","password":"correctpass1"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, "user-1", payload["user_id"])
	require.NotEmpty(t, payload["csrf_token"])
	require.Len(t, repo.sessions, 1)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correctpass1")}
	handler, sessionManager := newAuthHandler(t, repo)

	res := doLogin(t, handler, sessionManager, `{"email":"user@test.local","password":"wrongpass1"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "invalid credentials")
	require.Empty(t, repo.sessions)
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correctpass1")
	user.IsActive = false
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user})

	res := doLogin(t, handler, sessionManager, `{"email":"user@test.local","password":"correctpass1"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginMalformedBody(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	res := doLogin(t, handler, sessionManager, `{"email":`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}
