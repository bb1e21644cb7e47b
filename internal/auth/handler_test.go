package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/phoenix-bikes/biketrack/internal/auth"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
	_ "github.com/phoenix-bikes/biketrack/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]uuid.UUID
	created  []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, email, hash string) (*auth.User, error) {
	if s.user != nil && strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrEmailTaken
	}
	s.created = append(s.created, email)
	return &auth.User{ID: uuid.New(), Email: email, PasswordHash: hash, IsActive: true}, nil
}

func (s *stubRepo) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]uuid.UUID)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type stubRoles struct {
	role  rbac.RoleTag
	calls int
}

func (s *stubRoles) InitializeSession(ctx context.Context, userID uuid.UUID, email string) rbac.Principal {
	s.calls++
	return rbac.NewPrincipal(userID, email, s.role)
}

type fixture struct {
	handler  *auth.Handler
	sessions *shared.SessionManager
	mr       *miniredis.Miniredis
	repo     *stubRepo
	roles    *stubRoles
}

func newAuthHandler(t *testing.T, repo *stubRepo, role rbac.RoleTag) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	roles := &stubRoles{role: role}
	handler := auth.NewHandler(nil, auth.NewService(repo), roles, auth.NewEvents(redisClient, nil), templates, sessionManager, csrfManager)
	return fixture{handler: handler, sessions: sessionManager, mr: mr, repo: repo, roles: roles}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func (f fixture) serve(t *testing.T, h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := f.sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	h(res, req)
	if err := f.sessions.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func (f fixture) router() http.HandlerFunc {
	r := chi.NewRouter()
	r.Route("/auth", f.handler.MountRoutes)
	return r.ServeHTTP
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	f := newAuthHandler(t, &stubRepo{}, rbac.RoleNone)

	res, sess := f.serve(t, f.handler.ShowLoginForTest, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
	if sess.Get(shared.CSRFSessionKey) == "" {
		t.Fatalf("csrf token not set")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthHandler(t, &stubRepo{user: &auth.User{ID: uuid.New(), Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true}}, rbac.RoleSales)

	res, _ := f.serve(t, f.handler.HandleLoginForTest, postForm("/auth/login", url.Values{
		"email":    {"user@test.local"},
		"password": {"wrongpass"},
	}))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password.") {
		t.Fatalf("expected error message in response")
	}
	if f.roles.calls != 0 {
		t.Fatalf("role must not be resolved for failed login")
	}
}

func TestLoginInitializesPrincipalOnce(t *testing.T) {
	userID := uuid.New()
	f := newAuthHandler(t, &stubRepo{user: &auth.User{ID: userID, Email: "desk@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true}}, rbac.RoleSales)

	pre, _ := f.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	preID := pre.ID

	req := postForm("/auth/login", url.Values{"email": {"desk@test.local"}, "password": {"correctpass"}})
	ctx := shared.ContextWithSession(req.Context(), pre)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	f.handler.HandleLoginForTest(res, req)
	if err := f.sessions.Commit(ctx, res, req, pre); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", res.Code)
	}
	if f.roles.calls != 1 {
		t.Fatalf("expected one role resolution, got %d", f.roles.calls)
	}
	if pre.ID == preID {
		t.Fatalf("session id must change on sign-in")
	}
	id := pre.Identity()
	if id.UserID != userID.String() || id.Role != "sales" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, ok := f.repo.sessions[pre.ID]; !ok {
		t.Fatalf("login session not registered")
	}
}

func TestSignupRejectsMismatchedPasswords(t *testing.T) {
	f := newAuthHandler(t, &stubRepo{}, rbac.RoleNone)
	res, _ := f.serve(t, f.router(), postForm("/auth/signup", url.Values{
		"email":    {"new@test.local"},
		"password": {"longenough"},
		"confirm":  {"different1"},
	}))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(f.repo.created) != 0 {
		t.Fatalf("user must not be created")
	}
}

func TestSignupCreatesAccount(t *testing.T) {
	f := newAuthHandler(t, &stubRepo{}, rbac.RoleNone)
	res, _ := f.serve(t, f.router(), postForm("/auth/signup", url.Values{
		"email":    {"New@Test.local"},
		"password": {"longenough"},
		"confirm":  {"longenough"},
	}))
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected redirect to login, got %d %s", res.Code, res.Header().Get("Location"))
	}
	if len(f.repo.created) != 1 || f.repo.created[0] != "new@test.local" {
		t.Fatalf("unexpected created users %v", f.repo.created)
	}
}

func TestCurrentUserJSON(t *testing.T) {
	userID := uuid.New()
	f := newAuthHandler(t, &stubRepo{user: &auth.User{ID: userID, Email: "admin@test.local", IsActive: true}}, rbac.RoleAdmin)
	h := f.router()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	h(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.NewPrincipal(userID, "admin@test.local", rbac.RoleAdmin)))
	res = httptest.NewRecorder()
	h(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["roleName"] != "Admin" || body["email"] != "admin@test.local" {
		t.Fatalf("unexpected body %v", body)
	}
}
