package roles

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

func newTestRouter(t *testing.T, repo *memoryRepo) http.Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, NewService(repo, nil, nil), templates, shared.NewCSRFManager("x"), rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/roles", h.MountRoutes)
	return r
}

func assignRequest(p rbac.Principal, email, role string) *http.Request {
	form := url.Values{"email": {email}, "role": {role}}
	req := httptest.NewRequest(http.MethodPost, "/roles/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess := &shared.Session{ID: "s"}
	ctx := shared.ContextWithSession(req.Context(), sess)
	return req.WithContext(rbac.ContextWithPrincipal(ctx, p))
}

func TestAssignRoleHandler(t *testing.T) {
	repo := newMemoryRepo()
	target := uuid.New()
	repo.emails["vol@example.org"] = target
	router := newTestRouter(t, repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, assignRequest(rbac.NewPrincipal(uuid.New(), "s@example.org", rbac.RoleSales), "vol@example.org", "sales"))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Zero(t, repo.upserts)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, assignRequest(rbac.NewPrincipal(uuid.New(), "a@example.org", rbac.RoleAdmin), "vol@example.org", "EARN-A-BIKE"))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "earn-a-bike", repo.roles[target])
}

func TestRolesPageListsAssignments(t *testing.T) {
	repo := newMemoryRepo()
	repo.emails["vol@example.org"] = uuid.New()
	router := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/roles/", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.NewPrincipal(uuid.New(), "a@example.org", rbac.RoleAdmin)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "vol@example.org")
	require.Contains(t, rr.Body.String(), "Unassigned")
}
