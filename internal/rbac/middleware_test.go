package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

func serveWith(t *testing.T, p Principal, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/donations/new", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), p))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRequireDonorForm(t *testing.T) {
	mw := Middleware{}
	h := mw.RequireDonorForm(okHandler)

	require.Equal(t, http.StatusNoContent, serveWith(t, principalWith(RoleSales), h).Code)
	require.Equal(t, http.StatusForbidden, serveWith(t, principalWith(RoleEarnABike), h).Code)
	require.Equal(t, http.StatusForbidden, serveWith(t, Anonymous, h).Code)
}

func TestRequireRoleAndPermission(t *testing.T) {
	mw := Middleware{}
	adminOnly := mw.RequireRole(RoleAdmin)(okHandler)
	require.Equal(t, http.StatusNoContent, serveWith(t, principalWith(RoleAdmin), adminOnly).Code)
	require.Equal(t, http.StatusForbidden, serveWith(t, principalWith(RoleSales), adminOnly).Code)

	createOrders := mw.RequirePermission(ActionCreate, ResourceWorkOrders)(okHandler)
	require.Equal(t, http.StatusForbidden, serveWith(t, principalWith(RoleGiveABike), createOrders).Code)
	require.Equal(t, http.StatusNoContent, serveWith(t, principalWith(RoleAdmin), createOrders).Code)
}

func TestPrincipalMiddlewareReadsSession(t *testing.T) {
	mw := Middleware{}
	userID := uuid.New()
	var seen Principal
	h := mw.Principal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
	}))

	sess := &shared.Session{ID: "s1"}
	sess.SetIdentity(shared.Identity{UserID: userID.String(), Email: "a@example.org", Role: "Sales"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, NewPrincipal(userID, "a@example.org", RoleSales), seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, Anonymous, seen)
}

func TestRequireLoginRedirects(t *testing.T) {
	mw := Middleware{}
	rr := serveWith(t, Anonymous, mw.RequireLogin(okHandler))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/auth/login", rr.Header().Get("Location"))
}
