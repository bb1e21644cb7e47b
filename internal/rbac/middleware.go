package rbac

import (
	"log/slog"
	"net/http"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Principal rebuilds the principal from the session and stores it in the
// request context. Requests without a session identity carry Anonymous.
func (m Middleware) Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Anonymous
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			p = PrincipalFromIdentity(sess.Identity())
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireLogin redirects anonymous requests to the login page.
func (m Middleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFromContext(r.Context()).LoggedIn() {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows the request when the principal holds one of roles.
func (m Middleware) RequireRole(roles ...RoleTag) func(http.Handler) http.Handler {
	return m.require("role", func(p Principal) bool {
		for _, role := range roles {
			if p.Role == role {
				return true
			}
		}
		return false
	})
}

// RequirePermission allows the request when HasPermission(action, res) holds.
func (m Middleware) RequirePermission(action Action, res Resource) func(http.Handler) http.Handler {
	return m.require(action.String()+" "+res.String(), func(p Principal) bool {
		return p.HasPermission(action, res)
	})
}

// RequireDonorForm allows the request when the donor form is visible.
func (m Middleware) RequireDonorForm(next http.Handler) http.Handler {
	return m.require("donor form", Principal.CanSeeDonorForm)(next)
}

func (m Middleware) require(rule string, allow func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if allow(p) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied",
					slog.String("rule", rule),
					slog.String("role", p.Role.String()),
					slog.String("path", r.URL.Path))
			}
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(shared.ErrUnauthorized)})
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
