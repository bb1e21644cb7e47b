package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireLogin)
	r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
	r.Get("/", h.listAssignments)
	r.Post("/", h.assignRole)
}

type formErrors map[string]string

type pageData struct {
	Assignments []Assignment
	Roles       []rbac.RoleTag
	Errors      formErrors
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	acting := rbac.PrincipalFromContext(r.Context())
	assignments, err := h.service.ListAssignments(r.Context(), acting)
	if err != nil {
		h.logger.Error("list role assignments", slog.Any("error", err))
		h.render(w, r, pageData{Roles: rbac.AllRoles(), Errors: formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, pageData{Assignments: assignments, Roles: rbac.AllRoles()}, http.StatusOK)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	role, ok := rbac.ParseRoleTag(r.PostFormValue("role"))
	if !ok {
		h.redirectWithFlash(w, r, "/roles", "error", "Choose a role to assign.")
		return
	}
	acting := rbac.PrincipalFromContext(r.Context())
	email := r.PostFormValue("email")
	if _, err := h.service.AssignRoleByEmail(r.Context(), acting, email, role); err != nil {
		h.logger.Warn("assign role", slog.String("email", email), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", email+" is now "+role.DisplayName()+". They need to sign in again.")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Roles",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   rbac.PrincipalFromContext(r.Context()),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/roles.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
