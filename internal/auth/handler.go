package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/platform/httpx"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

// SessionInitializer resolves the principal for a freshly signed-in user.
type SessionInitializer interface {
	InitializeSession(ctx context.Context, userID uuid.UUID, email string) rbac.Principal
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	roles          SessionInitializer
	events         *Events
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles SessionInitializer, events *Events, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		roles:          roles,
		events:         events,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.currentUser)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type signupForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Confirm  string `validate:"required,eqfield=Password"`
}

type formPageData struct {
	Email  string
	Errors map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data formPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   rbac.PrincipalFromContext(r.Context()),
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render auth page", slog.String("page", page), slog.Any("error", err))
		if status == http.StatusOK {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) validate(form any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	return errs
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/login.html", "Sign in", formPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := h.validate(form)
	if len(errs) == 0 {
		user, err := h.service.Authenticate(ctx, form.Email, form.Password)
		if err == nil {
			h.signIn(w, r, sess, user)
			return
		}
		if errors.Is(err, shared.ErrBackendUnavailable) {
			h.logger.Error("login without store", slog.Any("error", err))
		}
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.render(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", formPageData{Email: form.Email, Errors: errs})
}

// signIn resolves the role once and binds the principal to a fresh session.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, sess *shared.Session, user *User) {
	ctx := r.Context()
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.sessionManager.Renew(ctx, sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	principal := h.roles.InitializeSession(ctx, user.ID, user.Email)
	sess.SetIdentity(principal.Identity())
	sess.Delete(shared.CSRFSessionKey)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Signed in as " + principal.RoleName()})

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(ctx, sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	if err := h.events.Publish(ctx, Event{Type: EventSignedIn, UserID: user.ID.String(), Email: user.Email, Role: principal.Role.String()}); err != nil {
		h.logger.Warn("publish sign-in", slog.Any("error", err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/signup.html", "Create account", formPageData{})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := signupForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm"),
	}
	errs := h.validate(form)
	if len(errs) == 0 {
		user, err := h.service.SignUp(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			_ = h.events.Publish(r.Context(), Event{Type: EventSignedUp, UserID: user.ID.String(), Email: user.Email})
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Account created. An admin will assign your program."})
			}
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		case errors.Is(err, ErrEmailTaken):
			errs["Email"] = "That email is already registered."
		default:
			h.logger.Error("sign up", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	h.render(w, r, http.StatusBadRequest, "pages/signup.html", "Create account", formPageData{Email: form.Email, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		id := sess.Identity()
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		if id.UserID != "" {
			_ = h.events.Publish(r.Context(), Event{Type: EventSignedOut, UserID: id.UserID, Email: id.Email, Role: id.Role})
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type meResponse struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	RoleName string `json:"roleName"`
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if !p.LoggedIn() {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "not signed in")
		return
	}
	user, err := h.service.CurrentUser(r.Context(), p.Identity())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Role:     p.Role.String(),
		RoleName: p.RoleName(),
	})
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
