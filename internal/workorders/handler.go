package workorders

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

// Handler serves the work order board.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers work order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireLogin)
	r.With(h.rbac.RequirePermission(rbac.ActionRead, rbac.ResourceWorkOrders)).Get("/", h.list)
	r.With(h.rbac.RequirePermission(rbac.ActionCreate, rbac.ResourceWorkOrders)).Post("/", h.create)
	r.With(h.rbac.RequirePermission(rbac.ActionUpdate, rbac.ResourceWorkOrders)).Post("/{id}/close", h.close)
}

type pageData struct {
	Orders    []WorkOrder
	CanCreate bool
	CanClose  bool
	BikeID    string
	Error     string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	orders, err := h.service.List(r.Context(), p)
	data := pageData{
		Orders:    orders,
		CanCreate: p.HasPermission(rbac.ActionCreate, rbac.ResourceWorkOrders),
		CanClose:  p.HasPermission(rbac.ActionUpdate, rbac.ResourceWorkOrders),
		BikeID:    r.URL.Query().Get("bike"),
	}
	if err != nil {
		h.logger.Error("list work orders", slog.Any("error", err))
		data.Error = shared.UserSafeMessage(err)
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	err = h.templates.Render(w, "pages/work_orders.html", view.TemplateData{
		Title:       "Work Orders",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   p,
		Data:        data,
	})
	if err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := Input{Description: r.PostFormValue("description")}
	if raw := strings.TrimSpace(r.PostFormValue("bike_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.redirectWithFlash(w, r, "error", "Unknown bike.")
			return
		}
		in.BikeID = &id
	}
	wo, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.logger.Warn("create work order", slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", shared.UserSafeMessage(err))
		return
	}
	h.logger.Info("work order opened", slog.String("work_order_id", wo.ID.String()))
	h.redirectWithFlash(w, r, "success", "Work order opened.")
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.Close(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.logger.Warn("close work order", slog.String("work_order_id", id.String()), slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "success", "Work order closed.")
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/work-orders", http.StatusSeeOther)
}
