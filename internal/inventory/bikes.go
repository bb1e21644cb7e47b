package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// MountRoutes registers the bike create, edit and delete routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireLogin)
	r.Get("/new", h.showCreate)
	r.Post("/", h.handleCreate)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}", h.handleUpdate)
	r.Post("/{id}/delete", h.handleDelete)
}

type bikeFormData struct {
	ID       string
	Input    BikeInput
	Lookups  Lookups
	Statuses []Status
	Programs []rbac.Program
	Errors   map[string]string
}

func (d bikeFormData) Editing() bool { return d.ID != "" }

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	in := BikeInput{Status: StatusInStock}
	if program, ok := p.Role.Program(); ok {
		in.Program = string(program)
	}
	h.renderForm(w, r, http.StatusOK, bikeFormData{Input: in})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	in, errs := h.parseBikeForm(r)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, bikeFormData{Input: in, Errors: errs})
		return
	}
	created, err := h.service.CreateBike(r.Context(), p, in)
	if err != nil {
		h.logger.Warn("create bike", slog.Any("error", err))
		h.renderForm(w, r, statusFor(err), bikeFormData{Input: in, Errors: map[string]string{"general": formMessage(err)}})
		return
	}
	h.logger.Info("bike created", slog.String("bike_id", created.ID.String()), slog.String("program", created.Program))
	h.redirectWithFlash(w, r, "/", "success", "Bike added.")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	b, err := h.service.GetBike(r.Context(), p, id)
	if err != nil {
		h.redirectWithFlash(w, r, "/", "error", shared.UserSafeMessage(err))
		return
	}
	h.renderForm(w, r, http.StatusOK, bikeFormData{ID: id.String(), Input: inputFromBike(b)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	in, errs := h.parseBikeForm(r)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, bikeFormData{ID: id.String(), Input: in, Errors: errs})
		return
	}
	if _, err := h.service.UpdateBike(r.Context(), p, id, in); err != nil {
		h.logger.Warn("update bike", slog.String("bike_id", id.String()), slog.Any("error", err))
		h.renderForm(w, r, statusFor(err), bikeFormData{ID: id.String(), Input: in, Errors: map[string]string{"general": formMessage(err)}})
		return
	}
	h.redirectWithFlash(w, r, "/", "success", "Bike updated.")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.DeleteBike(r.Context(), p, id); err != nil {
		h.logger.Warn("delete bike", slog.String("bike_id", id.String()), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/", "error", "Failed to delete bike: "+shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/", "success", "Bike deleted.")
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data bikeFormData) {
	p := rbac.PrincipalFromContext(r.Context())
	lookups, err := h.service.Lookups(r.Context(), p)
	if err != nil {
		h.logger.Warn("load bike lookups", slog.Any("error", err))
	}
	data.Lookups = lookups
	data.Statuses = Statuses()
	data.Programs = rbac.Programs()
	title := "Add Bike"
	if data.Editing() {
		title = "Edit Bike"
	}
	h.renderStatus(w, r, status, "pages/bike_form.html", title, data)
}

func (h *Handler) parseBikeForm(r *http.Request) (BikeInput, map[string]string) {
	errs := make(map[string]string)
	if err := r.ParseForm(); err != nil {
		errs["general"] = "Invalid form submission"
		return BikeInput{}, errs
	}
	in := BikeInput{
		SerialNumber:    strings.TrimSpace(r.PostFormValue("serial_number")),
		Brand:           strings.TrimSpace(r.PostFormValue("brand")),
		Model:           strings.TrimSpace(r.PostFormValue("model")),
		Type:            strings.TrimSpace(r.PostFormValue("type")),
		Size:            strings.TrimSpace(r.PostFormValue("size")),
		Program:         r.PostFormValue("program"),
		Condition:       strings.TrimSpace(r.PostFormValue("condition")),
		Status:          Status(r.PostFormValue("status")),
		DonatedTo:       strings.TrimSpace(r.PostFormValue("donated_to")),
		Notes:           r.PostFormValue("notes"),
		ComponentSerial: strings.TrimSpace(r.PostFormValue("component_serial")),
	}
	if raw := strings.TrimSpace(r.PostFormValue("value")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs["Value"] = "Value must be a number"
		}
		in.Value = v
	}
	if err := h.validator.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	if in.Status != "" && !in.Status.Valid() {
		errs["Status"] = "Unknown status"
	}
	return in, errs
}

func inputFromBike(b Bike) BikeInput {
	return BikeInput{
		SerialNumber:    b.SerialNumber,
		Brand:           b.Brand,
		Model:           b.Model,
		Type:            b.Type,
		Size:            b.Size,
		Value:           b.Value,
		Program:         b.Program,
		Condition:       b.Condition,
		Status:          b.Status,
		DonatedTo:       b.DonatedTo,
		Notes:           b.Notes,
		ComponentSerial: b.ComponentSerial,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidProgram):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func formMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidProgram):
		return "Choose a program."
	case errors.Is(err, ErrInvalidStatus):
		return "Choose a status."
	default:
		return shared.UserSafeMessage(err)
	}
}
