package donations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

// Handler serves the donor intake form and the donation list.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs the donations handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers donation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireLogin)
	r.With(h.rbac.RequirePermission(rbac.ActionRead, rbac.ResourceDonations)).Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireDonorForm)
		r.Get("/new", h.showForm)
		r.Post("/", h.submit)
	})
}

type formData struct {
	Submission     Submission
	Bike           BikeDetail
	Parts          PartsDetail
	IdempotencyKey string
	Types          []Type
	Errors         map[string]string
}

type listData struct {
	Donations []Donation
	Error     string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	items, err := h.service.ListDonations(r.Context(), p, 200)
	data := listData{Donations: items}
	if err != nil {
		h.logger.Error("list donations", slog.Any("error", err))
		data.Error = shared.UserSafeMessage(err)
	}
	h.render(w, r, http.StatusOK, "pages/donations.html", "Donations", data)
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	data := formData{
		Parts:          PartsDetail{NumberOfParts: 1},
		IdempotencyKey: NewIdempotencyKey(),
		Types:          []Type{TypeBike, TypeParts, TypeBoth},
	}
	h.render(w, r, http.StatusOK, "pages/donation_form.html", "Donor Information Form", data)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sub := parseSubmission(r)
	p := rbac.PrincipalFromContext(r.Context())
	res, err := h.service.Submit(r.Context(), p, sub)
	if err != nil {
		h.logger.Warn("submit donation", slog.String("type", string(sub.Type)), slog.Any("error", err))
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			h.redirectWithFlash(w, r, "/", "info", shared.UserSafeMessage(err))
			return
		}
		data := formData{
			Submission:     sub,
			IdempotencyKey: NewIdempotencyKey(),
			Types:          []Type{TypeBike, TypeParts, TypeBoth},
			Errors:         map[string]string{"general": "Error submitting donation: " + shared.UserSafeMessage(err)},
		}
		if sub.Bike != nil {
			data.Bike = *sub.Bike
		}
		if sub.Parts != nil {
			data.Parts = *sub.Parts
		}
		status := http.StatusInternalServerError
		var verr *ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
			for field, msg := range verr.Fields {
				data.Errors[field] = msg
			}
		}
		h.render(w, r, status, "pages/donation_form.html", "Donor Information Form", data)
		return
	}
	h.logger.Info("donation recorded",
		slog.String("donation_id", res.DonationID.String()),
		slog.String("type", string(sub.Type)),
		slog.Float64("total_value", res.Summary.TotalValue))
	h.redirectWithFlash(w, r, "/", "success", "Donation submitted successfully!")
}

func parseSubmission(r *http.Request) Submission {
	sub := Submission{
		Donor: DonorInput{
			Name:    strings.TrimSpace(r.PostFormValue("donor_name")),
			Email:   strings.TrimSpace(r.PostFormValue("donor_email")),
			Phone:   strings.TrimSpace(r.PostFormValue("donor_phone")),
			Address: strings.TrimSpace(r.PostFormValue("donor_address")),
		},
		Type:             Type(r.PostFormValue("donation_type")),
		Notes:            r.PostFormValue("donation_notes"),
		ReceiptRequested: r.PostFormValue("receipt_requested") != "",
		TaxDeductible:    r.PostFormValue("tax_deductible") != "",
		IdempotencyKey:   r.PostFormValue("idempotency_key"),
	}
	if sub.Type.HasBike() {
		sub.Bike = &BikeDetail{
			Brand:        r.PostFormValue("bike_brand"),
			Model:        r.PostFormValue("bike_model"),
			Type:         r.PostFormValue("bike_type"),
			Size:         r.PostFormValue("bike_size"),
			Condition:    r.PostFormValue("bike_condition"),
			SerialNumber: r.PostFormValue("bike_serial_number"),
			Value:        parseFloat(r.PostFormValue("bike_value")),
			Notes:        r.PostFormValue("bike_notes"),
		}
	}
	if sub.Type.HasParts() {
		n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("number_of_parts")))
		if err != nil || n <= 0 {
			n = 1
		}
		sub.Parts = &PartsDetail{
			Description:   r.PostFormValue("parts_description"),
			NumberOfParts: n,
			Value:         parseFloat(r.PostFormValue("parts_value")),
			Condition:     r.PostFormValue("parts_condition"),
		}
	}
	return sub
}

// parseFloat treats blank or malformed input as zero.
func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	w.WriteHeader(status)
	err := h.templates.Render(w, page, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   rbac.PrincipalFromContext(r.Context()),
		Data:        data,
	})
	if err != nil {
		h.logger.Error("render template", slog.String("page", page), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
