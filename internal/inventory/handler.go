package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/phoenix-bikes/biketrack/internal/donations"
	"github.com/phoenix-bikes/biketrack/internal/observability"
	"github.com/phoenix-bikes/biketrack/internal/platform/httpx"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

// GenerationHeader echoes the fetch generation a table response answers.
const GenerationHeader = "X-Fetch-Generation"

// DonorSearcher backs the donors tab.
type DonorSearcher interface {
	SearchDonors(ctx context.Context, p rbac.Principal, term string) ([]donations.Donor, error)
}

// Handler wires the dashboard and bike endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	donors      DonorSearcher
	templates   *view.Engine
	csrf        *shared.CSRFManager
	generations *Generations
	metrics     *observability.Metrics
	rbac        rbac.Middleware
	validator   *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service, donors DonorSearcher, templates *view.Engine, csrf *shared.CSRFManager, generations *Generations, metrics *observability.Metrics, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		donors:      donors,
		templates:   templates,
		csrf:        csrf,
		generations: generations,
		metrics:     metrics,
		rbac:        rbac,
		validator:   validator.New(),
	}
}

// MountDashboard registers the landing page and dashboard fragments.
func (h *Handler) MountDashboard(r chi.Router) {
	r.Get("/", h.dashboard)
	r.Route("/dashboard", func(r chi.Router) {
		r.Use(h.rbac.RequireLogin)
		r.Get("/table", h.table)
		r.Get("/counts", h.counts)
	})
}

type bikeRow struct {
	Bike
	CanEdit   bool
	CanDelete bool
}

type tableData struct {
	Tab        Tab
	Generation uint64
	Term       string
	Only       []Only
	Bikes      []bikeRow
	Donors     []donations.Donor
	CSRFToken  string
	Error      string
}

// IsDonors reports whether the fragment lists donors instead of bikes.
func (d tableData) IsDonors() bool { return d.Tab == TabDonors }

// Checked reports whether the post-filter o is active.
func (d tableData) Checked(o Only) bool {
	for _, v := range d.Only {
		if v == o {
			return true
		}
	}
	return false
}

type dashboardData struct {
	View         View
	Tabs         []Tab
	Metrics      []Metric
	Table        tableData
	ShowDonorBtn bool
}

type landingData struct {
	LoggedIn bool
	Email    string
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	v := ViewFor(p)
	if v == ViewLanding {
		h.render(w, r, "pages/landing.html", "BikeTrack", landingData{LoggedIn: p.LoggedIn(), Email: p.Email})
		return
	}

	active := ActiveTab(sess, v)
	var (
		counts Counts
		table  tableData
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		counts = h.service.GetBikeCounts(ctx, p)
		return nil
	})
	g.Go(func() error {
		var err error
		table, err = h.loadTable(ctx, p, active, "", nil)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		table.Error = shared.UserSafeMessage(err)
	}
	table.CSRFToken = h.csrfToken(r)

	h.render(w, r, "pages/dashboard.html", "Dashboard", dashboardData{
		View:         v,
		Tabs:         v.Tabs(),
		Metrics:      v.Metrics(counts),
		Table:        table,
		ShowDonorBtn: p.CanSeeDonorForm(),
	})
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	q := r.URL.Query()
	tab := Tab(q.Get("tab"))
	if !ViewFor(p).Has(tab) {
		httpx.RespondError(w, fmt.Errorf("%w: unknown tab %q", shared.ErrValidationMissing, tab))
		return
	}
	gen, err := strconv.ParseUint(q.Get("gen"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: gen", shared.ErrValidationMissing))
		return
	}

	var sessionID string
	if sess != nil {
		sessionID = sess.ID
	}
	if err := h.generations.Begin(r.Context(), sessionID, gen); err != nil && !h.staleOrLog(w, tab, err) {
		return
	}
	SetActiveTab(sess, tab)

	data, err := h.loadTable(r.Context(), p, tab, q.Get("q"), ParseOnly(q["only"]))
	if err != nil {
		h.logger.Warn("load dashboard table", slog.String("tab", string(tab)), slog.Any("error", err))
		data.Error = shared.UserSafeMessage(err)
	}
	if err := h.generations.Current(r.Context(), sessionID, gen); err != nil && !h.staleOrLog(w, tab, err) {
		return
	}
	data.Generation = gen
	data.CSRFToken = h.csrfToken(r)

	w.Header().Set(GenerationHeader, strconv.FormatUint(gen, 10))
	if err := h.templates.RenderPartial(w, "partials/bike_table.html", data); err != nil {
		h.logger.Error("render dashboard table", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staleOrLog answers a superseded fetch with 409 and reports false. Tracker
// failures are logged and the fetch proceeds.
func (h *Handler) staleOrLog(w http.ResponseWriter, tab Tab, err error) bool {
	if errors.Is(err, ErrStaleGeneration) {
		h.metrics.StaleFetch(string(tab))
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrConflict, err))
		return false
	}
	h.logger.Warn("fetch generation tracker", slog.Any("error", err))
	return true
}

func (h *Handler) loadTable(ctx context.Context, p rbac.Principal, tab Tab, term string, only []Only) (tableData, error) {
	data := tableData{Tab: tab, Term: term, Only: only}
	switch tab {
	case TabDonors:
		if h.donors == nil {
			return data, nil
		}
		donors, err := h.donors.SearchDonors(ctx, p, term)
		if err != nil {
			return data, err
		}
		data.Donors = donors
		return data, nil
	case TabSearch:
		data.Bikes = rows(p, ApplyOnly(h.service.Search(ctx, p, term), only))
	default:
		data.Bikes = rows(p, ApplyOnly(h.service.GetFilteredBikes(ctx, p, tab.Filters()), only))
	}
	return data, nil
}

func rows(p rbac.Principal, bikes []Bike) []bikeRow {
	out := make([]bikeRow, len(bikes))
	for i, b := range bikes {
		out[i] = bikeRow{Bike: b, CanEdit: CanEdit(p, b), CanDelete: CanDelete(p, b)}
	}
	return out
}

func (h *Handler) counts(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, h.service.GetBikeCounts(r.Context(), p))
}

func (h *Handler) csrfToken(r *http.Request) string {
	token, _ := h.csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	return token
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	h.renderStatus(w, r, http.StatusOK, page, title, data)
}

func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	var flash *shared.FlashMessage
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   h.csrfToken(r),
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   rbac.PrincipalFromContext(r.Context()),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render template", slog.String("page", page), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
