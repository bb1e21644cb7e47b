package workorders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
)

type memoryRepo struct {
	orders []WorkOrder
	calls  int
}

func (r *memoryRepo) Insert(_ context.Context, in Input, requestedBy uuid.UUID) (WorkOrder, error) {
	r.calls++
	wo := WorkOrder{
		ID:          uuid.New(),
		BikeID:      in.BikeID,
		Description: in.Description,
		Status:      StatusOpen,
		RequestedBy: &requestedBy,
		CreatedAt:   time.Now(),
	}
	r.orders = append([]WorkOrder{wo}, r.orders...)
	return wo, nil
}

func (r *memoryRepo) List(context.Context) ([]WorkOrder, error) {
	r.calls++
	return r.orders, nil
}

func (r *memoryRepo) Close(_ context.Context, id uuid.UUID) error {
	r.calls++
	for i := range r.orders {
		if r.orders[i].ID == id && r.orders[i].Open() {
			now := time.Now()
			r.orders[i].Status = StatusClosed
			r.orders[i].ClosedAt = &now
			return nil
		}
	}
	return shared.ErrNotFound
}

var (
	admin     = rbac.NewPrincipal(uuid.New(), "admin@example.org", rbac.RoleAdmin)
	volunteer = rbac.NewPrincipal(uuid.New(), "vol@example.org", rbac.RoleEarnABike)
)

func TestServiceLifecycle(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, Input{Description: "   "})
	require.ErrorIs(t, err, shared.ErrValidationMissing)

	wo, err := svc.Create(ctx, admin, Input{Description: "true the rear wheel"})
	require.NoError(t, err)
	require.True(t, wo.Open())

	orders, err := svc.List(ctx, volunteer)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	require.NoError(t, svc.Close(ctx, admin, wo.ID))
	require.ErrorIs(t, svc.Close(ctx, admin, wo.ID), shared.ErrNotFound)
}

func TestServiceRejectsWritesWithoutGrant(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, volunteer, Input{Description: "brakes"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	require.ErrorIs(t, svc.Close(ctx, volunteer, uuid.New()), shared.ErrUnauthorized)
	_, err = svc.List(ctx, rbac.Anonymous)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	require.Zero(t, repo.calls)
}

func TestHandlerCreateAndList(t *testing.T) {
	repo := &memoryRepo{}
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, NewService(repo, nil, nil), templates, shared.NewCSRFManager("x"), rbac.Middleware{})
	router := chi.NewRouter()
	router.Route("/work-orders", h.MountRoutes)

	sess := &shared.Session{ID: "s"}
	withActor := func(req *http.Request, p rbac.Principal) *http.Request {
		ctx := shared.ContextWithSession(req.Context(), sess)
		return req.WithContext(rbac.ContextWithPrincipal(ctx, p))
	}

	form := url.Values{"description": {"replace chain"}}
	req := httptest.NewRequest(http.MethodPost, "/work-orders/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withActor(req, volunteer))
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/work-orders/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withActor(req, admin))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Len(t, repo.orders, 1)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodGet, "/work-orders/", nil), volunteer))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "replace chain")
}
