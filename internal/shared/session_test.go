package shared

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "biketrack_session", "test-secret", time.Hour, false), mr
}

func TestSessionRoundTripKeepsIdentityAndFlash(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetIdentity(Identity{UserID: "7c1f", Email: "desk@example.org", Role: "sales"})
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Saved"})

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, strings.HasPrefix(cookies[0].Value, sess.ID+"."))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, "sales", loaded.Identity().Role)
	require.Equal(t, "Saved", loaded.PopFlash().Message)
	require.Nil(t, loaded.PopFlash())
}

func TestSessionRejectsForgedCookie(t *testing.T) {
	sm, mr := newTestManager(t)
	require.NoError(t, mr.Set("biketrack:session:victim", `{"identity":{"user_id":"x","role":"admin"}}`))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "biketrack_session", Value: "victim.bogus"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, "victim", sess.ID)
	require.Empty(t, sess.User())
}

func TestSessionDestroyClearsStore(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetIdentity(Identity{UserID: "u1", Role: "admin"})
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), sess))
	require.True(t, mr.Exists("biketrack:session:"+sess.ID))

	sm.Destroy(sess)
	require.Empty(t, sess.Identity().UserID)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	require.False(t, mr.Exists("biketrack:session:"+sess.ID))
	require.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("csrf")
	sess := &Session{ID: "abc"}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, m.VerifyToken(context.Background(), sess, token))
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, "nope"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
}

func TestQueryFailedWrapping(t *testing.T) {
	require.NoError(t, QueryFailed("bikes", nil))

	cause := errors.New("relation does not exist")
	err := QueryFailed("bikes: list", cause)
	require.ErrorIs(t, err, ErrQueryFailed)
	require.ErrorIs(t, err, cause)

	require.Same(t, ErrBackendUnavailable, QueryFailed("bikes", ErrBackendUnavailable))
	require.Equal(t, "Something went wrong. Please try again.", UserSafeMessage(err))
	require.Equal(t, "You do not have permission to perform this action.", UserSafeMessage(ErrUnauthorized))
}

func TestNilStoresReportBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	require.ErrorIs(t, NewAuditLogger(nil).Record(ctx, AuditLog{Action: "a", Entity: "b", EntityID: "c"}), ErrBackendUnavailable)
	require.ErrorIs(t, NewIdempotencyStore(nil).CheckAndInsert(ctx, "k", "donations"), ErrBackendUnavailable)
	require.NoError(t, NewIdempotencyStore(nil).Cleanup(ctx, time.Hour))
}

func TestSessionRenewDropsOldID(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), sess))
	oldID := sess.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sm.sign(oldID)})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, oldID, loaded.ID)

	require.NoError(t, sm.Renew(ctx, loaded))
	require.NotEqual(t, oldID, loaded.ID)
	require.False(t, mr.Exists("biketrack:session:"+oldID))
}
