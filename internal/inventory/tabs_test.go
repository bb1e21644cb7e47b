package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

func TestViewForRole(t *testing.T) {
	require.Equal(t, ViewSales, ViewFor(principalWith(rbac.RoleSales)))
	require.Equal(t, ViewAdmin, ViewFor(principalWith(rbac.RoleAdmin)))
	require.Equal(t, ViewAdmin, ViewFor(principalWith(rbac.RoleEarnABike)))
	require.Equal(t, ViewAdmin, ViewFor(principalWith(rbac.RoleGiveABike)))
	require.Equal(t, ViewLanding, ViewFor(rbac.Anonymous))

	require.Equal(t, []Tab{TabOnHand, TabTrashed, TabEarned, TabStrip, TabSearch}, ViewSales.Tabs())
	require.Equal(t, []Tab{TabOnHand, TabTrashed, TabOut, TabStrip, TabDonors}, ViewAdmin.Tabs())
	require.False(t, ViewSales.Has(TabDonors))
}

func TestViewMetrics(t *testing.T) {
	c := Counts{OnHand: 3, Out: 3, Earned: 2, Total: 8}
	sales := ViewSales.Metrics(c)
	require.Equal(t, "Earned", sales[1].Label)
	require.Equal(t, 2, sales[1].Value)
	admin := ViewAdmin.Metrics(c)
	require.Equal(t, "Out", admin[1].Label)
	require.Equal(t, 8, admin[2].Value)
}

func TestActiveTabFallsBackToFirst(t *testing.T) {
	sess := &shared.Session{ID: "abc"}
	require.Equal(t, TabOnHand, ActiveTab(sess, ViewAdmin))
	SetActiveTab(sess, TabDonors)
	require.Equal(t, TabDonors, ActiveTab(sess, ViewAdmin))
	require.Equal(t, TabOnHand, ActiveTab(sess, ViewSales))
}

func TestOutTabExcludesShopStatuses(t *testing.T) {
	f := TabOut.Filters()
	require.ElementsMatch(t, []Status{StatusInStock, StatusTrashed, StatusStrip}, f.StatusNotIn)
	require.Empty(t, f.Status)
}

func TestGenerationsRejectStaleFetches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	gens := NewGenerations(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, gens.Begin(ctx, "sess", 1))
	require.NoError(t, gens.Begin(ctx, "sess", 3))
	require.ErrorIs(t, gens.Begin(ctx, "sess", 2), ErrStaleGeneration)
	require.NoError(t, gens.Begin(ctx, "sess", 3))

	require.ErrorIs(t, gens.Current(ctx, "sess", 1), ErrStaleGeneration)
	require.NoError(t, gens.Current(ctx, "sess", 3))

	require.NoError(t, gens.Begin(ctx, "other", 1), "sessions are independent")
	require.True(t, mr.TTL("biketrack:fetchgen:sess") > 0)
}

func TestGenerationsWithoutRedisAcceptEverything(t *testing.T) {
	gens := NewGenerations(nil, 0)
	require.NoError(t, gens.Begin(context.Background(), "sess", 5))
	require.NoError(t, gens.Begin(context.Background(), "sess", 1))
}
