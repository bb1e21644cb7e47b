package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/platform/db/dbtest"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

func TestRepositoryRoundTrip(t *testing.T) {
	pool := dbtest.Start(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	for _, b := range mixedInventory() {
		_, err := repo.InsertBike(ctx, b)
		require.NoError(t, err)
	}

	low := 80.0
	bikes, err := repo.ListBikes(ctx, Scope{Program: rbac.ProgramEarnABike}, Filters{MinValue: &low})
	require.NoError(t, err)
	require.Len(t, bikes, 1)
	require.Equal(t, "Giant", bikes[0].Brand)

	out, err := repo.ListBikes(ctx, Scope{All: true}, TabOut.Filters())
	require.NoError(t, err)
	require.Len(t, out, 3)

	target := out[0]
	target.Status = StatusTrashed
	require.NoError(t, repo.UpdateBike(ctx, target))
	got, err := repo.GetBike(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, StatusTrashed, got.Status)

	require.NoError(t, repo.DeleteBike(ctx, target.ID))
	_, err = repo.GetBike(ctx, target.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = pool.Exec(ctx, `INSERT INTO brands (name) VALUES ('Trek'), ('Bianchi')`)
	require.NoError(t, err)
	lookups, err := repo.Lookups(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Bianchi", "Trek"}, lookups.Brands)
}

func TestRepositoryWithoutPool(t *testing.T) {
	repo := NewRepository(nil)
	_, err := repo.ListBikes(context.Background(), Scope{All: true}, Filters{})
	require.ErrorIs(t, err, shared.ErrBackendUnavailable)
}
