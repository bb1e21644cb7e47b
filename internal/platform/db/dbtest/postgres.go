// Package dbtest starts a throwaway PostgreSQL for repository integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phoenix-bikes/biketrack/internal/platform/db"
)

// Enabled reports whether container backed tests should run.
func Enabled() bool {
	return os.Getenv("INTEGRATION_TEST") != ""
}

// Start launches postgres, applies migrations and returns a pool. The test is
// skipped unless INTEGRATION_TEST is set.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if !Enabled() {
		t.Skip("Skipping integration tests. Set INTEGRATION_TEST=1 to run.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("biketrack_test"),
		tcpostgres.WithUsername("biketrack"),
		tcpostgres.WithPassword("biketrack"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container dsn: %v", err)
	}
	if _, err := db.MigrateUp(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := db.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
