package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alejandrodnm/straddlebot/internal/adapters/storage"
)

// setupPostgres arranca un contenedor de PostgreSQL y devuelve su DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("straddle"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")
	return dsn
}

func TestPostgresStorage_RunStorage(t *testing.T) {
	dsn := setupPostgres(t)

	s, err := storage.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close()
	require.IsType(t, &storage.PostgresStorage{}, s)

	exerciseRunStorage(t, s)
}

func TestPostgresStorage_SchemaIsIdempotent(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	first, err := storage.NewPostgresStorage(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, first.SaveRun(ctx, makeRun("kept", t0, 1)))
	require.NoError(t, first.Close())

	second, err := storage.NewPostgresStorage(ctx, dsn)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.GetRun(ctx, "kept")
	require.NoError(t, err)
}
