package postgres

import (
	"context"
	"io/fs"
	"os"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"victory-readmodel/internal/observability"
)

// schemaDir holds the archive schema relative to this package.
const schemaDir = "../migrations/postgres"

// newTestPool starts a throwaway Postgres, applies the archive schema and
// registers teardown with t.Cleanup.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("readmodel"),
		tcpostgres.WithUsername("readmodel"),
		tcpostgres.WithPassword("readmodel"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	metrics := observability.NewMetricsWith("pgtest", prometheus.NewRegistry())
	pool, err := NewPool(ctx, dsn, WithMaxConns(4), WithMetrics(metrics))
	require.NoError(t, err, "connect")
	t.Cleanup(pool.Close)

	applySchema(t, ctx, pool)
	return pool
}

func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	dir := os.DirFS(schemaDir)
	files, err := fs.Glob(dir, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no schema files in %s", schemaDir)
	sort.Strings(files)

	for _, name := range files {
		body, err := fs.ReadFile(dir, name)
		require.NoError(t, err, name)
		_, err = pool.Exec(ctx, string(body))
		require.NoError(t, err, "apply %s", name)
	}
}
