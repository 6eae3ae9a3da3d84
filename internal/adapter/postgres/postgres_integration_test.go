package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pscheid92/hearth/internal/adapter/metrics"
	"github.com/pscheid92/hearth/internal/domain"
)

var (
	testDatabaseURL string
	testPool        *pgxpool.Pool
	testMetrics     *metrics.DBMetrics
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	if testing.Short() {
		os.Exit(m.Run())
	}
	os.Exit(runWithContainer(m))
}

func runWithContainer(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	testDatabaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		return 1
	}

	testMetrics = metrics.NewDBMetrics(prometheus.NewRegistry())
	testPool, err = Connect(ctx, testDatabaseURL, NewMetricsTracer(testMetrics))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		return 1
	}
	defer testPool.Close()

	if err := RunMigrationsWithLock(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		return 1
	}

	return m.Run()
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		if _, err := testPool.Exec(context.Background(), "TRUNCATE hearth_state, hearth_cooldowns"); err != nil {
			t.Logf("Failed to truncate tables: %v", err)
		}
	})
	return testPool
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := setupTestDB(t)

	require.NoError(t, RunMigrationsWithLock(context.Background(), pool))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "://nope", nil)
	assert.Error(t, err)
}

func TestStateRepo_NotFound(t *testing.T) {
	repo := NewStateRepo(setupTestDB(t), "main")

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestStateRepo_UpsertAndLoad(t *testing.T) {
	repo := NewStateRepo(setupTestDB(t), "main")
	ctx := context.Background()

	state := domain.NewIntensityState(55, t0)
	state.ActiveContributions = append(state.ActiveContributions, domain.Contribution{
		ID: "c-1", ContributorID: "alice", Label: "oak", AddedAt: t0,
	})
	require.NoError(t, repo.Save(ctx, state))

	state.Intensity = 63
	state.Counters.DailyCount = 3
	require.NoError(t, repo.Save(ctx, state))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 63.0, got.Intensity)
	assert.Equal(t, 3, got.Counters.DailyCount)
	require.Len(t, got.ActiveContributions, 1)
	assert.True(t, got.ActiveContributions[0].AddedAt.Equal(t0))

	assert.Positive(t, testutil.CollectAndCount(testMetrics.QueryDuration))
}

func TestStateRepo_PoolsAreIsolated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewStateRepo(db, "a").Save(ctx, domain.NewIntensityState(10, t0)))

	_, err := NewStateRepo(db, "b").Load(ctx)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestCooldownStore_RecordLoadDelete(t *testing.T) {
	store := NewCooldownStore(setupTestDB(t), "main")
	ctx := context.Background()

	require.NoError(t, store.RecordCooldown(ctx, "alice", t0))
	require.NoError(t, store.RecordCooldown(ctx, "alice", t0.Add(time.Hour)))
	require.NoError(t, store.RecordCooldown(ctx, "bob", t0))

	got, err := store.LoadCooldowns(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got["alice"].Equal(t0.Add(time.Hour)))

	require.NoError(t, store.DeleteCooldowns(ctx, []string{"bob", "nobody"}))

	got, err = store.LoadCooldowns(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "alice")
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "SELECT", queryName("select state from hearth_state"))
	assert.Equal(t, "INSERT", queryName("\n\t\tINSERT INTO x"))
	assert.Equal(t, "unknown", queryName(""))
}
