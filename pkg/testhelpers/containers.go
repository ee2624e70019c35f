package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/config"
	"github.com/storymine-hq/storymine-engine/pkg/database"
)

// archiveTestImage is the stock PostgreSQL image the integration tests run
// against. The archive schema is created by the tests themselves: the
// intelligence tables through the bundled migrations, the legacy tables
// through plain DDL, since in production those belong to the StoryMap
// pipeline and ship no migrations here.
const archiveTestImage = "postgres:16-alpine"

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        archiveTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "storymap_test",
			"POSTGRES_USER":     "storymine",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The image logs readiness twice: once for the init run, once for
		// the real server.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://storymine:test_password@%s:%s/storymap_test?sslmode=disable",
		host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}, nil
}

// Manager returns a connected database.Manager over the shared container,
// which is what the repositories expect. The manager is closed with the
// test.
func (db *TestDB) Manager(t *testing.T) *database.Manager {
	t.Helper()

	mgr := database.NewManager(&config.DatabaseConfig{URL: db.ConnStr}, zap.NewNop())
	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Failed to connect manager to test database: %v", err)
	}
	t.Cleanup(mgr.Close)
	return mgr
}

// MigrateUp applies the bundled migrations to the test database. Reapplying
// is a no-op, so every integration test file can call it.
func (db *TestDB) MigrateUp(t *testing.T, migrationsPath string) {
	t.Helper()

	sqlDB, err := sql.Open("pgx", db.ConnStr)
	if err != nil {
		t.Fatalf("Failed to open sql connection for migrations: %v", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrationsPath, zap.NewNop()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
}

// Exec runs a statement against the test database, failing the test on
// error.
func (db *TestDB) Exec(t *testing.T, query string, args ...any) {
	t.Helper()

	if _, err := db.Pool.Exec(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to execute %q: %v", query, err)
	}
}
