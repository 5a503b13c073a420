// Package testutil provides shared database fixtures for sqlcompose tests.
//
// SQLite returns an isolated in-memory database and needs nothing but the Go
// toolchain. Postgres starts (once per test binary) a PostgreSQL container,
// or connects to DATABASE_URL when set, and hands each test its own database.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"
)

//go:embed testdata/fixtures.sql
var fixturesSQL string

// Singleton container state
var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// SQLite returns an in-memory SQLite database loaded with the fixtures.
// Every call returns a separate database, closed when the test completes.
func SQLite(tb testing.TB) *sql.DB {
	tb.Helper()

	name := "file:" + randomName(tb) + "?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", name)
	require.NoError(tb, err, "failed to open sqlite database")
	// A shared in-memory database lives as long as one connection is open.
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = db.Close() })

	require.NoError(tb, LoadFixtures(context.Background(), db), "failed to load fixtures")
	return db
}

// Postgres returns a database on the shared PostgreSQL server loaded with the
// fixtures. Each call creates a new database, dropped when the test completes.
// Connections use the pgx database/sql driver.
func Postgres(tb testing.TB) *sql.DB {
	tb.Helper()

	adminDSN, err := ensureServer()
	require.NoError(tb, err, "failed to start PostgreSQL container")

	ctx := context.Background()
	name := "sqlcompose_" + randomName(tb)

	admin, err := sql.Open("pgx", adminDSN)
	require.NoError(tb, err)
	defer admin.Close()

	_, err = admin.ExecContext(ctx, "CREATE DATABASE "+name)
	require.NoError(tb, err, "failed to create test database")

	db, err := sql.Open("pgx", replaceDBName(adminDSN, name))
	require.NoError(tb, err)

	tb.Cleanup(func() {
		_ = db.Close()
		admin, err := sql.Open("pgx", adminDSN)
		if err != nil {
			return
		}
		defer admin.Close()
		_, _ = admin.ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)")
	})

	require.NoError(tb, LoadFixtures(ctx, db), "failed to load fixtures")
	return db
}

// LoadFixtures creates and fills the fixture tables. The statements are
// portable between SQLite and PostgreSQL.
func LoadFixtures(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(fixturesSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec fixture %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// ensureServer returns the admin DSN of the shared PostgreSQL server, starting
// a container unless DATABASE_URL points at one.
// Safe for concurrent access via sync.Once.
func ensureServer() (string, error) {
	singletonOnce.Do(func() {
		if server := LookupExternalServer(); server.URL != "" {
			singletonDSN = server.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}

		singletonDSN = dsn
		// Container is not stored - ryuk will handle cleanup automatically
	})

	return singletonDSN, singletonErr
}

// replaceDBName swaps the database path of a postgres:// URL.
func replaceDBName(dsn, name string) string {
	scheme := strings.Index(dsn, "://")
	if scheme < 0 {
		return dsn
	}
	slash := strings.Index(dsn[scheme+3:], "/")
	if slash < 0 {
		return dsn + "/" + name
	}
	start := scheme + 3 + slash + 1
	end := len(dsn)
	if q := strings.Index(dsn[start:], "?"); q >= 0 {
		end = start + q
	}
	return dsn[:start] + name + dsn[end:]
}

func randomName(tb testing.TB) string {
	b := make([]byte, 8)
	_, err := rand.Read(b)
	require.NoError(tb, err)
	return hex.EncodeToString(b)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
