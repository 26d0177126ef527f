package testutil

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// EnvironmentKeyTestDatabaseURL points the Postgres tests at an existing server instead of an embedded one.
	EnvironmentKeyTestDatabaseURL = "TEST_DATABASE_URL"

	embeddedPostgresDatabase = "portfolio"
	embeddedPostgresUser     = "portfolio_user"
	embeddedPostgresPassword = "portfolio_password"
	postgresSchemaPrefix     = "portfolio_test_"
	postgresSearchPathKey    = "search_path"
	postgresSetupTimeout     = 30 * time.Second
)

var (
	startOnce sync.Once
	stopOnce  sync.Once

	epg      *embeddedpostgres.EmbeddedPostgres
	dsn      string
	startErr error
)

// StartEmbeddedPostgresOnce starts a real Postgres in-process exactly once,
// unless TEST_DATABASE_URL names a server to use instead.
func StartEmbeddedPostgresOnce() error {
	startOnce.Do(func() {
		if externalDSN := strings.TrimSpace(os.Getenv(EnvironmentKeyTestDatabaseURL)); externalDSN != "" {
			dsn = externalDSN
			return
		}

		port, err := pickFreePort()
		if err != nil {
			startErr = fmt.Errorf("embedded-pg: find free port: %w", err)
			return
		}

		// Each test process gets its own directories to avoid cross-process races.
		base := filepath.Join(os.TempDir(), fmt.Sprintf("portfolio-embedded-pg-%d", os.Getpid()))
		for _, directory := range []string{"data", "runtime", "binaries"} {
			_ = os.MkdirAll(filepath.Join(base, directory), 0o755)
		}

		cfg := embeddedpostgres.DefaultConfig().
			Port(uint32(port)).
			Database(embeddedPostgresDatabase).
			Username(embeddedPostgresUser).
			Password(embeddedPostgresPassword).
			DataPath(filepath.Join(base, "data")).
			RuntimePath(filepath.Join(base, "runtime")).
			BinariesPath(filepath.Join(base, "binaries")).
			StartTimeout(2 * time.Minute)

		db := embeddedpostgres.NewDatabase(cfg)
		if err := db.Start(); err != nil {
			startErr = fmt.Errorf("embedded-pg: start: %w", err)
			return
		}

		epg = db
		dsn = fmt.Sprintf(
			"host=127.0.0.1 port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			port, embeddedPostgresUser, embeddedPostgresPassword, embeddedPostgresDatabase,
		)
	})
	return startErr
}

// StopEmbeddedPostgresOnce stops the embedded Postgres if it was started.
func StopEmbeddedPostgresOnce() {
	stopOnce.Do(func() {
		if epg != nil {
			_ = epg.Stop()
		}
	})
}

// DSN returns the connection string to the test Postgres (after StartEmbeddedPostgresOnce).
func DSN() string {
	return dsn
}

// NewPostgresTestDSN returns a connection string scoped to a fresh schema that
// is dropped when the test ends. The test is skipped when no Postgres can be started.
func NewPostgresTestDSN(testingT *testing.T) string {
	testingT.Helper()

	if err := StartEmbeddedPostgresOnce(); err != nil {
		testingT.Skipf("postgres unavailable: %v", err)
	}

	schemaName := postgresSchemaPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	quotedSchema := pgx.Identifier{schemaName}.Sanitize()

	ctx, cancel := context.WithTimeout(context.Background(), postgresSetupTimeout)
	defer cancel()
	connection, connectErr := pgx.Connect(ctx, dsn)
	if connectErr != nil {
		testingT.Fatalf("connect postgres: %v", connectErr)
	}
	defer connection.Close(ctx)
	if _, createErr := connection.Exec(ctx, "CREATE SCHEMA "+quotedSchema); createErr != nil {
		testingT.Fatalf("create schema %s: %v", schemaName, createErr)
	}

	testingT.Cleanup(func() {
		cleanupContext, cleanupCancel := context.WithTimeout(context.Background(), postgresSetupTimeout)
		defer cleanupCancel()
		cleanupConnection, cleanupConnectErr := pgx.Connect(cleanupContext, dsn)
		if cleanupConnectErr != nil {
			testingT.Logf("drop schema %s: %v", schemaName, cleanupConnectErr)
			return
		}
		defer cleanupConnection.Close(cleanupContext)
		if _, dropErr := cleanupConnection.Exec(cleanupContext, "DROP SCHEMA IF EXISTS "+quotedSchema+" CASCADE"); dropErr != nil {
			testingT.Logf("drop schema %s: %v", schemaName, dropErr)
		}
	})

	scopedDSN, scopeErr := withSearchPath(dsn, schemaName)
	if scopeErr != nil {
		testingT.Fatalf("scope dsn: %v", scopeErr)
	}
	return scopedDSN
}

func withSearchPath(dataSourceName string, schemaName string) (string, error) {
	if strings.HasPrefix(dataSourceName, "postgres://") || strings.HasPrefix(dataSourceName, "postgresql://") {
		parsedURL, parseErr := url.Parse(dataSourceName)
		if parseErr != nil {
			return "", parseErr
		}
		query := parsedURL.Query()
		query.Set(postgresSearchPathKey, schemaName)
		parsedURL.RawQuery = query.Encode()
		return parsedURL.String(), nil
	}
	return fmt.Sprintf("%s %s=%s", dataSourceName, postgresSearchPathKey, schemaName), nil
}

func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
