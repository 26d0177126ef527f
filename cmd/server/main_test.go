package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	servercmd "github.com/MarkoPoloResearchLab/portfolio/cmd/server"
	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
	"github.com/MarkoPoloResearchLab/portfolio/internal/storage"
	"github.com/MarkoPoloResearchLab/portfolio/internal/testutil"
)

const (
	testEnvironmentKeyDatabaseDataSourceName = "DATABASE_URL"
	testEnvironmentKeyDatabaseDriverName     = "DB_DRIVER"
	testEnvironmentKeyApplicationAddress     = "APP_ADDR"
	testPlaceholderDatabaseDSN               = "postgres://example.com/database"
	testMissingConfigurationMessage          = "missing required configuration"
	testFlagNameDatabaseDataSource           = "db-dsn"
	testFlagIndicator                        = "--"
	testUsagePrefix                          = "Usage:"
)

func nopLoggerFactory() (*zap.Logger, error) {
	return zap.NewNop(), nil
}

func newTestApplication() *servercmd.ServerApplication {
	return servercmd.NewServerApplication().
		WithEnvironmentFile("").
		WithLoggerFactory(nopLoggerFactory)
}

func executeCommand(testingT *testing.T, application *servercmd.ServerApplication, arguments ...string) (string, error) {
	testingT.Helper()

	command, commandErr := application.Command()
	require.NoError(testingT, commandErr)

	commandOutput := &bytes.Buffer{}
	command.SetOut(commandOutput)
	command.SetErr(commandOutput)
	command.SetArgs(arguments)

	executionErr := command.Execute()
	return commandOutput.String(), executionErr
}

func TestServerCommandMissingConfigurationShowsHelp(t *testing.T) {
	t.Setenv(testEnvironmentKeyDatabaseDataSourceName, "")

	application := newTestApplication().WithContactStoreOpener(func(_ context.Context, configuration storage.Config) (storage.ContactStore, error) {
		t.Fatalf("store opener invoked with %s", configuration.DataSourceName)
		return nil, nil
	})

	combinedOutput, executionErr := executeCommand(t, application)
	require.Error(t, executionErr)
	require.Contains(t, combinedOutput, testMissingConfigurationMessage)
	require.Contains(t, combinedOutput, testUsagePrefix)
	require.Contains(t, combinedOutput, testFlagIndicator+testFlagNameDatabaseDataSource)
}

func TestServerCommandRejectsUnexpectedArguments(t *testing.T) {
	t.Setenv(testEnvironmentKeyDatabaseDataSourceName, testPlaceholderDatabaseDSN)

	_, executionErr := executeCommand(t, newTestApplication(), "extra")
	require.Error(t, executionErr)
	require.Contains(t, executionErr.Error(), "unexpected command arguments")
}

func TestServerCommandPassesConfigurationToStoreOpener(t *testing.T) {
	t.Setenv(testEnvironmentKeyDatabaseDataSourceName, testPlaceholderDatabaseDSN)
	t.Setenv(testEnvironmentKeyDatabaseDriverName, storage.DriverNamePgx)

	openFailure := errors.New("database unreachable")
	var receivedConfiguration storage.Config
	application := newTestApplication().WithContactStoreOpener(func(_ context.Context, configuration storage.Config) (storage.ContactStore, error) {
		receivedConfiguration = configuration
		return nil, openFailure
	})

	_, executionErr := executeCommand(t, application)
	require.ErrorIs(t, executionErr, openFailure)
	require.Equal(t, storage.Config{
		DriverName:     storage.DriverNamePgx,
		DataSourceName: testPlaceholderDatabaseDSN,
	}, receivedConfiguration)
}

func TestServerCommandFlagsOverrideDefaults(t *testing.T) {
	var receivedConfiguration storage.Config
	var receivedAddress string
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	application := newTestApplication().
		WithContactStoreOpener(func(ctx context.Context, configuration storage.Config) (storage.ContactStore, error) {
			receivedConfiguration = configuration
			return storage.OpenContactStore(ctx, configuration)
		}).
		WithHTTPServerRunner(func(_ context.Context, httpServer *http.Server, _ *zap.Logger) error {
			receivedAddress = httpServer.Addr
			return nil
		})

	_, executionErr := executeCommand(t, application,
		"--app-addr", "127.0.0.1:9191",
		"--db-driver", storage.DriverNameSQLite,
		"--db-dsn", sqliteDatabase.DataSourceName(),
	)
	require.NoError(t, executionErr)
	require.Equal(t, "127.0.0.1:9191", receivedAddress)
	require.Equal(t, sqliteDatabase.Configuration(), receivedConfiguration)
}

func TestServerCommandServesContactEndpoints(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)
	t.Setenv(testEnvironmentKeyDatabaseDriverName, storage.DriverNameSQLite)
	t.Setenv(testEnvironmentKeyDatabaseDataSourceName, sqliteDatabase.DataSourceName())
	t.Setenv(testEnvironmentKeyApplicationAddress, "127.0.0.1:0")

	var contacts []model.ContactSubmission
	application := newTestApplication().WithHTTPServerRunner(func(_ context.Context, httpServer *http.Server, _ *zap.Logger) error {
		for _, subject := range []string{"first", "second"} {
			body := fmt.Sprintf(`{"name":"Ada","email":"ada@example.com","subject":%q,"message":"Hello there"}`, subject)
			request := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
			request.Header.Set("Content-Type", "application/json")
			recorder := httptest.NewRecorder()
			httpServer.Handler.ServeHTTP(recorder, request)
			if recorder.Code != http.StatusOK {
				return fmt.Errorf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
			}
		}

		recorder := httptest.NewRecorder()
		httpServer.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
		return json.Unmarshal(recorder.Body.Bytes(), &contacts)
	})

	_, executionErr := executeCommand(t, application)
	require.NoError(t, executionErr)
	require.Len(t, contacts, 2)
	require.Equal(t, "second", contacts[0].Subject)
	require.Equal(t, "first", contacts[1].Subject)
}

func TestServerCommandLoadsEnvironmentFile(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)
	for _, environmentKey := range []string{testEnvironmentKeyDatabaseDataSourceName, testEnvironmentKeyDatabaseDriverName} {
		_, alreadySet := os.LookupEnv(environmentKey)
		require.False(t, alreadySet, "%s must not be set for this test", environmentKey)
		environmentKey := environmentKey
		t.Cleanup(func() {
			_ = os.Unsetenv(environmentKey)
		})
	}

	environmentFile := filepath.Join(t.TempDir(), ".env")
	environmentContents := fmt.Sprintf("%s=%s\n%s=%s\n",
		testEnvironmentKeyDatabaseDriverName, storage.DriverNameSQLite,
		testEnvironmentKeyDatabaseDataSourceName, sqliteDatabase.DataSourceName(),
	)
	require.NoError(t, os.WriteFile(environmentFile, []byte(environmentContents), 0o600))

	var receivedConfiguration storage.Config
	application := servercmd.NewServerApplication().
		WithEnvironmentFile(environmentFile).
		WithLoggerFactory(nopLoggerFactory).
		WithContactStoreOpener(func(ctx context.Context, configuration storage.Config) (storage.ContactStore, error) {
			receivedConfiguration = configuration
			return storage.OpenContactStore(ctx, configuration)
		}).
		WithHTTPServerRunner(func(context.Context, *http.Server, *zap.Logger) error {
			return nil
		})

	_, executionErr := executeCommand(t, application)
	require.NoError(t, executionErr)
	require.Equal(t, sqliteDatabase.Configuration(), receivedConfiguration)
}

func TestServerCommandIgnoresMissingEnvironmentFile(t *testing.T) {
	application := servercmd.NewServerApplication().
		WithEnvironmentFile(filepath.Join(t.TempDir(), "absent.env"))

	_, commandErr := application.Command()
	require.NoError(t, commandErr)
}
