package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	// DriverNameSQLite identifies the SQLite driver implementation.
	DriverNameSQLite = "sqlite"
	// DriverNamePostgres identifies the GORM PostgreSQL driver implementation.
	DriverNamePostgres = "postgres"
	// DriverNamePgx identifies the pgx connection pool implementation.
	DriverNamePgx = "pgx"

	errorMessageMissingDatabaseDriverName = "storage: missing database driver name"
	errorMessageUnsupportedDatabaseDriver = "storage: unsupported database driver"
	errorMessageMissingDataSourceName     = "storage: missing database data source name"
	errorMessageOpenDatabase              = "storage: open database"
	errorMessageOpenSQLiteDatabase        = "storage: open sqlite database"
	errorMessageOpenPostgresDatabase      = "storage: open postgres database"
	errorMessageMigrateDatabase           = "storage: migrate database"
)

var (
	// ErrMissingDatabaseDriverName indicates the database driver name configuration was omitted.
	ErrMissingDatabaseDriverName = errors.New(errorMessageMissingDatabaseDriverName)
	// ErrUnsupportedDatabaseDriver indicates the provided database driver is not supported.
	ErrUnsupportedDatabaseDriver = errors.New(errorMessageUnsupportedDatabaseDriver)
	// ErrMissingDataSourceName indicates the database data source name configuration was omitted.
	ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)
)

type databaseOpener func(Config) (*gorm.DB, error)

var databaseOpeners = map[string]databaseOpener{
	DriverNameSQLite:   openSQLiteDatabase,
	DriverNamePostgres: openPostgresDatabase,
}

// Config captures database connection configuration.
type Config struct {
	DriverName     string
	DataSourceName string
}

func (configuration Config) normalized() (Config, error) {
	trimmedDriverName := strings.TrimSpace(configuration.DriverName)
	if trimmedDriverName == "" {
		return Config{}, ErrMissingDatabaseDriverName
	}
	return Config{
		DriverName:     trimmedDriverName,
		DataSourceName: strings.TrimSpace(configuration.DataSourceName),
	}, nil
}

// OpenContactStore opens the contact store selected by the configured driver
// and prepares its schema. The returned store owns the connection pool.
func OpenContactStore(ctx context.Context, configuration Config) (ContactStore, error) {
	normalizedConfiguration, normalizeErr := configuration.normalized()
	if normalizeErr != nil {
		return nil, normalizeErr
	}

	if normalizedConfiguration.DriverName == DriverNamePgx {
		pgxStore, openErr := OpenPgxContactStore(ctx, normalizedConfiguration.DataSourceName)
		if openErr != nil {
			return nil, openErr
		}
		if schemaErr := pgxStore.EnsureSchema(ctx); schemaErr != nil {
			_ = pgxStore.Close()
			return nil, schemaErr
		}
		return pgxStore, nil
	}

	database, openErr := OpenDatabase(normalizedConfiguration)
	if openErr != nil {
		return nil, openErr
	}
	if migrateErr := AutoMigrate(database); migrateErr != nil {
		if sqlDatabase, sqlErr := database.DB(); sqlErr == nil {
			_ = sqlDatabase.Close()
		}
		return nil, migrateErr
	}
	return NewGormContactStore(database), nil
}

// OpenDatabase opens a GORM connection using the configured driver and data source name.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	normalizedConfiguration, normalizeErr := configuration.normalized()
	if normalizeErr != nil {
		return nil, normalizeErr
	}

	opener, driverSupported := databaseOpeners[normalizedConfiguration.DriverName]
	if !driverSupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, normalizedConfiguration.DriverName)
	}

	database, openErr := opener(normalizedConfiguration)
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenDatabase, openErr)
	}

	return database, nil
}

func openSQLiteDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(sqlite.Open(configuration.DataSourceName), newGormConfig())
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenSQLiteDatabase, openErr)
	}

	return database, nil
}

func openPostgresDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(postgres.Open(configuration.DataSourceName), newGormConfig())
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenPostgresDatabase, openErr)
	}

	return database, nil
}

func newGormConfig() *gorm.Config {
	return &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}
