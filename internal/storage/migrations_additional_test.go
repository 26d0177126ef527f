package storage

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAutoMigrateReportsErrorOnClosedDatabase(testingT *testing.T) {
	dataSourceName := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(testingT.Name(), "/", "_"))
	database, openErr := OpenDatabase(Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: dataSourceName,
	})
	require.NoError(testingT, openErr)

	sqlDatabase, sqlErr := database.DB()
	require.NoError(testingT, sqlErr)
	require.NoError(testingT, sqlDatabase.Close())

	migrateErr := AutoMigrate(database)
	require.Error(testingT, migrateErr)
	require.Contains(testingT, migrateErr.Error(), errorMessageMigrateDatabase)
}

func TestAutoMigrateIsIdempotent(testingT *testing.T) {
	dataSourceName := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(testingT.Name(), "/", "_"))
	database, openErr := OpenDatabase(Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: dataSourceName,
	})
	require.NoError(testingT, openErr)
	testingT.Cleanup(func() {
		if sqlDatabase, sqlErr := database.DB(); sqlErr == nil {
			_ = sqlDatabase.Close()
		}
	})

	require.NoError(testingT, AutoMigrate(database))
	require.NoError(testingT, AutoMigrate(database))
	require.True(testingT, database.Migrator().HasTable("contact"))
}
