package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/portfolio/internal/storage"
)

const (
	commandUseName                   = "server"
	commandShortDescription          = "Run the portfolio contact server"
	commandLongDescription           = "Launch the HTTP server that stores and lists portfolio contact form submissions"
	missingConfigurationMessage      = "missing required configuration"
	loggerCreationErrorMessage       = "logger"
	environmentFileErrorMessage      = "load environment file"
	logEventListening                = "listening"
	logEventShutdown                 = "shutdown"
	logFieldAddress                  = "addr"
	logFieldDriver                   = "driver"
	flagNameApplicationAddress       = "app-addr"
	flagNameDatabaseDriverName       = "db-driver"
	flagNameDatabaseDataSourceName   = "db-dsn"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageDatabaseDriverName      = "contact store driver (postgres, pgx or sqlite)"
	flagUsageDatabaseDataSourceName  = "database connection string"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriverName = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DATABASE_URL"
	defaultApplicationAddress        = ":8080"
	defaultDatabaseDriverName        = storage.DriverNamePostgres
	defaultEnvironmentFile           = ".env"
	loggerContextOpenStore           = "open_store"
	loggerContextCloseStore          = "close_store"
	loggerContextServer              = "server"
	readHeaderTimeoutSeconds         = 5
	shutdownTimeoutSeconds           = 10
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDriverName     string
	DatabaseDataSourceName string
}

// ContactStoreOpener opens the contact store described by the storage configuration.
type ContactStoreOpener func(context.Context, storage.Config) (storage.ContactStore, error)

// HTTPServerRunner serves until the context is cancelled or the server fails.
type HTTPServerRunner func(context.Context, *http.Server, *zap.Logger) error

// LoggerFactory builds the process logger.
type LoggerFactory func() (*zap.Logger, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	storeOpener         ContactStoreOpener
	serverRunner        HTTPServerRunner
	loggerFactory       LoggerFactory
	environmentFile     string
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		storeOpener:         storage.OpenContactStore,
		serverRunner:        listenAndServe,
		loggerFactory:       func() (*zap.Logger, error) { return zap.NewProduction() },
		environmentFile:     defaultEnvironmentFile,
	}
}

// WithContactStoreOpener overrides the contact store opener dependency.
func (application *ServerApplication) WithContactStoreOpener(storeOpener ContactStoreOpener) *ServerApplication {
	application.storeOpener = storeOpener
	return application
}

// WithHTTPServerRunner overrides how the configured HTTP server is run.
func (application *ServerApplication) WithHTTPServerRunner(serverRunner HTTPServerRunner) *ServerApplication {
	application.serverRunner = serverRunner
	return application
}

// WithLoggerFactory overrides the logger construction.
func (application *ServerApplication) WithLoggerFactory(loggerFactory LoggerFactory) *ServerApplication {
	application.loggerFactory = loggerFactory
	return application
}

// WithEnvironmentFile overrides the dotenv file loaded before configuration is read.
func (application *ServerApplication) WithEnvironmentFile(environmentFile string) *ServerApplication {
	application.environmentFile = environmentFile
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if environmentErr := application.loadEnvironmentFile(); environmentErr != nil {
		return nil, environmentErr
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) loadEnvironmentFile() error {
	environmentFile := strings.TrimSpace(application.environmentFile)
	if environmentFile == "" {
		return nil
	}
	if loadErr := godotenv.Load(environmentFile); loadErr != nil {
		if errors.Is(loadErr, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s: %w", environmentFileErrorMessage, loadErr)
	}
	return nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDriverName, defaultDatabaseDriverName)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, "")
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDriverName, defaultDatabaseDriverName, flagUsageDatabaseDriverName)
	commandFlags.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDataSourceName)

	bindings := []struct {
		environmentKey string
		flagName       string
	}{
		{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
		{environmentKey: environmentKeyDatabaseDriverName, flagName: flagNameDatabaseDriverName},
		{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	}

	for _, binding := range bindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameDatabaseDataSourceName); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := ServerConfig{
		ApplicationAddress:     strings.TrimSpace(application.configurationLoader.GetString(environmentKeyApplicationAddress)),
		DatabaseDriverName:     strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDriverName)),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
	}

	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := application.loggerFactory()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	contactStore, storeErr := application.storeOpener(ctx, storage.Config{
		DriverName:     serverConfig.DatabaseDriverName,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if storeErr != nil {
		logger.Error(loggerContextOpenStore, zap.Error(storeErr), zap.String(logFieldDriver, serverConfig.DatabaseDriverName))
		return fmt.Errorf("%s: %w", loggerContextOpenStore, storeErr)
	}
	defer func() {
		if closeErr := contactStore.Close(); closeErr != nil {
			logger.Warn(loggerContextCloseStore, zap.Error(closeErr))
		}
	}()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           newRouter(contactStore, logger),
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	if serveErr := application.serverRunner(ctx, httpServer, logger); serveErr != nil {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}

	return nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.ApplicationAddress == "" {
		missingParameters = append(missingParameters, flagNameApplicationAddress)
	}

	if configuration.DatabaseDriverName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDriverName)
	}

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func listenAndServe(ctx context.Context, httpServer *http.Server, logger *zap.Logger) error {
	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, httpServer.Addr))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return serveErr
	case <-ctx.Done():
		logger.Info(logEventShutdown)
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownContext)
	}
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
