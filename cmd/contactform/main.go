package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/portfolio/internal/contactclient"
	"github.com/MarkoPoloResearchLab/portfolio/internal/submission"
)

const (
	commandUseName              = "contactform"
	commandShortDescription     = "Submit a message to the portfolio contact endpoint"
	flagNameEndpoint            = "endpoint"
	flagUsageEndpoint           = "base URL of the contact server"
	environmentKeyEndpoint      = "CONTACT_ENDPOINT"
	defaultEndpoint             = "http://localhost:8080"
	unexpectedArgumentsMessage  = "unexpected command arguments"
	fieldErrorOutputPattern     = "%s: %s\n"
	notificationOutputPattern   = "%s %s\n"
	contactStoredOutputPattern  = "stored contact %d at %s\n"
	commandInitializationFailed = "failed to configure command"
)

var (
	errSubmissionInvalid = errors.New("submission invalid")
	errSubmissionFailed  = errors.New("submission failed")
	errSubmissionBusy    = errors.New("submission already in flight")
)

type contactFormApplication struct {
	configurationLoader *viper.Viper
	httpClient          contactclient.HTTPDoer
	logger              *zap.Logger
}

func newContactFormApplication(httpClient contactclient.HTTPDoer, logger *zap.Logger) *contactFormApplication {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &contactFormApplication{
		configurationLoader: viper.New(),
		httpClient:          httpClient,
		logger:              logger,
	}
}

func (application *contactFormApplication) command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:          commandUseName,
		Short:        commandShortDescription,
		SilenceUsage: true,
		RunE:         application.runCommand,
	}

	commandFlags := rootCommand.Flags()
	commandFlags.String(flagNameEndpoint, defaultEndpoint, flagUsageEndpoint)
	for _, fieldName := range []string{submission.FieldName, submission.FieldEmail, submission.FieldSubject, submission.FieldMessage} {
		commandFlags.String(fieldName, "", fmt.Sprintf("contact %s", fieldName))
	}

	application.configurationLoader.SetDefault(environmentKeyEndpoint, defaultEndpoint)
	application.configurationLoader.AutomaticEnv()
	if bindErr := application.configurationLoader.BindPFlag(environmentKeyEndpoint, commandFlags.Lookup(flagNameEndpoint)); bindErr != nil {
		return nil, bindErr
	}

	return rootCommand, nil
}

func (application *contactFormApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	client, clientErr := contactclient.NewClient(application.configurationLoader.GetString(environmentKeyEndpoint), application.httpClient)
	if clientErr != nil {
		return clientErr
	}

	output := command.OutOrStdout()
	form := contactclient.NewForm(client, contactclient.NotifierFunc(func(notification contactclient.Notification) {
		printNotification(output, notification)
	}), application.logger)

	for _, fieldName := range []string{submission.FieldName, submission.FieldEmail, submission.FieldSubject, submission.FieldMessage} {
		fieldValue, flagErr := command.Flags().GetString(fieldName)
		if flagErr != nil {
			return flagErr
		}
		if setErr := form.SetField(fieldName, fieldValue); setErr != nil {
			return setErr
		}
	}

	outcome := form.Submit(command.Context())
	for _, fieldError := range outcome.FieldErrors {
		fmt.Fprintf(output, fieldErrorOutputPattern, fieldError.Field, fieldError.Message)
	}

	switch outcome.Status {
	case contactclient.OutcomeSucceeded:
		fmt.Fprintf(output, contactStoredOutputPattern, outcome.Contact.ID, outcome.Contact.CreatedAt.Format(time.RFC3339))
		return nil
	case contactclient.OutcomeInvalid:
		return errSubmissionInvalid
	case contactclient.OutcomeBusy:
		return errSubmissionBusy
	default:
		return fmt.Errorf("%w: %w", errSubmissionFailed, outcome.Err)
	}
}

func printNotification(output io.Writer, notification contactclient.Notification) {
	fmt.Fprintf(output, notificationOutputPattern, notification.Title, notification.Description)
}

func main() {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", loggerErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	rootCommand, commandErr := newContactFormApplication(nil, logger).command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailed, commandErr)
		os.Exit(1)
	}
	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
