package contactclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
	"github.com/MarkoPoloResearchLab/portfolio/internal/submission"
)

const (
	NotificationTitleSuccess       = "Message sent successfully!"
	NotificationDescriptionSuccess = "I'll get back to you soon."
	NotificationTitleFailure       = "Failed to send message"
	NotificationDescriptionFailure = "Please try again or email me directly."
)

// ErrUnknownField indicates SetField was called with a name outside the schema.
var ErrUnknownField = errors.New("contactclient: unknown field")

// NotificationKind separates success toasts from destructive ones.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationFailure NotificationKind = "failure"
)

// Notification is a user-facing message raised after a submit completes.
type Notification struct {
	Kind        NotificationKind
	Title       string
	Description string
}

// Notifier displays notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (notify NotifierFunc) Notify(notification Notification) {
	notify(notification)
}

// Submitter sends one validated record to the server.
type Submitter interface {
	Submit(ctx context.Context, record submission.Record) (model.ContactSubmission, error)
}

// Values holds the four editable form controls.
type Values struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// OutcomeStatus classifies the result of a submit action.
type OutcomeStatus string

const (
	// OutcomeInvalid means local validation failed and nothing was sent.
	OutcomeInvalid OutcomeStatus = "invalid"
	// OutcomeBusy means a submission was already in flight; the control is disabled.
	OutcomeBusy OutcomeStatus = "busy"
	// OutcomeSucceeded means the server stored the submission.
	OutcomeSucceeded OutcomeStatus = "succeeded"
	// OutcomeFailed means the request failed or the server refused it.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome reports what a submit action did.
type Outcome struct {
	Status      OutcomeStatus
	FieldErrors []submission.FieldError
	Contact     *model.ContactSubmission
	Err         error
}

// Form is the contact form controller. It is safe for concurrent use.
type Form struct {
	submitter Submitter
	notifier  Notifier
	logger    *zap.Logger

	mutex       sync.Mutex
	values      Values
	fieldErrors []submission.FieldError
	pending     bool
}

// NewForm builds an empty form. A nil notifier or logger discards output.
func NewForm(submitter Submitter, notifier Notifier, logger *zap.Logger) *Form {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Form{submitter: submitter, notifier: notifier, logger: logger}
}

// SetValues replaces every control's value.
func (form *Form) SetValues(values Values) {
	form.mutex.Lock()
	defer form.mutex.Unlock()
	form.values = values
}

// SetField updates one control by its schema name.
func (form *Form) SetField(name string, value string) error {
	form.mutex.Lock()
	defer form.mutex.Unlock()
	switch name {
	case submission.FieldName:
		form.values.Name = value
	case submission.FieldEmail:
		form.values.Email = value
	case submission.FieldSubject:
		form.values.Subject = value
	case submission.FieldMessage:
		form.values.Message = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// Values returns the current control values.
func (form *Form) Values() Values {
	form.mutex.Lock()
	defer form.mutex.Unlock()
	return form.values
}

// FieldErrors returns the messages currently displayed next to controls.
func (form *Form) FieldErrors() []submission.FieldError {
	form.mutex.Lock()
	defer form.mutex.Unlock()
	return append([]submission.FieldError(nil), form.fieldErrors...)
}

// Pending reports whether a submission is in flight and the submit control disabled.
func (form *Form) Pending() bool {
	form.mutex.Lock()
	defer form.mutex.Unlock()
	return form.pending
}

// Submit validates locally and, when valid, performs exactly one request.
// Fields are cleared only after the server confirms storage.
func (form *Form) Submit(ctx context.Context) Outcome {
	form.mutex.Lock()
	if form.pending {
		form.mutex.Unlock()
		return Outcome{Status: OutcomeBusy}
	}
	record, validateErr := submission.Validate(submission.Input{
		Name:    form.values.Name,
		Email:   form.values.Email,
		Subject: form.values.Subject,
		Message: form.values.Message,
	})
	if validateErr != nil {
		var validationError *submission.ValidationError
		if errors.As(validateErr, &validationError) {
			form.fieldErrors = validationError.Fields
		}
		fieldErrors := append([]submission.FieldError(nil), form.fieldErrors...)
		form.mutex.Unlock()
		return Outcome{Status: OutcomeInvalid, FieldErrors: fieldErrors, Err: validateErr}
	}
	form.fieldErrors = nil
	form.pending = true
	form.mutex.Unlock()

	settled := false
	defer func() {
		if settled {
			return
		}
		form.mutex.Lock()
		form.pending = false
		form.mutex.Unlock()
	}()

	contact, submitErr := form.submitter.Submit(ctx, record)

	form.mutex.Lock()
	form.pending = false
	settled = true
	if submitErr != nil {
		var rejection *RejectionError
		if errors.As(submitErr, &rejection) && len(rejection.Fields) > 0 {
			form.fieldErrors = rejection.Fields
		}
		fieldErrors := append([]submission.FieldError(nil), form.fieldErrors...)
		form.mutex.Unlock()

		form.logger.Warn("contact_submit_failed", zap.Error(submitErr))
		form.notifier.Notify(Notification{
			Kind:        NotificationFailure,
			Title:       NotificationTitleFailure,
			Description: NotificationDescriptionFailure,
		})
		return Outcome{Status: OutcomeFailed, FieldErrors: fieldErrors, Err: submitErr}
	}
	form.values = Values{}
	form.mutex.Unlock()

	form.notifier.Notify(Notification{
		Kind:        NotificationSuccess,
		Title:       NotificationTitleSuccess,
		Description: NotificationDescriptionSuccess,
	})
	return Outcome{Status: OutcomeSucceeded, Contact: &contact}
}
