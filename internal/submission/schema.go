// Package submission holds the contact form schema shared by the server
// endpoint and the client form controller.
package submission

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
)

const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldSubject = "subject"
	FieldMessage = "message"

	CodeMissing   = "missing"
	CodeNotEmail  = "not_email"
	CodeTooLong   = "too_long"
	CodeNotString = "not_string"
	CodeInvalid   = "invalid"

	NameMaxLength    = 200
	EmailMaxLength   = 320
	SubjectMaxLength = 300
	MessageMaxLength = 5000

	messageMissing   = "Required"
	messageNotEmail  = "Invalid email"
	messageTooLong   = "Must be at most %s characters"
	messageNotString = "Expected string"
	messageInvalid   = "Invalid value"

	validatorTagRequired = "required"
	validatorTagEmail    = "email"
	validatorTagMax      = "max"
	jsonTagName          = "json"
)

// ErrInvalidSubmission is matched by every *ValidationError.
var ErrInvalidSubmission = errors.New("invalid_submission")

var fieldOrder = []string{FieldName, FieldEmail, FieldSubject, FieldMessage}

var schemaValidator = newSchemaValidator()

// Input carries the four raw values of a contact form.
type Input struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,max=320,email"`
	Subject string `json:"subject" validate:"required,max=300"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Record is a submission that passed validation. Values are trimmed.
type Record struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// FieldError describes one rejected field.
type FieldError = model.FieldError

// ValidationError enumerates every field that failed, in schema order.
type ValidationError struct {
	Fields []FieldError
}

func (validationError *ValidationError) Error() string {
	descriptions := make([]string, 0, len(validationError.Fields))
	for _, fieldError := range validationError.Fields {
		descriptions = append(descriptions, fmt.Sprintf("%s (%s)", fieldError.Field, fieldError.Code))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSubmission.Error(), strings.Join(descriptions, ", "))
}

func (validationError *ValidationError) Unwrap() error {
	return ErrInvalidSubmission
}

// Field returns the error recorded for the named field, if any.
func (validationError *ValidationError) Field(name string) (FieldError, bool) {
	for _, fieldError := range validationError.Fields {
		if fieldError.Field == name {
			return fieldError, true
		}
	}
	return FieldError{}, false
}

// Validate trims the input and checks it against the schema.
func Validate(input Input) (Record, error) {
	trimmed := Input{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Subject: strings.TrimSpace(input.Subject),
		Message: strings.TrimSpace(input.Message),
	}

	if validateErr := schemaValidator.Struct(trimmed); validateErr != nil {
		var validatorErrors validator.ValidationErrors
		if !errors.As(validateErr, &validatorErrors) {
			return Record{}, fmt.Errorf("submission: validate: %w", validateErr)
		}
		fieldErrors := make([]FieldError, 0, len(validatorErrors))
		for _, validatorError := range validatorErrors {
			fieldErrors = append(fieldErrors, translateFieldError(validatorError))
		}
		return Record{}, &ValidationError{Fields: orderFieldErrors(fieldErrors)}
	}

	return Record{
		Name:    trimmed.Name,
		Email:   trimmed.Email,
		Subject: trimmed.Subject,
		Message: trimmed.Message,
	}, nil
}

// Parse validates an arbitrary decoded JSON object. Unknown keys are ignored.
func Parse(raw map[string]any) (Record, error) {
	values := make(map[string]string, len(fieldOrder))
	var typeErrors []FieldError
	for _, fieldName := range fieldOrder {
		rawValue, present := raw[fieldName]
		if !present || rawValue == nil {
			continue
		}
		text, isString := rawValue.(string)
		if !isString {
			typeErrors = append(typeErrors, FieldError{Field: fieldName, Code: CodeNotString, Message: messageNotString})
			continue
		}
		values[fieldName] = text
	}

	record, validateErr := Validate(Input{
		Name:    values[FieldName],
		Email:   values[FieldEmail],
		Subject: values[FieldSubject],
		Message: values[FieldMessage],
	})
	if len(typeErrors) == 0 {
		return record, validateErr
	}

	var validationError *ValidationError
	if validateErr != nil && !errors.As(validateErr, &validationError) {
		return Record{}, validateErr
	}
	merged := typeErrors
	if validationError != nil {
		for _, fieldError := range validationError.Fields {
			if !containsField(typeErrors, fieldError.Field) {
				merged = append(merged, fieldError)
			}
		}
	}
	return Record{}, &ValidationError{Fields: orderFieldErrors(merged)}
}

func newSchemaValidator() *validator.Validate {
	schema := validator.New(validator.WithRequiredStructEnabled())
	schema.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get(jsonTagName), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return schema
}

func translateFieldError(validatorError validator.FieldError) FieldError {
	fieldName := validatorError.Field()
	switch validatorError.Tag() {
	case validatorTagRequired:
		return FieldError{Field: fieldName, Code: CodeMissing, Message: messageMissing}
	case validatorTagEmail:
		return FieldError{Field: fieldName, Code: CodeNotEmail, Message: messageNotEmail}
	case validatorTagMax:
		return FieldError{Field: fieldName, Code: CodeTooLong, Message: fmt.Sprintf(messageTooLong, validatorError.Param())}
	default:
		return FieldError{Field: fieldName, Code: CodeInvalid, Message: messageInvalid}
	}
}

func orderFieldErrors(fieldErrors []FieldError) []FieldError {
	ordered := make([]FieldError, 0, len(fieldErrors))
	for _, fieldName := range fieldOrder {
		for _, fieldError := range fieldErrors {
			if fieldError.Field == fieldName {
				ordered = append(ordered, fieldError)
			}
		}
	}
	return ordered
}

func containsField(fieldErrors []FieldError, fieldName string) bool {
	for _, fieldError := range fieldErrors {
		if fieldError.Field == fieldName {
			return true
		}
	}
	return false
}
