package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
	"github.com/MarkoPoloResearchLab/portfolio/internal/storage"
	"github.com/MarkoPoloResearchLab/portfolio/internal/submission"
)

const (
	// MessageContactStored is returned with a successfully stored submission.
	MessageContactStored = "Message stored successfully"
	// MessageInvalidFormData is returned when the body fails the schema.
	MessageInvalidFormData = "Invalid form data"
	// MessageInternalError is the only detail callers see for store failures.
	MessageInternalError = "Internal server error"

	// ErrorFieldBody names the whole request body in field errors.
	ErrorFieldBody = "body"
	// ErrorCodeInvalidJSON flags a body that is not a JSON object.
	ErrorCodeInvalidJSON = "invalid_json"

	errorMessageInvalidJSON = "Expected a JSON object"

	maxContactBodyBytes = 64 << 10
)

// ContactHandlers serve the contact form endpoints.
type ContactHandlers struct {
	store  storage.ContactStore
	logger *zap.Logger
}

// NewContactHandlers binds the handlers to a long-lived store handle.
func NewContactHandlers(store storage.ContactStore, logger *zap.Logger) *ContactHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactHandlers{store: store, logger: logger}
}

// CreateContact handles POST /api/contact.
func (handlers *ContactHandlers) CreateContact(context *gin.Context) {
	context.Request.Body = http.MaxBytesReader(context.Writer, context.Request.Body, maxContactBodyBytes)

	var payload map[string]any
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil || payload == nil {
		context.JSON(http.StatusBadRequest, model.ContactEnvelope{
			Success: false,
			Message: MessageInvalidFormData,
			Errors: []model.FieldError{{
				Field:   ErrorFieldBody,
				Code:    ErrorCodeInvalidJSON,
				Message: errorMessageInvalidJSON,
			}},
		})
		return
	}

	record, parseErr := submission.Parse(payload)
	if parseErr != nil {
		var validationError *submission.ValidationError
		if errors.As(parseErr, &validationError) {
			context.JSON(http.StatusBadRequest, model.ContactEnvelope{
				Success: false,
				Message: MessageInvalidFormData,
				Errors:  validationError.Fields,
			})
			return
		}
		handlers.respondInternalError(context, "validate_contact", parseErr)
		return
	}

	contact, createErr := handlers.store.CreateContact(context.Request.Context(), record)
	if createErr != nil {
		handlers.respondInternalError(context, "save_contact", createErr)
		return
	}

	handlers.logger.Info("contact_received",
		zap.Int64("contact_id", contact.ID),
		zap.String("request_id", RequestIDFromContext(context)),
	)
	context.JSON(http.StatusOK, model.ContactEnvelope{
		Success: true,
		Message: MessageContactStored,
		Data:    &contact,
	})
}

// ListContacts handles GET /api/contacts.
func (handlers *ContactHandlers) ListContacts(context *gin.Context) {
	contacts, listErr := handlers.store.ListContacts(context.Request.Context())
	if listErr != nil {
		handlers.respondInternalError(context, "list_contacts", listErr)
		return
	}
	if contacts == nil {
		contacts = []model.ContactSubmission{}
	}
	context.JSON(http.StatusOK, contacts)
}

func (handlers *ContactHandlers) respondInternalError(context *gin.Context, event string, cause error) {
	handlers.logger.Error(event,
		zap.Error(cause),
		zap.String("request_id", RequestIDFromContext(context)),
	)
	context.JSON(http.StatusInternalServerError, model.ContactEnvelope{
		Success: false,
		Message: MessageInternalError,
	})
}
