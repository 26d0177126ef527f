// Package contactclient drives the contact form from the visitor's side: it
// validates locally, posts once and reports the outcome.
package contactclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/portfolio/internal/model"
	"github.com/MarkoPoloResearchLab/portfolio/internal/submission"
)

const (
	// ContactPath is the endpoint the form posts to.
	ContactPath = "/api/contact"

	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 1 << 20
	headerContentType     = "Content-Type"
	contentTypeJSON       = "application/json"
)

var (
	// ErrMissingBaseURL indicates the client was built without a server address.
	ErrMissingBaseURL = errors.New("contactclient: missing base url")
	// ErrSubmissionRejected indicates the server answered with a failure envelope.
	ErrSubmissionRejected = errors.New("contactclient: submission rejected")
	// ErrTransport wraps network failures and unreadable responses.
	ErrTransport = errors.New("contactclient: transport failure")
)

// RejectionError carries the server's failure envelope.
type RejectionError struct {
	StatusCode int
	Message    string
	Fields     []model.FieldError
}

func (rejection *RejectionError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrSubmissionRejected.Error(), rejection.StatusCode, rejection.Message)
}

func (rejection *RejectionError) Unwrap() error {
	return ErrSubmissionRejected
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client posts validated submissions to the contact endpoint.
type Client struct {
	endpoint   string
	httpClient HTTPDoer
}

var _ Submitter = (*Client)(nil)

// NewClient builds a Client for the server at baseURL. A nil httpClient
// selects an *http.Client with a bounded timeout.
func NewClient(baseURL string, httpClient HTTPDoer) (*Client, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{endpoint: trimmedBaseURL + ContactPath, httpClient: httpClient}, nil
}

// Submit sends exactly one POST and returns the stored row.
func (client *Client) Submit(ctx context.Context, record submission.Record) (model.ContactSubmission, error) {
	payload, encodeErr := json.Marshal(submission.Input{
		Name:    record.Name,
		Email:   record.Email,
		Subject: record.Subject,
		Message: record.Message,
	})
	if encodeErr != nil {
		return model.ContactSubmission{}, fmt.Errorf("contactclient: encode: %w", encodeErr)
	}

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint, bytes.NewReader(payload))
	if requestErr != nil {
		return model.ContactSubmission{}, fmt.Errorf("contactclient: build request: %w", requestErr)
	}
	request.Header.Set(headerContentType, contentTypeJSON)

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return model.ContactSubmission{}, fmt.Errorf("%w: %v", ErrTransport, doErr)
	}
	defer response.Body.Close()

	var envelope model.ContactEnvelope
	decodeErr := json.NewDecoder(io.LimitReader(response.Body, maxResponseBytes)).Decode(&envelope)

	if response.StatusCode != http.StatusOK || (decodeErr == nil && !envelope.Success) {
		rejection := &RejectionError{StatusCode: response.StatusCode, Message: http.StatusText(response.StatusCode)}
		if decodeErr == nil {
			rejection.Message = envelope.Message
			rejection.Fields = envelope.Errors
		}
		return model.ContactSubmission{}, rejection
	}
	if decodeErr != nil {
		return model.ContactSubmission{}, fmt.Errorf("%w: decode response: %v", ErrTransport, decodeErr)
	}
	if envelope.Data == nil {
		return model.ContactSubmission{}, fmt.Errorf("%w: response without data", ErrTransport)
	}
	return *envelope.Data, nil
}
