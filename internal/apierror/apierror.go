package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is reported when the caller went away before
// the upstream answered.
const StatusClientClosedRequest = 499

// Error is the JSON body of every failed response. Code is the
// application-level error code and usually, but not necessarily, equals the
// HTTP status.
type Error struct {
	Code       int    `json:"error_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Status     int    `json:"-"`
	underlying error
}

func (e *Error) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// HTTPStatus returns the transport status to write for the error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Code
}

// WriteJSON writes the error as the whole response.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	body, err := json.Marshal(e)
	if err != nil {
		body = []byte(`{"error_code":500,"message":"HTTP 500 Internal Server Error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPStatus())
	w.Write(body)
}

// New creates an error whose code and HTTP status are both code.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that keeps err for logging and errors.Is.
func Wrap(err error, code int, message string) *Error {
	return &Error{Code: code, Message: message, underlying: err}
}

// WithDetails returns a copy carrying client-visible diagnostic detail.
func (e *Error) WithDetails(details string) *Error {
	c := *e
	c.Details = details
	return &c
}

// Message formats the canonical "HTTP <code> <text>" message.
func Message(code int) string {
	text := http.StatusText(code)
	if code == StatusClientClosedRequest {
		text = "Client Closed Request"
	}
	return fmt.Sprintf("HTTP %d %s", code, text)
}

// Common errors
var (
	ErrNotFound            = New(http.StatusNotFound, Message(http.StatusNotFound))
	ErrBadRequest          = New(http.StatusBadRequest, Message(http.StatusBadRequest))
	ErrBadGateway          = New(http.StatusBadGateway, Message(http.StatusBadGateway))
	ErrGatewayTimeout      = New(http.StatusGatewayTimeout, Message(http.StatusGatewayTimeout))
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, Message(http.StatusServiceUnavailable))
	ErrInternalServer      = New(http.StatusInternalServerError, Message(http.StatusInternalServerError))
	ErrRequestTooLarge     = New(http.StatusRequestEntityTooLarge, Message(http.StatusRequestEntityTooLarge))
	ErrClientClosedRequest = New(StatusClientClosedRequest, Message(StatusClientClosedRequest))
)
