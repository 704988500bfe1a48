// Package api defines the JSON response envelope shared by the server and
// the client.
package api

import "errors"

// Kind classifies an envelope.
type Kind int

const (
	// KindFailure carries an error message and no data.
	KindFailure Kind = iota
	// KindData carries a payload and optionally a message.
	KindData
	// KindMessage carries only a confirmation message.
	KindMessage
	// KindToken carries a CSRF token.
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindMessage:
		return "message"
	case KindToken:
		return "token"
	default:
		return "failure"
	}
}

// Envelope is the wire form of every API response.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Data      *T     `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

// Data builds a successful envelope carrying v.
func Data[T any](v T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &v}
}

// DataMessage builds a successful envelope carrying v and a message.
func DataMessage[T any](v T, msg string) Envelope[T] {
	return Envelope[T]{Success: true, Data: &v, Message: msg}
}

// Message builds a successful envelope with only a message.
func Message(msg string) Envelope[struct{}] {
	return Envelope[struct{}]{Success: true, Message: msg}
}

// Token builds the CSRF token envelope.
func Token(token string) Envelope[struct{}] {
	return Envelope[struct{}]{Success: true, CSRFToken: token}
}

// Failure builds an unsuccessful envelope.
func Failure(msg string) Envelope[struct{}] {
	return Envelope[struct{}]{Success: false, Error: msg}
}

// Kind reports which variant e holds.
func (e Envelope[T]) Kind() Kind {
	switch {
	case !e.Success:
		return KindFailure
	case e.Data != nil:
		return KindData
	case e.CSRFToken != "":
		return KindToken
	default:
		return KindMessage
	}
}

// ErrMissingData is returned when a successful envelope lacks the payload
// the caller needs.
var ErrMissingData = errors.New("response has no data")

// Result is the decoded, classified form of an envelope.
type Result[T any] struct {
	Kind    Kind
	Data    T
	Message string
	Error   string
	Token   string
}

// Result classifies e.
func (e Envelope[T]) Result() Result[T] {
	r := Result[T]{
		Kind:    e.Kind(),
		Message: e.Message,
		Error:   e.Error,
		Token:   e.CSRFToken,
	}
	if e.Data != nil {
		r.Data = *e.Data
	}
	return r
}

// Value returns the payload, or ErrMissingData when the result is not of
// KindData.
func (r Result[T]) Value() (T, error) {
	if r.Kind != KindData {
		var zero T
		return zero, ErrMissingData
	}
	return r.Data, nil
}

// Standard messages.
const (
	MsgTaskCreated   = "task created"
	MsgTaskUpdated   = "task updated"
	MsgTaskDeleted   = "task deleted"
	ErrTitleRequired = "title is required"
	ErrTitleEmpty    = "title cannot be empty"
	ErrTaskNotFound  = "task not found"
	ErrRouteNotFound = "route not found"
	ErrInvalidCSRF   = "invalid CSRF token"
	ErrInvalidBody   = "invalid request body"
	ErrInternal      = "internal server error"
)
