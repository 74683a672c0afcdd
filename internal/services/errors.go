package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Input error messages returned to the client.
const (
	MsgNoData     = "No data provided"
	MsgNoRows     = "No data found in Excel"
	MsgUnknownRow = "unknown"
)

// InputError is raised before streaming begins when the upload carries no
// usable records.
type InputError struct {
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// RenderError is a per-record substitution failure. It aborts the batch.
type RenderError struct {
	Index      int
	Name       string
	TemplateID string
	Cause      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("record %d (%s) with template %s: %v", e.Index+1, e.displayName(), e.TemplateID, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// ClientMessage is the text shown to the operator.
func (e *RenderError) ClientMessage() string {
	return "Failed to generate document for " + e.displayName()
}

func (e *RenderError) displayName() string {
	if e.Name == "" {
		return MsgUnknownRow
	}
	return e.Name
}

// StreamError is a failure writing the archive or a cancelled request.
type StreamError struct {
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ClientMessage returns the text for an error response body.
func ClientMessage(err error) string {
	var inputErr *InputError
	var renderErr *RenderError
	var streamErr *StreamError
	switch {
	case errors.As(err, &inputErr):
		return inputErr.Message
	case errors.As(err, &renderErr):
		return renderErr.ClientMessage()
	case errors.As(err, &streamErr):
		return "Failed to write archive"
	default:
		return "Internal server error"
	}
}

// HTTPStatus maps a batch error to a status code. Every failure is reported
// as 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
