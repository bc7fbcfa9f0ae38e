package routes

import (
	"context"
	"errors"
	"net/http"

	"volunteer-attendance/internal/reconcile"
	"volunteer-attendance/internal/records"
	"volunteer-attendance/internal/storage"
	"volunteer-attendance/internal/ticketing"
)

// HTTPError carries an explicit status and user message for an error.
type HTTPError struct {
	Err        error
	StatusCode int
	Message    string
	StopCodes  []string
}

// ErrorInfo is the user-facing part of an error response.
type ErrorInfo struct {
	Message   string
	StopCodes []string
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
	}
}

type knownError struct {
	match  func(error) bool
	status int
	info   ErrorInfo
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isAPIError(err error) bool {
	var apiErr *ticketing.APIError
	return errors.As(err, &apiErr)
}

// knownErrors is checked in order. Credential failures are listed before
// generic upstream errors so an APIError wrapping ErrUnauthorized keeps its code.
var knownErrors = []knownError{
	{is(reconcile.ErrRunInProgress), http.StatusConflict, ErrorInfo{"A sync run is already in progress", []string{"SYNC_IN_PROGRESS"}}},
	{is(ticketing.ErrUnauthorized), http.StatusBadGateway, ErrorInfo{"The registration platform rejected our credentials", []string{"TICKETING_UNAUTHORIZED"}}},
	{is(context.DeadlineExceeded), http.StatusGatewayTimeout, ErrorInfo{"The registration platform did not answer in time", []string{"TICKETING_TIMEOUT"}}},
	{isAPIError, http.StatusBadGateway, ErrorInfo{"The registration platform returned an error", []string{"TICKETING_ERROR"}}},
	{is(storage.ErrListNotFound), http.StatusInternalServerError, ErrorInfo{Message: "Record store is not provisioned"}},
	{is(records.ErrInvalidReference), http.StatusInternalServerError, ErrorInfo{Message: "Record store is inconsistent"}},
}

func lookup(err error) (knownError, bool) {
	for _, k := range knownErrors {
		if k.match(err) {
			return k, true
		}
	}
	return knownError{}, false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// GetErrorInfo returns the message and stop codes for an error. Unknown
// server errors get a generic message so internals stay in the log.
func GetErrorInfo(err error) ErrorInfo {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{Message: httpErr.Message, StopCodes: httpErr.StopCodes}
	}
	if k, ok := lookup(err); ok {
		return k.info
	}
	if GetErrorStatus(err) >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}
