package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// apiError is one row of the error → response table.
type apiError struct {
	status  int
	typ     string
	message string
}

var (
	errUserAlreadyExists   = apiError{http.StatusConflict, "UserAlreadyExists", "User already exists"}
	errInvalidCredentials  = apiError{http.StatusUnauthorized, "InvalidCredentials", "Invalid credentials"}
	errAccessTokenExpired  = apiError{http.StatusUnauthorized, "AccessTokenExpired", "Access token expired"}
	errRefreshTokenExpired = apiError{http.StatusUnauthorized, "RefreshTokenExpired", "Refresh token expired"}
	errUnauthorized        = apiError{http.StatusUnauthorized, "Unauthorized", "Not authorized"}
	errForbidden           = apiError{http.StatusForbidden, "Forbidden", "Operation forbidden"}
	errUserNotFound        = apiError{http.StatusNotFound, "UserNotFound", "User not found"}
	errNotFound            = apiError{http.StatusNotFound, "NotFound", "Resource not found"}
	errMethodNotAllowed    = apiError{http.StatusMethodNotAllowed, "MethodNotAllowed", "Method not allowed"}
	errValidation          = apiError{http.StatusUnprocessableEntity, "ValidationError", "Validation error"}
	errTooManyRequests     = apiError{http.StatusTooManyRequests, "TooManyRequests", "Too many requests"}
	errInternal            = apiError{http.StatusInternalServerError, "InternalServerError", "Internal server error"}
)

var errorTable = []struct {
	err error
	api apiError
}{
	{common.ErrUserAlreadyExists, errUserAlreadyExists},
	{common.ErrInvalidCredentials, errInvalidCredentials},
	{common.ErrAccessTokenExpired, errAccessTokenExpired},
	{common.ErrRefreshTokenExpired, errRefreshTokenExpired},
	{common.ErrorUnauthorized, errUnauthorized},
	{common.ErrorForbidden, errForbidden},
	{common.ErrUserNotFound, errUserNotFound},
	{common.ErrorValidation, errValidation},
}

// lookupError maps err to its response row; unknown errors are internal.
func lookupError(err error) apiError {
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.api
		}
	}
	return errInternal
}

// validationError carries the per-field problems of a rejected request
// body. It matches common.ErrorValidation.
type validationError struct {
	details map[string]string
}

func (e *validationError) Error() string { return common.ErrorValidation.Error() }

func (e *validationError) Unwrap() error { return common.ErrorValidation }

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// writeAPIError renders e. Every 401 carries a Bearer challenge.
func writeAPIError(w http.ResponseWriter, e apiError, details map[string]string) {
	if e.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, e.status, errorBody{Error: errorPayload{
		Type:    e.typ,
		Message: e.message,
		Code:    e.status,
		Details: details,
	}})
}

// writeError renders err through the table. Internal errors are logged
// with their cause; the client only ever sees the generic message.
func writeError(ctx context.Context, w http.ResponseWriter, log logging.Logger, err error) {
	e := lookupError(err)
	if e.status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", "error", err)
	}
	var details map[string]string
	var ve *validationError
	if errors.As(err, &ve) {
		details = ve.details
	}
	writeAPIError(w, e, details)
}
