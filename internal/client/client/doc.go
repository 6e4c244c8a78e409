// Package client is the HTTP client of the authkeeper API used by the CLI.
//
// HTTPClient keeps the access/refresh token pair obtained at login, sends the
// access token as a bearer credential and, when the server reports the access
// token as expired, refreshes it once and replays the request.
//
// # Error Handling
//
// Non-2xx responses are returned as *APIError. Common conditions unwrap to
// sentinel errors that callers can match with errors.Is: ErrUnauthorized,
// ErrForbidden, ErrConflict, ErrValidation. Transport failures match
// ErrUnavailable.
package client
