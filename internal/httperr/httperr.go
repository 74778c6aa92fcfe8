// Package httperr writes error responses in the fixed JSON shape
// {"error": {"code": ..., "message": ..., "request_id": ...}}.
package httperr

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// Codes in the response body.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeBadRequest      = "bad_request"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Status maps k to an HTTP status and response code. Anything that is not a
// client-side auth failure is internal.
func Status(k portalauth.Kind) (int, string) {
	switch k {
	case portalauth.KindMalformedToken,
		portalauth.KindInvalidEncoding,
		portalauth.KindSignatureMismatch,
		portalauth.KindExpired,
		portalauth.KindRevoked,
		portalauth.KindNoCredentials,
		portalauth.KindNoSession,
		portalauth.KindInvalidCredentials:
		return http.StatusUnauthorized, CodeUnauthenticated
	case portalauth.KindAccountNotActive, portalauth.KindInsufficientRole:
		return http.StatusForbidden, CodeForbidden
	case portalauth.KindInvalidTokenType:
		return http.StatusBadRequest, CodeBadRequest
	case portalauth.KindRateLimited:
		return http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// StatusForGateway maps the reason of a failed gateway Result. Every
// credential failure on a guarded route is 401, including a token of the
// wrong type; only store failures stay internal.
func StatusForGateway(k portalauth.Kind) (int, string) {
	if status, code := Status(k); status == http.StatusInternalServerError {
		return status, code
	}
	return http.StatusUnauthorized, CodeUnauthenticated
}

// WriteGatewayFailure writes the response for a failed gateway Result.
func WriteGatewayFailure(w http.ResponseWriter, r *http.Request, k portalauth.Kind) {
	status, code := StatusForGateway(k)
	message := k.ClientMessage()
	if code == CodeInternal {
		message = "internal error"
	}
	Write(w, r, status, code, message)
}

// WriteKind writes the response for k with its client message.
func WriteKind(w http.ResponseWriter, r *http.Request, k portalauth.Kind) {
	status, code := Status(k)
	message := k.ClientMessage()
	if code == CodeInternal {
		message = "internal error"
	}
	Write(w, r, status, code, message)
}

// WriteError classifies err and writes the matching response. Internal
// errors are logged; their detail never reaches the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	k := portalauth.KindOf(err)
	if status, _ := Status(k); status == http.StatusInternalServerError {
		logging.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(k)),
			slog.Any("error", err),
		)
	}
	WriteKind(w, r, k)
}

// BadRequest writes a 400 with message.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Write(w, r, http.StatusBadRequest, CodeBadRequest, message)
}

// Write writes an error body with the given status and code.
func Write(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := ErrorResponse{Error: APIError{Code: code, Message: message}}
	if r != nil {
		resp.Error.RequestID = r.Header.Get(RequestIDHeader)
	}
	WriteJSON(w, status, resp)
}

// WriteJSON writes v as the JSON body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
