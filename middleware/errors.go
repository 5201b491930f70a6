package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MrEthical07/staffauth"
)

// ErrorBody is the JSON shape of every rejection.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorMessages = map[string]string{
	"credential_missing":    "no token provided",
	"credential_invalid":    "invalid token",
	"credential_expired":    "signature expired, renew your token using your refresh token",
	"credential_wrong_type": "a refresh token is required",
	"credential_revoked":    "refresh token revoked or already used",
	"identity_unknown":      "invalid token",
	"storage_unavailable":   "credential storage unavailable, retry later",
	"login_invalid":         "invalid username or password",
	"staff_required":        "staff membership required",
	"internal_error":        "internal error",
}

// HTTPStatus maps an engine error to its response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, staffauth.ErrMissingCredential),
		errors.Is(err, staffauth.ErrMalformedCredential),
		errors.Is(err, staffauth.ErrIdentityNotFound),
		errors.Is(err, staffauth.ErrInvalidLogin):
		return http.StatusUnauthorized
	case errors.Is(err, staffauth.ErrExpiredCredential),
		errors.Is(err, staffauth.ErrStaffRequired):
		return http.StatusForbidden
	case errors.Is(err, staffauth.ErrWrongCredentialType):
		return http.StatusBadRequest
	case errors.Is(err, staffauth.ErrRevokedOrReused):
		return http.StatusConflict
	case errors.Is(err, staffauth.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON ErrorBody with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	code := staffauth.ErrorCode(err)
	w.Header().Set("Content-Type", "application/json")
	if errors.Is(err, staffauth.ErrMissingCredential) || errors.Is(err, staffauth.ErrMalformedCredential) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="staff"`)
	}
	w.WriteHeader(HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: code, Message: errorMessages[code]})
}

func grpcStatus(err error) error {
	var c codes.Code
	switch {
	case errors.Is(err, staffauth.ErrMissingCredential),
		errors.Is(err, staffauth.ErrMalformedCredential),
		errors.Is(err, staffauth.ErrIdentityNotFound):
		c = codes.Unauthenticated
	case errors.Is(err, staffauth.ErrExpiredCredential):
		c = codes.PermissionDenied
	case errors.Is(err, staffauth.ErrWrongCredentialType):
		c = codes.InvalidArgument
	case errors.Is(err, staffauth.ErrRevokedOrReused):
		c = codes.FailedPrecondition
	case errors.Is(err, staffauth.ErrStorage):
		c = codes.Unavailable
	default:
		c = codes.Internal
	}
	code := staffauth.ErrorCode(err)
	return status.Error(c, code+": "+errorMessages[code])
}
