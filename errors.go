package staffauth

import "errors"

// Credential rejections. Each maps to a distinct external status; see
// [ErrorCode].
var (
	// ErrMissingCredential is returned when no bearer token was presented.
	ErrMissingCredential = errors.New("credential missing")
	// ErrMalformedCredential is returned when a token fails parsing, signature
	// verification, or is the wrong kind for the endpoint that received it.
	ErrMalformedCredential = errors.New("credential malformed")
	// ErrExpiredCredential is returned when a correctly signed token is past its expiry.
	ErrExpiredCredential = errors.New("credential expired")
	// ErrWrongCredentialType is returned when an access token is presented for rotation.
	ErrWrongCredentialType = errors.New("credential wrong type")
	// ErrRevokedOrReused is returned when a refresh token is unknown, owned by
	// someone else, or already revoked.
	ErrRevokedOrReused = errors.New("credential revoked or reused")
	// ErrIdentityNotFound is returned when a token's subject no longer resolves.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrStorage is returned when the refresh store or user directory is unavailable.
	ErrStorage = errors.New("credential storage unavailable")
)

var (
	// ErrInvalidLogin is returned by Login for an unknown username or wrong password.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrStaffRequired is returned when issuance is restricted to staff.
	ErrStaffRequired = errors.New("staff membership required")
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrEngineNotReady is returned by Build when a required dependency is missing.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ErrorCode returns the stable machine-readable code for err, or
// "internal_error" when err is not one of this package's sentinels.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredential):
		return "credential_missing"
	case errors.Is(err, ErrMalformedCredential):
		return "credential_invalid"
	case errors.Is(err, ErrExpiredCredential):
		return "credential_expired"
	case errors.Is(err, ErrWrongCredentialType):
		return "credential_wrong_type"
	case errors.Is(err, ErrRevokedOrReused):
		return "credential_revoked"
	case errors.Is(err, ErrIdentityNotFound):
		return "identity_unknown"
	case errors.Is(err, ErrStorage):
		return "storage_unavailable"
	case errors.Is(err, ErrInvalidLogin):
		return "login_invalid"
	case errors.Is(err, ErrStaffRequired):
		return "staff_required"
	default:
		return "internal_error"
	}
}
