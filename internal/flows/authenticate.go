package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/staffauth/jwt"
)

// AuthenticateFailureKind classifies access check failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureMissing
	AuthenticateFailureExpired
	AuthenticateFailureMalformed
	AuthenticateFailureIdentityNotFound
	AuthenticateFailureLookup
)

// AuthenticateResult carries either the resolved subject or failure metadata.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	Subject Subject
}

// AuthenticateDeps captures access check dependencies.
type AuthenticateDeps struct {
	Decode           func(string) (map[string]any, error)
	LookupIdentity   func(ctx context.Context, id string) (Subject, error)
	ExpiredErr       error
	IdentityNotFound error
}

var errRefreshAsAccess = errors.New("refresh token presented as access token")

// RunAuthenticate verifies an access token and resolves its subject. Refresh
// tokens are rejected as malformed here.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) AuthenticateResult {
	if token == "" {
		return AuthenticateResult{Failure: AuthenticateFailureMissing, Err: errors.New("no token")}
	}

	claims, err := deps.Decode(token)
	if err != nil {
		if deps.ExpiredErr != nil && errors.Is(err, deps.ExpiredErr) {
			return AuthenticateResult{Failure: AuthenticateFailureExpired, Err: err}
		}
		return AuthenticateResult{Failure: AuthenticateFailureMalformed, Err: err}
	}
	if jwt.IsRefresh(claims) {
		return AuthenticateResult{Failure: AuthenticateFailureMalformed, Err: errRefreshAsAccess}
	}
	sub, ok := jwt.Subject(claims)
	if !ok {
		return AuthenticateResult{Failure: AuthenticateFailureMalformed, Err: errors.New("missing subject")}
	}

	subject, err := deps.LookupIdentity(ctx, sub)
	if err != nil {
		if deps.IdentityNotFound != nil && errors.Is(err, deps.IdentityNotFound) {
			return AuthenticateResult{Failure: AuthenticateFailureIdentityNotFound, Err: err, Subject: Subject{ID: sub}}
		}
		return AuthenticateResult{Failure: AuthenticateFailureLookup, Err: err, Subject: Subject{ID: sub}}
	}

	return AuthenticateResult{Failure: AuthenticateFailureNone, Subject: subject}
}
