package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/staffauth/jwt"
	"github.com/MrEthical07/staffauth/refresh"
)

// RotateFailureKind classifies rotate flow failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureExpired
	RotateFailureMalformed
	RotateFailureWrongType
	RotateFailureIdentityNotFound
	RotateFailureLookup
	RotateFailurePolicy
	RotateFailureEncode
	RotateFailureReuse
	RotateFailureStore
)

// Rejection reasons reported with RotateFailureReuse.
const (
	ReasonNotFound      = "not_found"
	ReasonOwnerMismatch = "owner_mismatch"
	ReasonRevoked       = "revoked"
)

// RotateResult carries either the rotated pair or failure metadata.
type RotateResult struct {
	Failure RotateFailureKind
	Err     error
	Reason  string
	Subject Subject
	Pair    Pair
	Record  refresh.Record
}

type RotateStore interface {
	Rotate(ctx context.Context, owner, presented, next string) (refresh.Record, error)
}

// RotateDeps captures rotate flow dependencies.
type RotateDeps struct {
	Decode           func(string) (map[string]any, error)
	LookupIdentity   func(ctx context.Context, id string) (Subject, error)
	Admit            func(Subject) error
	Mint             func(Subject) (Pair, error)
	Store            RotateStore
	ExpiredErr       error
	IdentityNotFound error
}

// RunRotate exchanges a refresh token for a new pair. The presented record
// must exist, belong to the token's subject and still be live; on success
// every record of that subject is revoked and the new refresh token is
// recorded in the same store operation.
func RunRotate(ctx context.Context, token string, deps RotateDeps) RotateResult {
	claims, err := deps.Decode(token)
	if err != nil {
		if deps.ExpiredErr != nil && errors.Is(err, deps.ExpiredErr) {
			return RotateResult{Failure: RotateFailureExpired, Err: err}
		}
		return RotateResult{Failure: RotateFailureMalformed, Err: err}
	}
	if !jwt.IsRefresh(claims) {
		return RotateResult{Failure: RotateFailureWrongType, Err: errors.New("not a refresh token")}
	}
	sub, ok := jwt.Subject(claims)
	if !ok {
		return RotateResult{Failure: RotateFailureMalformed, Err: errors.New("missing subject")}
	}

	subject, err := deps.LookupIdentity(ctx, sub)
	if err != nil {
		if deps.IdentityNotFound != nil && errors.Is(err, deps.IdentityNotFound) {
			return RotateResult{Failure: RotateFailureIdentityNotFound, Err: err, Subject: Subject{ID: sub}}
		}
		return RotateResult{Failure: RotateFailureLookup, Err: err, Subject: Subject{ID: sub}}
	}

	if deps.Admit != nil {
		if err := deps.Admit(subject); err != nil {
			return RotateResult{Failure: RotateFailurePolicy, Err: err, Subject: subject}
		}
	}

	pair, err := deps.Mint(subject)
	if err != nil {
		return RotateResult{Failure: RotateFailureEncode, Err: err, Subject: subject}
	}

	rec, err := deps.Store.Rotate(ctx, subject.ID, token, pair.RefreshToken)
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			return RotateResult{Failure: RotateFailureReuse, Err: err, Reason: reason, Subject: subject}
		}
		return RotateResult{Failure: RotateFailureStore, Err: err, Subject: subject}
	}

	return RotateResult{
		Failure: RotateFailureNone,
		Subject: subject,
		Pair:    pair,
		Record:  rec,
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, refresh.ErrRevoked):
		return ReasonRevoked
	case errors.Is(err, refresh.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, refresh.ErrOwnerMismatch):
		return ReasonOwnerMismatch
	default:
		return ""
	}
}
