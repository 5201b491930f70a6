package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a token value.
	ErrNotFound = errors.New("refresh record not found")
	// ErrRevoked is returned by Rotate when the presented record is already revoked.
	ErrRevoked = errors.New("refresh record revoked")
	// ErrOwnerMismatch is returned by Rotate when the presented record belongs to another owner.
	ErrOwnerMismatch = errors.New("refresh record owner mismatch")
	// ErrDuplicate is returned when a record with the same value already exists.
	ErrDuplicate = errors.New("refresh record already exists")
	// ErrStorage wraps every backend failure, including operation timeouts.
	ErrStorage = errors.New("refresh storage unavailable")
)

// Record is one persisted refresh credential.
type Record struct {
	ID        string
	Value     string
	Owner     string
	Revoked   bool
	CreatedAt time.Time
}

// Store is the durable ledger of refresh credentials.
//
// Implementations must give read-after-write consistency for the revoked flag:
// once RevokeAllForOwner or Rotate returns, every FindByValue observes it.
type Store interface {
	// Create inserts a non-revoked record.
	Create(ctx context.Context, owner, value string) (Record, error)
	// FindByValue returns ErrNotFound when value was never stored.
	FindByValue(ctx context.Context, value string) (Record, error)
	// RevokeAllForOwner flips every live record of owner and reports how many
	// changed. Owners with no records are a no-op.
	RevokeAllForOwner(ctx context.Context, owner string) (int, error)
	// ListForOwner returns owner's records oldest first.
	ListForOwner(ctx context.Context, owner string) ([]Record, error)
	// Rotate atomically checks that presented exists, belongs to owner and is
	// live, revokes every record of owner, and inserts next. On any failure
	// nothing is changed.
	Rotate(ctx context.Context, owner, presented, next string) (Record, error)
	// Ping reports backend availability.
	Ping(ctx context.Context) error
}

const (
	defaultPrefix    = "srt"
	defaultOpTimeout = 2 * time.Second
)

// Option customizes a store constructor.
type Option func(*options)

type options struct {
	prefix    string
	opTimeout time.Duration
	now       func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{
		prefix:    defaultPrefix,
		opTimeout: defaultOpTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithPrefix sets the Redis key namespace. Ignored by PostgresStore.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithOpTimeout bounds every store operation. Zero or negative disables the bound.
func WithOpTimeout(d time.Duration) Option {
	return func(o *options) {
		o.opTimeout = d
	}
}

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opTimeout)
}

// Digest is the storage key derived from a token value.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// IsRejection reports whether err is a Rotate check failure rather than a backend fault.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRevoked) || errors.Is(err, ErrOwnerMismatch)
}
