package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const (
	qCreate = `
INSERT INTO refresh_tokens (id, value, owner, revoked, created_at)
VALUES ($1, $2, $3, FALSE, $4)
`
	qFindByValue = `
SELECT id, value, owner, revoked, created_at
FROM refresh_tokens
WHERE value = $1
`
	qRevokeAll = `
UPDATE refresh_tokens SET revoked = TRUE
WHERE owner = $1 AND revoked = FALSE
`
	qListForOwner = `
SELECT id, value, owner, revoked, created_at
FROM refresh_tokens
WHERE owner = $1
ORDER BY created_at, id
`
	// qLockOwner takes the owner's live row locks in a fixed order, so two
	// rotations of different siblings queue instead of deadlocking.
	qLockOwner = `
SELECT id FROM refresh_tokens
WHERE owner = $1 AND revoked = FALSE
ORDER BY id
FOR UPDATE
`
	// qClaim is the optimistic guard: only one transaction can move the
	// presented row from live to revoked.
	qClaim = `
UPDATE refresh_tokens SET revoked = TRUE
WHERE value = $1 AND owner = $2 AND revoked = FALSE
`
)

// PostgresStore keeps records in the refresh_tokens table.
type PostgresStore struct {
	db   *sql.DB
	opts options
}

// NewPostgresStore returns a [PostgresStore] over db. The schema is expected to
// be at the latest migration; see [MigratePostgres].
func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{
		db:   db,
		opts: buildOptions(opts),
	}
}

// Create inserts a live record for owner.
func (s *PostgresStore) Create(ctx context.Context, owner, value string) (Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rec := s.newRecord(owner, value)
	if err := insertRecord(ctx, s.db, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// FindByValue loads the record stored under value.
func (s *PostgresStore) FindByValue(ctx context.Context, value string) (Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	return findRecord(ctx, s.db, value)
}

// RevokeAllForOwner flips every live record of owner.
func (s *PostgresStore) RevokeAllForOwner(ctx context.Context, owner string) (int, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var n int
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockOwner(ctx, tx, owner); err != nil {
			return err
		}
		var err error
		n, err = revokeOwner(ctx, tx, owner)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStorage) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: revoke refresh: %v", ErrStorage, err)
	}
	return n, nil
}

// ListForOwner returns owner's records oldest first.
func (s *PostgresStore) ListForOwner(ctx context.Context, owner string) ([]Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, qListForOwner, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: list refresh: %v", ErrStorage, err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Value, &rec.Owner, &rec.Revoked, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan refresh: %v", ErrStorage, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list refresh: %v", ErrStorage, err)
	}
	return out, nil
}

// Rotate consumes presented and inserts next in one transaction.
//
// The owner's live rows are locked first, so rotations for one owner run one
// at a time. The conditional UPDATE then matches zero rows for every loser,
// whether it presented the same value or a sibling the winner revoked.
func (s *PostgresStore) Rotate(ctx context.Context, owner, presented, next string) (Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rec := s.newRecord(owner, next)
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockOwner(ctx, tx, owner); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, qClaim, presented, owner)
		if err != nil {
			return fmt.Errorf("%w: claim refresh: %v", ErrStorage, err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: claim refresh: %v", ErrStorage, err)
		}
		if claimed != 1 {
			return classifyUnclaimed(ctx, tx, owner, presented)
		}

		if _, err := revokeOwner(ctx, tx, owner); err != nil {
			return err
		}
		return insertRecord(ctx, tx, rec)
	})
	if err != nil {
		if errors.Is(err, ErrStorage) || IsRejection(err) || errors.Is(err, ErrDuplicate) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: rotate refresh: %v", ErrStorage, err)
	}
	return rec, nil
}

// Ping checks database availability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) newRecord(owner, value string) Record {
	return Record{
		ID:        uuid.NewString(),
		Value:     value,
		Owner:     owner,
		CreatedAt: s.opts.now().UTC().Truncate(time.Microsecond),
	}
}

func insertRecord(ctx context.Context, db DBTX, rec Record) error {
	if _, err := db.ExecContext(ctx, qCreate, rec.ID, rec.Value, rec.Owner, rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: create refresh: %v", ErrStorage, err)
	}
	return nil
}

func findRecord(ctx context.Context, db DBTX, value string) (Record, error) {
	var rec Record
	err := db.QueryRowContext(ctx, qFindByValue, value).
		Scan(&rec.ID, &rec.Value, &rec.Owner, &rec.Revoked, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: find refresh: %v", ErrStorage, err)
	}
	return rec, nil
}

func lockOwner(ctx context.Context, db DBTX, owner string) error {
	rows, err := db.QueryContext(ctx, qLockOwner, owner)
	if err != nil {
		return fmt.Errorf("%w: lock refresh: %v", ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: lock refresh: %v", ErrStorage, err)
	}
	return nil
}

func revokeOwner(ctx context.Context, db DBTX, owner string) (int, error) {
	res, err := db.ExecContext(ctx, qRevokeAll, owner)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke refresh: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: revoke refresh: %v", ErrStorage, err)
	}
	return int(n), nil
}

func classifyUnclaimed(ctx context.Context, tx DBTX, owner, presented string) error {
	rec, err := findRecord(ctx, tx, presented)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return ErrOwnerMismatch
	}
	return ErrRevoked
}
