package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound  int64 = 0
	rotateStatusMismatch  int64 = 1
	rotateStatusRevoked   int64 = 2
	rotateStatusDuplicate int64 = 3
	rotateStatusRotated   int64 = 4
)

// revoke_owner walks the owner index and flips every live record.
const revokeOwnerChunk = `
local function revoke_owner(index_key, record_prefix)
  local members = redis.call("ZRANGE", index_key, 0, -1)
  local n = 0
  for _, digest in ipairs(members) do
    local key = record_prefix .. digest
    if redis.call("HGET", key, "revoked") == "0" then
      redis.call("HSET", key, "revoked", "1")
      n = n + 1
    end
  end
  return n
end
`

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "value", ARGV[2], "owner", ARGV[3], "revoked", "0", "created_at", ARGV[4])
redis.call("ZADD", KEYS[2], ARGV[4], ARGV[5])
return 1
`

const revokeAllScript = revokeOwnerChunk + `
return revoke_owner(KEYS[1], ARGV[1])
`

// KEYS: presented record, owner index, next record.
// ARGV: owner, record prefix, next id, next value, created_at ms, next digest.
const rotateScript = revokeOwnerChunk + `
local rec = redis.call("HMGET", KEYS[1], "owner", "revoked")
if not rec[1] then
  return {0, 0}
end
if rec[1] ~= ARGV[1] then
  return {1, 0}
end
if rec[2] ~= "0" then
  return {2, 0}
end
if redis.call("EXISTS", KEYS[3]) == 1 then
  return {3, 0}
end
local n = revoke_owner(KEYS[2], ARGV[2])
redis.call("HSET", KEYS[3], "id", ARGV[3], "value", ARGV[4], "owner", ARGV[1], "revoked", "0", "created_at", ARGV[5])
redis.call("ZADD", KEYS[2], ARGV[5], ARGV[6])
return {4, n}
`

var (
	createLua    = redis.NewScript(createScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
	rotateLua    = redis.NewScript(rotateScript)
)

// RedisStore keeps records as Redis hashes with a per-owner sorted-set index.
//
// Keys never expire: revoked records are the replay ledger. The Lua scripts
// touch record keys derived at runtime, so the store targets a single Redis
// node (or a client whose keys all hash to one slot).
type RedisStore struct {
	redis redis.UniversalClient
	opts  options
}

// NewRedisStore returns a [RedisStore] over client.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{
		redis: client,
		opts:  buildOptions(opts),
	}
}

func (s *RedisStore) recordPrefix() string {
	return s.opts.prefix + ":t:"
}

func (s *RedisStore) recordKey(digest string) string {
	return s.recordPrefix() + digest
}

func (s *RedisStore) ownerKey(owner string) string {
	return s.opts.prefix + ":o:" + owner
}

// Create inserts a live record for owner.
//
//	Performance: 1 Lua EVALSHA (EXISTS + HSET + ZADD).
func (s *RedisStore) Create(ctx context.Context, owner, value string) (Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rec := Record{
		ID:        uuid.NewString(),
		Value:     value,
		Owner:     owner,
		CreatedAt: s.opts.now().UTC().Truncate(time.Millisecond),
	}
	digest := Digest(value)

	created, err := createLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(digest), s.ownerKey(owner)},
		rec.ID,
		rec.Value,
		rec.Owner,
		rec.CreatedAt.UnixMilli(),
		digest,
	).Int64()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if created == 0 {
		return Record{}, ErrDuplicate
	}
	return rec, nil
}

// FindByValue loads the record stored under value.
//
//	Performance: 1 Redis HGETALL.
func (s *RedisStore) FindByValue(ctx context.Context, value string) (Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	fields, err := s.redis.HGetAll(ctx, s.recordKey(Digest(value))).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return parseRecord(fields)
}

// RevokeAllForOwner flips every live record of owner in one script.
//
//	Performance: 1 Lua EVALSHA, O(records of owner).
func (s *RedisStore) RevokeAllForOwner(ctx context.Context, owner string) (int, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	n, err := revokeAllLua.Run(ctx, s.redis, []string{s.ownerKey(owner)}, s.recordPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return int(n), nil
}

// ListForOwner returns owner's records oldest first.
//
//	Performance: 1 ZRANGE + 1 pipelined HGETALL per record.
func (s *RedisStore) ListForOwner(ctx context.Context, owner string) ([]Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	digests, err := s.redis.ZRange(ctx, s.ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(digests) == 0 {
		return []Record{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(digests))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, digest := range digests {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(digest))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	out := make([]Record, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Rotate runs check, revoke-all and insert as one Lua script, so concurrent
// rotations of the same value serialize inside Redis and only one observes
// the record live.
//
//	Performance: 1 Lua EVALSHA.
//	Security: the script is the single point where a refresh value is consumed.
func (s *RedisStore) Rotate(ctx context.Context, owner, presented, next string) (Record, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rec := Record{
		ID:        uuid.NewString(),
		Value:     next,
		Owner:     owner,
		CreatedAt: s.opts.now().UTC().Truncate(time.Millisecond),
	}
	nextDigest := Digest(next)

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{
			s.recordKey(Digest(presented)),
			s.ownerKey(owner),
			s.recordKey(nextDigest),
		},
		owner,
		s.recordPrefix(),
		rec.ID,
		rec.Value,
		rec.CreatedAt.UnixMilli(),
		nextDigest,
	).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return Record{}, fmt.Errorf("%w: invalid rotate script response", ErrStorage)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return Record{}, fmt.Errorf("%w: invalid rotate script status", ErrStorage)
	}

	switch code {
	case rotateStatusNotFound:
		return Record{}, ErrNotFound
	case rotateStatusMismatch:
		return Record{}, ErrOwnerMismatch
	case rotateStatusRevoked:
		return Record{}, ErrRevoked
	case rotateStatusDuplicate:
		return Record{}, ErrDuplicate
	case rotateStatusRotated:
		return rec, nil
	default:
		return Record{}, fmt.Errorf("%w: unknown rotate script status %d", ErrStorage, code)
	}
}

// Ping checks Redis availability.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func parseRecord(fields map[string]string) (Record, error) {
	ms, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: corrupt created_at: %v", ErrStorage, err)
	}
	revoked := fields["revoked"]
	if revoked != "0" && revoked != "1" {
		return Record{}, errors.Join(ErrStorage, fmt.Errorf("corrupt revoked flag %q", revoked))
	}
	return Record{
		ID:        fields["id"],
		Value:     fields["value"],
		Owner:     fields["owner"],
		Revoked:   revoked == "1",
		CreatedAt: time.UnixMilli(ms).UTC(),
	}, nil
}
