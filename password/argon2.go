package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	algorithmID           = "argon2id"
	encodedFormat         = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	paramsFormat          = "m=%d,t=%d,p=%d"
)

var (
	// ErrTooShort is returned by Hash for passwords under 10 bytes.
	ErrTooShort = errors.New("password must be at least 10 bytes")
	// ErrMalformedHash is returned when an encoded hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed argon2id hash")
	// ErrWeakConfig is returned by NewArgon2 for parameters below the floor.
	ErrWeakConfig = errors.New("argon2id parameters below minimum")
)

var b64 = base64.RawStdEncoding

// Config holds argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns 64 MiB, three passes, two lanes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies staff passwords. Safe for concurrent use.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg against the minimum cost floor.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("%w: memory %d KiB < %d", ErrWeakConfig, cfg.Memory, minMemoryKB)
	case cfg.Time < 1:
		return nil, fmt.Errorf("%w: time must be >= 1", ErrWeakConfig)
	case cfg.Parallelism < 1:
		return nil, fmt.Errorf("%w: parallelism must be >= 1", ErrWeakConfig)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("%w: salt length %d < %d", ErrWeakConfig, cfg.SaltLength, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("%w: key length %d < %d", ErrWeakConfig, cfg.KeyLength, minKeyLength)
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a PHC-encoded argon2id hash with a fresh random salt.
func (a *Argon2) Hash(plain string) (string, error) {
	if len(plain) < minPassBytes {
		return "", ErrTooShort
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	return fmt.Sprintf(encodedFormat,
		argon2.Version, a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded. The parameters stored in
// encoded are used, not the receiver's, so older hashes keep verifying.
func (a *Argon2) Verify(plain, encoded string) (bool, error) {
	h, err := decode(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(plain), h.salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the receiver's.
func (a *Argon2) NeedsRehash(encoded string) (bool, error) {
	h, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return h.cfg.Memory < a.cfg.Memory ||
		h.cfg.Time < a.cfg.Time ||
		h.cfg.Parallelism < a.cfg.Parallelism ||
		h.cfg.KeyLength != a.cfg.KeyLength, nil
}

type decoded struct {
	cfg  Config
	salt []byte
	key  []byte
}

func decode(encoded string) (decoded, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return decoded{}, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return decoded{}, fmt.Errorf("%w: version %q", ErrMalformedHash, parts[2])
	}

	var out decoded
	if _, err := fmt.Sscanf(parts[3], paramsFormat, &out.cfg.Memory, &out.cfg.Time, &out.cfg.Parallelism); err != nil {
		return decoded{}, fmt.Errorf("%w: params %q", ErrMalformedHash, parts[3])
	}
	if out.cfg.Memory < minMemoryKB || out.cfg.Time < 1 || out.cfg.Parallelism < 1 {
		return decoded{}, fmt.Errorf("%w: params below minimum", ErrMalformedHash)
	}

	var err error
	if out.salt, err = b64.DecodeString(parts[4]); err != nil || uint32(len(out.salt)) < minSaltLength {
		return decoded{}, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.key, err = b64.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return decoded{}, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	out.cfg.SaltLength = uint32(len(out.salt))
	out.cfg.KeyLength = uint32(len(out.key))

	return out, nil
}
