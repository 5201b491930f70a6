package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrExpired is returned by [Signer.Decode] when the current time is at or past the embedded expiry.
var ErrExpired = errors.New("token expired")

// ErrMalformed is returned by [Signer.Decode] when a token cannot be parsed, fails
// signature verification, or lacks a required claim.
var ErrMalformed = errors.New("token malformed")

const (
	ClaimSubject  = "sub"
	ClaimType     = "type"
	ClaimStaff    = "staff"
	ClaimExpiry   = "exp"
	ClaimIssuedAt = "iat"
	ClaimID       = "jti"
	ClaimIssuer   = "iss"

	// TypeRefresh marks a token minted as a refresh credential.
	TypeRefresh = "refresh"
)

const maxLeeway = 2 * time.Minute

// Config controls HS256 signing and verification.
//
// Secret is the shared symmetric key. It is injected by the caller and never
// read from process-wide state.
type Config struct {
	Secret         []byte
	Issuer         string
	Leeway         time.Duration
	RequiredClaims []string
	Now            func() time.Time
}

// Signer encodes and decodes claim maps as compact HS256 tokens.
//
// Signer holds no mutable state and is safe for concurrent use.
type Signer struct {
	config Config
	parser *jwt.Parser
}

// NewSigner validates cfg and returns a ready [Signer].
//
// RequiredClaims defaults to [ClaimSubject] when nil. Pass an empty non-nil
// slice to require only the expiry.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a secret")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.RequiredClaims == nil {
		cfg.RequiredClaims = []string{ClaimSubject}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
		// Unused trailing bits of the last signature character must be zero.
		jwt.WithStrictDecoding(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Signer{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// Encode signs claims with an expiry of expiresAt.
//
// The input map is not modified. iat and jti are added unless already present,
// so two calls with identical input produce distinct strings.
func (s *Signer) Encode(claims map[string]any, expiresAt time.Time) (string, error) {
	out := make(jwt.MapClaims, len(claims)+4)
	for k, v := range claims {
		out[k] = v
	}
	out[ClaimExpiry] = jwt.NewNumericDate(expiresAt)
	if _, ok := out[ClaimIssuedAt]; !ok {
		out[ClaimIssuedAt] = jwt.NewNumericDate(s.config.Now())
	}
	if _, ok := out[ClaimID]; !ok {
		out[ClaimID] = uuid.NewString()
	}
	if s.config.Issuer != "" {
		if _, ok := out[ClaimIssuer]; !ok {
			out[ClaimIssuer] = s.config.Issuer
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, out)
	signed, err := token.SignedString(s.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns its claims.
//
// Expiry is reported as [ErrExpired] only after the signature has verified, so
// a tampered expired token is still [ErrMalformed].
func (s *Signer) Decode(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, name := range s.config.RequiredClaims {
		if !present(claims[name]) {
			return nil, fmt.Errorf("%w: missing claim %q", ErrMalformed, name)
		}
	}

	return map[string]any(claims), nil
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	default:
		return true
	}
}
