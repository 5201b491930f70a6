package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("kitchen-pass-secret-0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestSigner(t *testing.T, clock *fakeClock) *Signer {
	t.Helper()
	cfg := Config{Secret: testSecret}
	if clock != nil {
		cfg.Now = clock.Now
	}
	s, err := NewSigner(cfg)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	if _, err := NewSigner(Config{}); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
	if _, err := NewSigner(Config{Secret: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected oversized leeway to be rejected")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := newTestSigner(t, nil)

	in := map[string]any{
		ClaimSubject: "staff-42",
		ClaimType:    TypeRefresh,
		ClaimStaff:   true,
		"station":    "grill",
	}
	token, err := s.Encode(in, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := s.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for k, v := range in {
		if out[k] != v {
			t.Fatalf("claim %q: got %v want %v", k, out[k], v)
		}
	}
	if _, ok := ExpiresAt(out); !ok {
		t.Fatal("expected exp claim to be numeric")
	}
	if _, ok := in[ClaimID]; ok {
		t.Fatal("encode must not mutate caller claims")
	}
}

func TestEncodeProducesDistinctTokens(t *testing.T) {
	s := newTestSigner(t, nil)
	exp := time.Now().Add(time.Minute)
	claims := map[string]any{ClaimSubject: "staff-1"}

	a, err := s.Encode(claims, exp)
	if err != nil {
		t.Fatalf("encode a: %v", err)
	}
	b, err := s.Encode(claims, exp)
	if err != nil {
		t.Fatalf("encode b: %v", err)
	}
	if a == b {
		t.Fatal("expected identical input to yield distinct tokens")
	}
	for _, tok := range []string{a, b} {
		if _, err := s.Decode(tok); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}

func TestDecodeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestSigner(t, clock)

	token, err := s.Encode(map[string]any{ClaimSubject: "staff-1"}, clock.now.Add(time.Second))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := s.Decode(token); err != nil {
		t.Fatalf("expected token valid before expiry: %v", err)
	}

	clock.now = clock.now.Add(time.Second)
	if _, err := s.Decode(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at expiry instant, got %v", err)
	}

	clock.now = clock.now.Add(time.Hour)
	if _, err := s.Decode(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after expiry, got %v", err)
	}
}

func TestDecodeRejectsTampering(t *testing.T) {
	s := newTestSigner(t, nil)
	token, err := s.Encode(map[string]any{ClaimSubject: "staff-7"}, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	raw := []byte(token)
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 1 << bit
			_, err := s.Decode(string(mutated))
			if err == nil {
				t.Fatalf("byte %d bit %d: tampered token accepted", i, bit)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("byte %d bit %d: expected ErrMalformed, got %v", i, bit, err)
			}
		}
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	s := newTestSigner(t, nil)
	other, err := NewSigner(Config{Secret: []byte("another-secret-entirely-000000000")})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	token, err := other.Encode(map[string]any{ClaimSubject: "staff-1"}, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := s.Decode(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for foreign secret, got %v", err)
	}
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	s := newTestSigner(t, nil)

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS384, gjwt.MapClaims{
		ClaimSubject: "staff-1",
		ClaimExpiry:  time.Now().Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Decode(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for HS384, got %v", err)
	}

	none := gjwt.NewWithClaims(gjwt.SigningMethodNone, gjwt.MapClaims{
		ClaimSubject: "staff-1",
		ClaimExpiry:  time.Now().Add(time.Minute).Unix(),
	})
	unsigned, err := none.SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := s.Decode(unsigned); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for alg=none, got %v", err)
	}
}

func TestDecodeRequiresClaims(t *testing.T) {
	s := newTestSigner(t, nil)

	noSubject, err := s.Encode(map[string]any{"station": "bar"}, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := s.Decode(noSubject); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without sub, got %v", err)
	}

	noExpiry := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.MapClaims{ClaimSubject: "staff-1"})
	signed, err := noExpiry.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Decode(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without exp, got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	s := newTestSigner(t, nil)
	for _, in := range []string{"", "not.a.jwt", strings.Repeat("a", 64), "a.b.c.d"} {
		if _, err := s.Decode(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestIssuerEnforced(t *testing.T) {
	a, err := NewSigner(Config{Secret: testSecret, Issuer: "front-of-house"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	b, err := NewSigner(Config{Secret: testSecret, Issuer: "back-office"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	token, err := a.Encode(map[string]any{ClaimSubject: "staff-1"}, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := a.Decode(token); err != nil {
		t.Fatalf("same issuer decode: %v", err)
	}
	if _, err := b.Decode(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for foreign issuer, got %v", err)
	}
}

func TestClaimHelpers(t *testing.T) {
	claims := map[string]any{ClaimSubject: "staff-9", ClaimType: TypeRefresh, ClaimExpiry: float64(1_700_000_000)}
	if sub, ok := Subject(claims); !ok || sub != "staff-9" {
		t.Fatalf("unexpected subject %q %v", sub, ok)
	}
	if !IsRefresh(claims) {
		t.Fatal("expected refresh type")
	}
	if exp, ok := ExpiresAt(claims); !ok || exp.Unix() != 1_700_000_000 {
		t.Fatalf("unexpected exp %v %v", exp, ok)
	}
	if IsRefresh(map[string]any{}) || TokenType(map[string]any{}) != "" {
		t.Fatal("expected untyped claims")
	}
	if _, ok := Subject(map[string]any{ClaimSubject: 12}); ok {
		t.Fatal("non-string subject must not resolve")
	}
}
