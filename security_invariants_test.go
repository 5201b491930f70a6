package staffauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/staffauth/jwt"
)

func TestSecurityInvariantTamperedTokenIsMalformed(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	pair, err := te.Issue(ctx, Identity{ID: "staff-1", Username: "alice", Staff: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(pair.Access.Token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWS, got %d parts", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := te.Authenticate(ctx, tampered); !errors.Is(err, ErrMalformedCredential) {
		t.Fatalf("expected malformed for tampered signature, got %v", err)
	}

	// Expired and tampered is still malformed: the signature is checked first.
	te.clock.Advance(2 * time.Hour)
	if _, err := te.Authenticate(ctx, tampered); !errors.Is(err, ErrMalformedCredential) {
		t.Fatalf("expected malformed for tampered expired token, got %v", err)
	}
}

func flipLastChar(token string, bit int) string {
	raw := []byte(token)
	raw[len(raw)-1] ^= 1 << bit
	return string(raw)
}

func TestSecurityInvariantLastCharFlipIsMalformed(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	pair, err := te.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for bit := 0; bit < 8; bit++ {
		tampered := flipLastChar(pair.Access.Token, bit)
		if _, err := te.Authenticate(ctx, tampered); !errors.Is(err, ErrMalformedCredential) {
			t.Fatalf("access bit %d: expected malformed, got %v", bit, err)
		}

		tampered = flipLastChar(pair.Refresh.Token, bit)
		if _, err := te.Rotate(ctx, tampered); !errors.Is(err, ErrMalformedCredential) {
			t.Fatalf("refresh bit %d: expected malformed, got %v", bit, err)
		}
	}

	if got := te.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != 0 {
		t.Fatalf("tampered refresh tokens must not count as reuse, got %d", got)
	}
	// The untouched refresh token is still live.
	if _, err := te.Rotate(ctx, pair.Refresh.Token); err != nil {
		t.Fatalf("rotate original: %v", err)
	}
}

func TestSecurityInvariantForeignSecretRejected(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)

	other, err := jwt.NewSigner(jwt.Config{Secret: []byte("some-other-secret-0123456789abcdef"), Issuer: "staffauth"})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	forged, err := other.Encode(map[string]any{jwt.ClaimSubject: "staff-1", jwt.ClaimStaff: true}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := te.Authenticate(context.Background(), forged); !errors.Is(err, ErrMalformedCredential) {
		t.Fatalf("expected malformed for foreign secret, got %v", err)
	}
}

func TestSecurityInvariantRefreshReplayDoesNotMint(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	pair, err := te.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := te.Rotate(ctx, pair.Refresh.Token); err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	before, err := te.RefreshChain(ctx, "staff-1")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if _, err := te.Rotate(ctx, pair.Refresh.Token); !errors.Is(err, ErrRevokedOrReused) {
		t.Fatalf("expected ErrRevokedOrReused, got %v", err)
	}
	after, err := te.RefreshChain(ctx, "staff-1")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("replay must not record a new token: %d -> %d", len(before), len(after))
	}
}

func TestSecurityInvariantErrorCodesDistinct(t *testing.T) {
	errs := []error{
		ErrMissingCredential,
		ErrMalformedCredential,
		ErrExpiredCredential,
		ErrWrongCredentialType,
		ErrRevokedOrReused,
		ErrIdentityNotFound,
		ErrStorage,
	}
	seen := map[string]error{}
	for _, err := range errs {
		code := ErrorCode(err)
		if code == "" || code == "internal_error" {
			t.Fatalf("%v has no code", err)
		}
		if prev, ok := seen[code]; ok {
			t.Fatalf("%v and %v share code %q", prev, err, code)
		}
		seen[code] = err
	}
	if ErrorCode(errors.New("other")) != "internal_error" {
		t.Fatal("unknown errors must map to internal_error")
	}
}
