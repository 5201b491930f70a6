package flows

import (
	"fmt"
	"time"

	"github.com/MrEthical07/staffauth/jwt"
)

// Subject is the resolved identity a credential pair is minted for.
type Subject struct {
	ID       string
	Username string
	Staff    bool
}

// Pair is a freshly minted access and refresh token with their lifetimes in
// whole seconds.
type Pair struct {
	AccessToken      string
	AccessExpiresIn  int64
	RefreshToken     string
	RefreshExpiresIn int64
}

// Minter signs access and refresh tokens for a subject.
type Minter struct {
	Encode     func(claims map[string]any, expiresAt time.Time) (string, error)
	Now        func() time.Time
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Mint returns a signed pair. Nothing is persisted.
func (m Minter) Mint(s Subject) (Pair, error) {
	now := m.Now()

	access, err := m.Encode(map[string]any{
		jwt.ClaimSubject: s.ID,
		jwt.ClaimStaff:   s.Staff,
	}, now.Add(m.AccessTTL))
	if err != nil {
		return Pair{}, fmt.Errorf("encode access token: %w", err)
	}

	refresh, err := m.Encode(map[string]any{
		jwt.ClaimSubject: s.ID,
		jwt.ClaimType:    jwt.TypeRefresh,
	}, now.Add(m.RefreshTTL))
	if err != nil {
		return Pair{}, fmt.Errorf("encode refresh token: %w", err)
	}

	return Pair{
		AccessToken:      access,
		AccessExpiresIn:  int64(m.AccessTTL / time.Second),
		RefreshToken:     refresh,
		RefreshExpiresIn: int64(m.RefreshTTL / time.Second),
	}, nil
}
