package jwt

import "time"

// Subject returns the sub claim when it is a non-empty string.
func Subject(claims map[string]any) (string, bool) {
	sub, ok := claims[ClaimSubject].(string)
	return sub, ok && sub != ""
}

// TokenType returns the type claim, or "" for tokens minted without one.
func TokenType(claims map[string]any) string {
	typ, _ := claims[ClaimType].(string)
	return typ
}

// IsRefresh reports whether claims were minted as a refresh credential.
func IsRefresh(claims map[string]any) bool {
	return TokenType(claims) == TypeRefresh
}

// ExpiresAt returns the exp claim as a time. Decoded numbers arrive as float64.
func ExpiresAt(claims map[string]any) (time.Time, bool) {
	switch v := claims[ClaimExpiry].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	default:
		return time.Time{}, false
	}
}
