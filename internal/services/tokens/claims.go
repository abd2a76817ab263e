package tokens

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The client never holds the signing key, so claims are read without
// verification. They only decide when to refresh early; the server still
// has the final say through 401s.

func parseClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// expired reports whether token's exp claim is at or before now+skew.
// Tokens without a readable exp are treated as live.
func expired(token string, now time.Time, skew time.Duration) bool {
	claims, ok := parseClaims(token)
	if !ok {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Add(skew).Before(exp.Time)
}

// userID reads "user_id" (SimpleJWT) falling back to "sub".
func userID(token string) (int64, bool) {
	claims, ok := parseClaims(token)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"user_id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			return int64(v), true
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}
