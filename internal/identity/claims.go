package identity

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the parts of a bearer token the client cares about.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time // zero when the token carries no expiry
}

// Expired reports whether the token is past its expiry at now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims reads the claims of a JWT without verifying its signature. The
// backend verifies tokens; the client only needs to know whose token it holds.
func ParseClaims(token string) (Claims, error) {
	parser := gojwt.NewParser()
	t, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}
	claims, ok := t.Claims.(gojwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("unexpected claims type %T", t.Claims)
	}

	var c Claims
	for _, key := range []string{"user_id", "uid", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			c.UserID = v
			break
		}
	}
	if c.UserID == "" {
		return Claims{}, fmt.Errorf("token has no user id")
	}

	for _, key := range []string{"email", "name"} {
		if v, ok := claims[key].(string); ok && v != "" {
			c.Email = v
			break
		}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("reading token expiry: %w", err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
