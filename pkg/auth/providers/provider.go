package providers

import (
	"context"
	"time"
)

// AuthProvider verifies the token a follower presents when it joins.
type AuthProvider interface {
	VerifyToken(ctx context.Context, token string) (*TokenClaims, error)
}

// TokenClaims identifies the holder of a verified token.
type TokenClaims struct {
	UID string
	// Expires is zero for tokens that do not expire.
	Expires time.Time
}
