package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider("secret")

	claims, err := p.VerifyToken(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "static", claims.UID)
	assert.True(t, claims.Expires.IsZero())

	_, err = p.VerifyToken(context.Background(), "guess")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.VerifyToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFirebaseAuthProvider_RequiresProject(t *testing.T) {
	_, err := NewFirebaseAuthProvider(context.Background(), FirebaseOptions{})
	assert.Error(t, err)
}
