package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealbridge/backend/internal/infrastructure/config"
)

func newTestService(expiration time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:     "test-secret-at-least-32-characters!!",
		Expiration: expiration,
		Issuer:     "dealbridge-test",
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	s := newTestService(time.Hour)

	token, err := s.Generate("ops@example.com", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "dealbridge-test", claims.Issuer)
}

func TestJWTService_Validate_Rejections(t *testing.T) {
	s := newTestService(time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		_, err := s.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "a-different-secret-entirely-here!!"})
		token, err := other.Generate("ops@example.com", "admin")
		require.NoError(t, err)

		_, err = s.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		short := newTestService(-time.Minute)
		token, err := short.Generate("ops@example.com", "admin")
		require.NoError(t, err)

		_, err = s.Validate(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
