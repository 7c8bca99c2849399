package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/user"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("secret"), "pos")
	u := &user.User{ID: "u1", Role: user.RoleAdmin}

	raw, err := tokens.Sign(u, time.Hour)
	require.NoError(t, err)

	id, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestTokens_Verify(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := NewTokens([]byte("secret"), "pos")
	tokens.now = func() time.Time { return now }

	sign := func(secret, issuer, role, sub string, exp time.Time, method jwt.SigningMethod) string {
		claims := Claims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		}
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "valid", raw: sign("secret", "pos", "staff", "u1", now.Add(time.Minute), jwt.SigningMethodHS256)},
		{name: "empty", raw: "", wantErr: ErrMissingToken},
		{name: "garbage", raw: "not.a.token", wantErr: ErrInvalidToken},
		{name: "wrong secret", raw: sign("other", "pos", "staff", "u1", now.Add(time.Minute), jwt.SigningMethodHS256), wantErr: ErrInvalidToken},
		{name: "wrong issuer", raw: sign("secret", "evil", "staff", "u1", now.Add(time.Minute), jwt.SigningMethodHS256), wantErr: ErrInvalidToken},
		{name: "expired", raw: sign("secret", "pos", "staff", "u1", now.Add(-time.Minute), jwt.SigningMethodHS256), wantErr: ErrInvalidToken},
		{name: "unknown role", raw: sign("secret", "pos", "root", "u1", now.Add(time.Minute), jwt.SigningMethodHS256), wantErr: ErrInvalidToken},
		{name: "no subject", raw: sign("secret", "pos", "staff", "", now.Add(time.Minute), jwt.SigningMethodHS256), wantErr: ErrInvalidToken},
		{name: "other algorithm", raw: sign("secret", "pos", "staff", "u1", now.Add(time.Minute), jwt.SigningMethodHS512), wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tokens.Verify(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, fault.KindUnauthorized, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", id.UserID)
			assert.Equal(t, user.RoleStaff, id.Role)
			assert.False(t, id.IsAdmin())
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Role: user.RoleStaff})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
