package auth

import (
	"context"
	"testing"
	"time"

	"portfolio-tracker/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = config.Auth{
	JWTSecret:       "test-secret",
	AccessTokenTTL:  time.Hour,
	RefreshTokenTTL: 24 * time.Hour,
}

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager(testAuth, NewMemoryRefreshStore())

	pair, err := m.Issue(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	id, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	// A refresh token is not an access token.
	_, err = m.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsBadTokens(t *testing.T) {
	m := NewTokenManager(testAuth, NewMemoryRefreshStore())
	pair, err := m.Issue(context.Background(), 7)
	require.NoError(t, err)

	other := NewTokenManager(config.Auth{JWTSecret: "other", AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Hour}, NewMemoryRefreshStore())
	_, err = other.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ParseAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7, Type: tokenTypeAccess}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ParseAccess(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenExpires(t *testing.T) {
	m := NewTokenManager(testAuth, NewMemoryRefreshStore())
	issued := time.Now()
	m.now = func() time.Time { return issued }

	pair, err := m.Issue(context.Background(), 7)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = m.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	m := NewTokenManager(testAuth, NewMemoryRefreshStore())

	first, err := m.Issue(ctx, 7)
	require.NoError(t, err)

	second, err := m.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	id, err := m.ParseAccess(second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	// The old refresh token is spent.
	_, err = m.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Refresh(ctx, second.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeWithRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewTokenManager(testAuth, NewRedisRefreshStore(rdb))

	pair, err := m.Issue(ctx, 11)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, m.Revoke(ctx, pair.RefreshToken))
	assert.Empty(t, mr.Keys())

	_, err = m.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisRefreshStore(rdb)

	require.NoError(t, store.Save(ctx, "jti-1", 3, time.Minute))
	id, err := store.Lookup(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, uint(3), id)

	mr.FastForward(2 * time.Minute)
	_, err = store.Lookup(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrRefreshNotFound)
}
