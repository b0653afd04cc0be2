// Package auth issues and verifies the JWTs that carry a user's identity
// between requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"portfolio-tracker/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers malformed, expired, revoked and wrong-type tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims used for both token types.
type Claims struct {
	UserID uint   `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshStore
	now        func() time.Time
}

func NewTokenManager(cfg config.Auth, store RefreshStore) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		store:      store,
		now:        time.Now,
	}
}

// Issue signs a new access token and a new refresh token for userID.
func (m *TokenManager) Issue(ctx context.Context, userID uint) (TokenPair, error) {
	now := m.now()

	access, err := m.sign(Claims{
		UserID: userID,
		Type:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("error generating token: %w", err)
	}

	jti := uuid.NewString()
	refresh, err := m.sign(Claims{
		UserID: userID,
		Type:   tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("error generating refresh token: %w", err)
	}

	if err := m.store.Save(ctx, jti, userID, m.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("error storing refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

// ParseAccess validates an access token and returns its user id.
func (m *TokenManager) ParseAccess(token string) (uint, error) {
	claims, err := m.parse(token, tokenTypeAccess)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Refresh exchanges a live refresh token for a new pair. The old refresh
// token is revoked.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := m.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	userID, err := m.store.Lookup(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if userID != claims.UserID {
		return TokenPair{}, ErrInvalidToken
	}

	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return TokenPair{}, err
	}
	return m.Issue(ctx, userID)
}

// Revoke forgets a refresh token. Revoking an unknown token is not an error.
func (m *TokenManager) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := m.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return err
	}
	return m.store.Delete(ctx, claims.ID)
}

func (m *TokenManager) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) parse(token, wantType string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
