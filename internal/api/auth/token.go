package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stashly/stashly-api/config"
	"github.com/stashly/stashly-api/internal/types"
)

var _ TokenIssuer = (*JWTIssuer)(nil)

// TokenIssuer issues an opaque bearer token for a verified identity. The
// token's construction is this issuer's concern; the login flow only returns
// the string plus the configured lifetime.
type TokenIssuer interface {
	Issue(userID, username, email string) (string, error)
	// ExpiresIn is the fixed configured token lifetime in seconds, returned
	// alongside the token rather than derived from it.
	ExpiresIn() int
}

// JWTIssuer signs HS256 access tokens with the configured secret.
type JWTIssuer struct {
	cfg   config.JWTConfig
	clock Clock
}

func NewJWTIssuer(cfg config.JWTConfig, clock Clock) *JWTIssuer {
	if clock == nil {
		clock = SystemClock()
	}
	return &JWTIssuer{cfg: cfg, clock: clock}
}

func (i *JWTIssuer) Issue(userID, username, email string) (string, error) {
	now := i.clock.Now()
	claims := types.Claims{
		UserID:   userID,
		Username: username,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (i *JWTIssuer) ExpiresIn() int {
	return int(i.cfg.AccessTokenTTL / time.Second)
}
