// Package auth mints and verifies the HS256 access tokens the API accepts.
// Tokens are issued by the identity service; Mint exists for tooling and
// tests. The subject claim carries the user id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

const clockSkew = 30 * time.Second

type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

type AccessTokenClaims struct {
	Role enums.UserRole `json:"role"`
	jwt.RegisteredClaims

	// UserID is parsed from Subject during validation.
	UserID uuid.UUID `json:"-"`
}

// Validate runs after the registered-claim checks in ParseAccessToken.
func (c *AccessTokenClaims) Validate() error {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return fmt.Errorf("subject %q is not a user id", c.Subject)
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	c.UserID = id
	return nil
}

func signingKey(cfg config.JWTConfig) ([]byte, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return []byte(cfg.Secret), nil
}

func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return "", err
	}
	if cfg.Issuer == "" {
		return "", errors.New("jwt issuer is required")
	}
	claims := AccessTokenClaims{
		Role: payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
			ID:        payload.JTI,
		},
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return nil, err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		return nil, err
	}
	return claims, nil
}
