// Package auth validates the HS256 bearer tokens presented on both the
// REST surface and the realtime channel.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("authorization header empty")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseBearerToken extracts the token from an "Authorization: Bearer x"
// header value.
func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate checks signature and expiry and returns the user identity. The
// identity is read from the user_id claim, falling back to sub for tokens
// minted by older issuers.
func (v *Validator) Validate(tokenStr string) (string, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", ErrInvalidToken
}

// Sign mints an HS256 token for userID. Used by tooling and tests; the
// production issuer lives in the auth service.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
