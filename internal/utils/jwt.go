// Package utils provides token issuing and password hashing helpers.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// ErrInvalidToken is returned by ParseAccessToken for any token that does
// not verify.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// RefreshToken is the raw refresh token handed to the client.  Only its
// SHA-256 hash is persisted.
type RefreshToken struct {
	Raw string    `json:"token"`
	Exp time.Time `json:"expires"`
}

// Claims are the access token claims.  Subject holds the decimal user ID.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID decodes the subject claim.
func (c Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// NewAccessToken signs an HS256 JWT for userID carrying role.
func NewAccessToken(secret string, userID uint64, role model.Role, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw and returns its claims.  Only HMAC signed
// tokens with a numeric subject and a known role are accepted.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	if _, ok := model.ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// NewRefreshToken returns 48 random bytes, hex encoded, valid for ttl.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	raw, err := randomHex(48)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: raw, Exp: time.Now().UTC().Add(ttl)}, nil
}

// HashRefreshRaw returns the hex SHA-256 of a raw refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
