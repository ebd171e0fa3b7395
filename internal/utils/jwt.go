package utils // package utils provides the crypto primitives used for credentials and tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is the raw opaque string handed to the client. Only its
// SHA-256 digest is ever persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims is the claim set carried by access tokens: sub is the user id,
// role the platform role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ErrTokenInvalid is returned by ParseAccessToken for any token that fails
// signature, algorithm, expiry or shape checks.
var ErrTokenInvalid = errors.New("invalid access token")

// NewAccessToken builds and signs an HS256 JWT for a user.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies the signature and expiry of raw and returns its
// claims. Only HMAC-signed tokens with a subject are accepted.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// NewRefreshToken returns a cryptographically secure random token and its
// expiration time.
func NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: raw, Exp: time.Now().UTC().Add(ttl)}, nil
}

// HashRefreshRaw returns the SHA-256 hex digest of a raw refresh token.
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
