package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh tokens
    "encoding/hex"  // hex encoding and decoding functions
    "errors"
    "strconv"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// Only a SHA‑256 hash of Raw is stored in the database.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// Claims is the payload of an access token: the registered claims plus
// the caller's role.  The subject carries the decimal user id.
type Claims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c Claims) UserID() (uint64, error) {
    return strconv.ParseUint(c.Subject, 10, 64)
}

// ErrInvalidToken is returned by ParseAccessToken for any token that does
// not verify, has expired or carries no usable subject.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT for a user valid for ttlMin
// minutes.  The token carries sub, role, exp and iat.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := Claims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token signed with secret and returns
// its claims.  Tokens signed with any other algorithm are rejected.
func ParseAccessToken(secret, raw string) (Claims, error) {
    var claims Claims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return Claims{}, ErrInvalidToken
    }
    if _, err := claims.UserID(); err != nil {
        return Claims{}, ErrInvalidToken
    }
    return claims, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time, ttlDays from now.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := RandomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// RandomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
