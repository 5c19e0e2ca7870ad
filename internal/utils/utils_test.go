package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "ADMIN", 15)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), tok.Exp, 5*time.Second)

    claims, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    uid, err := claims.UserID()
    require.NoError(t, err)
    assert.Equal(t, uint64(42), uid)
    assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 1, "CUSTOMER", 15)
    require.NoError(t, err)

    _, err = ParseAccessToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

    expired, err := NewAccessToken("s3cret", 1, "CUSTOMER", -1)
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", expired.Token)
    assert.ErrorIs(t, err, ErrInvalidToken, "expired")

    none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()}).
        SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", none)
    assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

    noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "abc", "exp": time.Now().Add(time.Hour).Unix()}).
        SignedString([]byte("s3cret"))
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", noSub)
    assert.ErrorIs(t, err, ErrInvalidToken, "non-numeric subject")
}

func TestRefreshToken(t *testing.T) {
    a, err := NewRefreshToken(7)
    require.NoError(t, err)
    b, err := NewRefreshToken(7)
    require.NoError(t, err)

    assert.Len(t, a.Raw, 96)
    assert.NotEqual(t, a.Raw, b.Raw)
    assert.Len(t, HashRefreshRaw(a.Raw), 64)
    assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}

func TestPassword(t *testing.T) {
    hash, err := HashPassword("correct horse", 4)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "correct horse"))
    assert.False(t, VerifyPassword(hash, "battery staple"))
}

func TestSlugify(t *testing.T) {
    cases := map[string]string{
        "Gabriel García Márquez": "gabriel-garcia-marquez",
        "  J.R.R. Tolkien ":      "j-r-r-tolkien",
        "Zadie   Smith!!":        "zadie-smith",
        "---":                    "",
        "Isaac Asimov 2":         "isaac-asimov-2",
    }
    for in, want := range cases {
        assert.Equal(t, want, Slugify(in), in)
    }
}

func TestNormalizeISBN(t *testing.T) {
    assert.Equal(t, "9780141439518", NormalizeISBN(" 978-0-14-143951-8 "))
    assert.Equal(t, "080442957X", NormalizeISBN("0 8044 2957 x"))
}
