package models

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reversingEncryptor struct{}

func (reversingEncryptor) Encrypt(val string) (string, error) {
	return "enc:" + val, nil
}

func (reversingEncryptor) Decrypt(val string) (string, error) {
	return val[len("enc:"):], nil
}

func TestCredentialPairComplete(t *testing.T) {
	assert.True(t, CredentialPair{AccessToken: "a", RefreshToken: "r"}.Complete())
	assert.False(t, CredentialPair{AccessToken: "a"}.Complete())
	assert.False(t, CredentialPair{RefreshToken: "r"}.Complete())
	assert.False(t, CredentialPair{}.Complete())
}

func TestCredentialPairExpiry(t *testing.T) {
	expired := CredentialPair{ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	assert.True(t, expired.Expired())
	assert.True(t, expired.ExpiresSoon(time.Minute))

	live := CredentialPair{ExpiresAt: time.Now().UTC().Add(time.Hour)}
	assert.False(t, live.Expired())
	assert.False(t, live.ExpiresSoon(time.Minute))
	assert.True(t, live.ExpiresSoon(2*time.Hour))

	// a pair without an expiry never expires
	eternal := CredentialPair{}
	assert.False(t, eternal.Expired())
	assert.False(t, eternal.ExpiresSoon(time.Hour))
}

func TestCredentialPairEncryptDecrypt(t *testing.T) {
	pair := CredentialPair{ID: "session-1", AccessToken: "access", RefreshToken: "refresh"}
	enc, err := pair.Encrypt(reversingEncryptor{})
	require.NoError(t, err)
	assert.Equal(t, "enc:access", enc.AccessToken)
	assert.Equal(t, "enc:refresh", enc.RefreshToken)
	assert.Equal(t, pair.ID, enc.ID)

	dec, err := enc.Decrypt(reversingEncryptor{})
	require.NoError(t, err)
	assert.Equal(t, pair, dec)

	// a nil encryptor passes the pair through untouched
	same, err := pair.Encrypt(nil)
	require.NoError(t, err)
	assert.Equal(t, pair, same)
}

func TestCredentialPairStringRedactsTokens(t *testing.T) {
	pair := CredentialPair{ID: "session-1", AccessToken: "access-secret", RefreshToken: "refresh-secret"}
	printed := pair.String()
	assert.Contains(t, printed, "session-1")
	assert.NotContains(t, printed, "access-secret")
	assert.NotContains(t, printed, "refresh-secret")
}

func TestAccessTokenExpiry(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	parsed := AccessTokenExpiry(raw)
	assert.True(t, expiresAt.UTC().Equal(parsed))
}

func TestAccessTokenExpiryWithoutExpClaim(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "dev"}).
		SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	assert.True(t, AccessTokenExpiry(raw).IsZero())
}

func TestAccessTokenExpiryOpaqueToken(t *testing.T) {
	assert.True(t, AccessTokenExpiry("not-a-jwt").IsZero())
	assert.True(t, AccessTokenExpiry("").IsZero())
}
