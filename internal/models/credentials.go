package models

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CredentialPair holds the access and refresh credentials for one session.
// The pair is atomic: a stored pair always has both values or does not exist.
type CredentialPair struct {
	ID           string
	AccessToken  string
	RefreshToken string
	// UTC timestamp for when the access token expires
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Complete reports whether both credentials are present.
func (c CredentialPair) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

func (c CredentialPair) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(c.ExpiresAt)
}

func (c CredentialPair) ExpiresSoon(margin time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(c.ExpiresAt.Add(-margin))
}

// Encrypt encrypts both token values if an encryptor is provided.
func (c CredentialPair) Encrypt(enc Encryptor) (CredentialPair, error) {
	if enc == nil {
		return c, nil
	}
	encAccess, err := enc.Encrypt(c.AccessToken)
	if err != nil {
		return CredentialPair{}, err
	}
	encRefresh, err := enc.Encrypt(c.RefreshToken)
	if err != nil {
		return CredentialPair{}, err
	}
	output := c
	output.AccessToken = encAccess
	output.RefreshToken = encRefresh
	return output, nil
}

// Decrypt decrypts both token values if an encryptor is provided.
func (c CredentialPair) Decrypt(enc Encryptor) (CredentialPair, error) {
	if enc == nil {
		return c, nil
	}
	decAccess, err := enc.Decrypt(c.AccessToken)
	if err != nil {
		return CredentialPair{}, err
	}
	decRefresh, err := enc.Decrypt(c.RefreshToken)
	if err != nil {
		return CredentialPair{}, err
	}
	output := c
	output.AccessToken = decAccess
	output.RefreshToken = decRefresh
	return output, nil
}

// String implements the Stringer interface for printing the pair in logs
func (c CredentialPair) String() string {
	return fmt.Sprintf(
		"CredentialPair<ID: %s, AccessToken: redacted, RefreshToken: redacted, ExpiresAt: %s>",
		c.ID,
		c.ExpiresAt,
	)
}

// AccessTokenExpiry extracts the expiry of a JWT access token without verifying
// its signature. The gateway is not the audience of the token, it only needs the
// exp claim to schedule refreshes. Tokens without an exp claim never expire
// from the gateway's point of view.
func AccessTokenExpiry(raw string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(raw, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}
