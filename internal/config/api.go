package config

import (
	"fmt"
	"net/url"
	"time"
)

type TokenEncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

// APIConfig describes the remote TeamHub API the gateway forwards requests to.
type APIConfig struct {
	BaseURL *url.URL
	// Upper bound for every outbound call, including the refresh exchange
	TimeoutSeconds int
	// How long before access token expiry the proactive refresher kicks in
	RefreshMarginMinutes int
	// How often the proactive refresher runs
	RefreshIntervalMinutes int
	TokenEncryption        TokenEncryptionConfig
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c APIConfig) RefreshMargin() time.Duration {
	return time.Duration(c.RefreshMarginMinutes) * time.Minute
}

func (c *APIConfig) Validate() error {
	if c.BaseURL == nil || c.BaseURL.String() == "" {
		return fmt.Errorf("the base URL of the remote API is not set")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("the outbound call timeout has to be positive, got %d", c.TimeoutSeconds)
	}
	if c.TokenEncryption.Enabled && len(c.TokenEncryption.SecretKey) != 32 {
		return fmt.Errorf(
			"token encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.TokenEncryption.SecretKey),
		)
	}
	return nil
}
