package config

import (
	"fmt"
	"time"
)

type SessionConfig struct {
	IdleSessionTTLSeconds int
	MaxSessionTTLSeconds  int
	CookieName            string
	// UnsafeNoHTTPSCookies should only be set for local development
	UnsafeNoHTTPSCookies bool
}

func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleSessionTTLSeconds) * time.Second
}

func (c SessionConfig) MaxTTL() time.Duration {
	return time.Duration(c.MaxSessionTTLSeconds) * time.Second
}

func (c *SessionConfig) Validate() error {
	if c.MaxSessionTTLSeconds > 0 && c.IdleSessionTTLSeconds > c.MaxSessionTTLSeconds {
		return fmt.Errorf(
			"max session TTL seconds (%d) cannot be less than idle session TTL seconds (%d)",
			c.MaxSessionTTLSeconds,
			c.IdleSessionTTLSeconds,
		)
	}
	return nil
}
