package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InspectToken decodes a session token without verifying its signature.
// The signing key belongs to the remote service; the client only reads
// the subject and expiry to decide whether a stored session is usable.
func InspectToken(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	claims := &AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// Expiry returns the exp claim, or nil when the token has none.
func (c *AccessTokenClaims) Expiry() *time.Time {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return nil
	}
	t := c.RegisteredClaims.ExpiresAt.Time.UTC()
	return &t
}

// Expired reports whether the token is past its expiry at now.
func (c *AccessTokenClaims) Expired(now time.Time) bool {
	exp := c.Expiry()
	return exp != nil && !now.Before(*exp)
}
