package auth

import "github.com/golang-jwt/jwt/v5"

// AccessTokenClaims are the claims the remote service puts in its access
// tokens. Sub carries the account DID.
type AccessTokenClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}
