package security

import "errors"

var (
	ErrMissingToken     = errors.New("missing token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrInvalidAudience  = errors.New("invalid audience")
	ErrTokenExpired     = errors.New("token expired or not valid yet")
	ErrInvalidSubject   = errors.New("invalid subject")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrMissingKey       = errors.New("signing key is not configured")
	ErrNoPrivateKey     = errors.New("private key is required for signing")
)
