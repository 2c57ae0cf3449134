package auth

import "errors"

// Error taxonomy for the authentication flows. Every failure is terminal for
// the current request; the HTTP layer maps each sentinel to a status code and
// a detail string.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidOrMissingToken = errors.New("invalid or missing token")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrWrongTokenType        = errors.New("wrong token type")
	ErrMissingSubject        = errors.New("subject missing from token")
	ErrMissingJTI            = errors.New("jti missing from token")
	ErrUserNotFound          = errors.New("user not found")
	ErrRefreshNotFound       = errors.New("refresh token not found")
	ErrRefreshAlreadyInvalid = errors.New("refresh token revoked or expired")
)
