package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the fixed claim set carried by every token this service signs.
// The subject holds the user id as a decimal string; jti (RegisteredClaims.ID)
// is set only on refresh tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshGrant is the result of minting a refresh token: the signed blob plus
// the identifier and expiry that get persisted, so the store never needs to
// parse the token itself.
type RefreshGrant struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 tokens with an injected secret and
// per-type lifetimes.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess mints a short-lived access token for the given user.
func (c *TokenCodec) IssueAccess(userID int64) (string, error) {
	return c.sign(userID, TokenTypeAccess, "", time.Now().UTC().Add(c.accessTTL))
}

// IssueRefresh mints a refresh token with a fresh jti and returns the signed
// token together with the jti and expiry the caller must persist.
func (c *TokenCodec) IssueRefresh(userID int64) (RefreshGrant, error) {
	jti := uuid.NewString()
	expiresAt := time.Now().UTC().Add(c.refreshTTL)

	token, err := c.sign(userID, TokenTypeRefresh, jti, expiresAt)
	if err != nil {
		return RefreshGrant{}, err
	}

	return RefreshGrant{Token: token, JTI: jti, ExpiresAt: expiresAt}, nil
}

func (c *TokenCodec) sign(userID int64, tokenType, jti string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ID:        jti,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies the signature and expiry and returns the claims. Empty and
// "undefined" tokens are rejected before any parsing; browser clients send the
// literal string "undefined" when local storage is unset.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	if IsMissingToken(token) {
		return nil, ErrInvalidOrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// VerifyAccess decodes the token, requires a numeric subject and the access
// token type, and returns the subject user id.
func (c *TokenCodec) VerifyAccess(token string) (int64, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return 0, err
	}

	if claims.Subject == "" {
		return 0, ErrMissingSubject
	}
	if claims.TokenType != TokenTypeAccess {
		return 0, ErrWrongTokenType
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrMissingSubject
	}

	return userID, nil
}

// IsMissingToken reports whether the raw token value is absent or the
// "undefined" placeholder.
func IsMissingToken(token string) bool {
	return token == "" || strings.EqualFold(token, "undefined")
}
