// Package auth implements the authentication core: password hashing, the
// token codec, the refresh-token store, and the service that orchestrates
// login, access-token verification, and refresh rotation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"user-management/internal/audit"
	"user-management/internal/observability"
)

// Credential is the stored login material for one user, supplied by the
// user store.
type Credential struct {
	UserID       int64
	Username     string
	PasswordHash string
}

// UserDirectory is the external user-store collaborator. CredentialByUsername
// returns ErrUserNotFound when no credential exists for the username.
type UserDirectory interface {
	CredentialByUsername(ctx context.Context, username string) (Credential, error)
	HasUser(ctx context.Context, userID int64) (bool, error)
}

// TokenPair is the response body of a successful login or rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Service orchestrates credential checks, token issuance, and refresh-token
// rotation. All coordination happens through the store; the service itself
// holds no mutable state.
type Service struct {
	users  UserDirectory
	codec  *TokenCodec
	store  RefreshTokenStore
	audit  audit.Recorder
	logger *observability.Logger
}

func NewService(users UserDirectory, codec *TokenCodec, store RefreshTokenStore, recorder audit.Recorder, logger *observability.Logger) *Service {
	return &Service{
		users:  users,
		codec:  codec,
		store:  store,
		audit:  recorder,
		logger: logger,
	}
}

// Authenticate verifies the username/password pair and, on success, returns
// a fresh access+refresh pair with the refresh token's jti persisted. A
// missing user and a wrong password both yield ErrInvalidCredentials so the
// response never reveals whether the username exists.
func (s *Service) Authenticate(ctx context.Context, username, password string) (TokenPair, error) {
	username = strings.TrimSpace(username)

	cred, err := s.users.CredentialByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("login_failed", map[string]any{"username": username})
			s.audit.Record(ctx, audit.Entry{Username: username, Action: audit.ActionLogin, Outcome: audit.OutcomeFailed})
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("lookup credential: %w", err)
	}

	if !CheckPassword(password, cred.PasswordHash) {
		s.logger.Warn("login_failed", map[string]any{"username": username})
		s.audit.Record(ctx, audit.Entry{Username: username, Action: audit.ActionLogin, Outcome: audit.OutcomeFailed})
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, cred.UserID)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("login_success", map[string]any{"user_id": cred.UserID})
	s.audit.Record(ctx, audit.Entry{UserID: &cred.UserID, Action: audit.ActionLogin, Outcome: audit.OutcomeSuccess})
	return pair, nil
}

// Authorize validates an access token and resolves its subject to a live
// user, covering deleted accounts that still hold a valid token.
func (s *Service) Authorize(ctx context.Context, accessToken string) (int64, error) {
	if IsMissingToken(accessToken) {
		return 0, ErrInvalidOrMissingToken
	}

	userID, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return 0, err
	}

	exists, err := s.users.HasUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		s.logger.Warn("token_user_missing", map[string]any{"user_id": userID})
		s.audit.Record(ctx, audit.Entry{UserID: &userID, Action: audit.ActionVerifyToken, Outcome: audit.OutcomeFailed})
		return 0, ErrUserNotFound
	}

	s.audit.Record(ctx, audit.Entry{UserID: &userID, Action: audit.ActionVerifyToken, Outcome: audit.OutcomeSuccess})
	return userID, nil
}

// Rotate exchanges a valid refresh token for a new pair. The presented
// token's jti is revoked before anything is issued, so there is no window
// where the old and new refresh tokens are both live; a crash after the
// revoke leaves the user logged out rather than holding two valid tokens.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	if IsMissingToken(refreshToken) {
		return TokenPair{}, ErrInvalidOrMissingToken
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return TokenPair{}, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return TokenPair{}, ErrMissingSubject
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return TokenPair{}, ErrMissingSubject
	}
	if claims.ID == "" {
		return TokenPair{}, ErrMissingJTI
	}

	if err := s.store.Revoke(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrRefreshNotFound) || errors.Is(err, ErrRefreshAlreadyInvalid) {
			s.logger.Warn("refresh_rejected", map[string]any{"user_id": userID})
			return TokenPair{}, err
		}
		return TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	pair, err := s.issuePair(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("token_rotated", map[string]any{"user_id": userID})
	return pair, nil
}

// issuePair mints both tokens and persists the refresh token's jti. A
// persistence failure aborts the whole operation: no pair is ever returned
// without a durable refresh record behind it.
func (s *Service) issuePair(ctx context.Context, userID int64) (TokenPair, error) {
	access, err := s.codec.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	grant, err := s.codec.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.store.Persist(ctx, grant.JTI, userID, grant.ExpiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: grant.Token,
		TokenType:    "bearer",
	}, nil
}
