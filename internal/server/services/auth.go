// Package services contains server-side business logic. AuthService owns
// registration, login and token refresh; UserService resolves users by id.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/uow"
)

// BearerTokenType is the token_type reported alongside issued tokens.
const BearerTokenType = "bearer"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AccessToken is the result of a refresh: a new access token only.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthObserver receives one event per finished operation.
type AuthObserver interface {
	ObserveAuth(operation, outcome string)
}

type AuthOption func(*AuthService)

// WithObserver reports operation outcomes to o, e.g. a metrics registry.
func WithObserver(o AuthObserver) AuthOption {
	return func(s *AuthService) { s.observer = o }
}

// AuthService provides authentication operations:
// - Register: create users
// - Login: verify credentials and mint a token pair
// - Refresh: exchange a refresh token for a new access token
//
// It holds no mutable state and is safe for concurrent use.
type AuthService struct {
	uow        uow.Factory
	hasher     auth.PasswordHasher
	codec      *auth.TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        logging.Logger
	observer   AuthObserver

	// dummyHash is verified against when the email is unknown so a miss
	// costs as much as a wrong password.
	dummyHash string
}

// NewAuthService wires the service. Token lifetimes come from cfg.
func NewAuthService(f uow.Factory, hasher auth.PasswordHasher, codec *auth.TokenCodec, cfg *config.Config, log logging.Logger, opts ...AuthOption) (*AuthService, error) {
	dummy, err := hasher.Hash("authkeeper-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &AuthService{
		uow:        f,
		hasher:     hasher,
		codec:      codec,
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidityDuration,
		log:        log.With("component", "auth_service"),
		dummyHash:  dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a USER account for email. The email is canonicalized
// first, so addresses differing only in case or surrounding whitespace
// collide with ErrUserAlreadyExists.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.UserResponse, error) {
	email = models.CanonicalEmail(email)

	var created *models.User
	err := uow.Run(ctx, s.uow, func(ctx context.Context, u uow.UnitOfWork) error {
		_, err := u.Users().FindByEmail(ctx, email)
		switch {
		case err == nil:
			return common.ErrUserAlreadyExists
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return err
		}

		created, err = u.Users().Create(ctx, &models.User{
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleUser,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			// lost the race against a concurrent registration
			return common.ErrUserAlreadyExists
		}
		if err != nil {
			return err
		}

		return u.Commit()
	})
	if err != nil {
		return nil, s.finish(ctx, "register", err)
	}

	s.finish(ctx, "register", nil)
	s.log.Info(ctx, "user registered", "user_id", created.ID)
	return created.Public(), nil
}

// Login checks the credentials and issues an access/refresh token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = models.CanonicalEmail(email)

	var user *models.User
	err := uow.Run(ctx, s.uow, func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		user, err = u.Users().FindByEmail(ctx, email)
		return err
	})

	switch {
	case errors.Is(err, common.ErrorNotFound):
		s.hasher.Verify(password, s.dummyHash)
		return nil, s.finish(ctx, "login", common.ErrInvalidCredentials)
	case err != nil:
		return nil, s.finish(ctx, "login", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.finish(ctx, "login", common.ErrInvalidCredentials)
	}

	access, err := s.codec.Issue(user.ID, auth.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, s.finish(ctx, "login", err)
	}
	refresh, err := s.codec.Issue(user.ID, auth.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, s.finish(ctx, "login", err)
	}

	s.finish(ctx, "login", nil)
	s.log.Debug(ctx, "user logged in", "user_id", user.ID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: BearerTokenType}, nil
}

// Refresh verifies a refresh token and issues a new access token for its
// subject. The refresh token itself is not rotated and the store is not
// consulted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	subject, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, s.finish(ctx, "refresh", err)
	}

	access, err := s.codec.Issue(subject, auth.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, s.finish(ctx, "refresh", err)
	}

	s.finish(ctx, "refresh", nil)
	return &AccessToken{AccessToken: access, TokenType: BearerTokenType}, nil
}

// VerifyAccessToken returns the subject of a valid access token. An expired
// token yields ErrAccessTokenExpired, any other defect ErrInvalidCredentials.
func (s *AuthService) VerifyAccessToken(token string) (string, error) {
	subject, err := s.codec.Verify(token, auth.TokenTypeAccess)
	if err != nil {
		return "", tokenError(err, common.ErrAccessTokenExpired)
	}
	return subject, nil
}

// VerifyRefreshToken returns the subject of a valid refresh token. An
// expired token yields ErrRefreshTokenExpired, any other defect
// ErrInvalidCredentials.
func (s *AuthService) VerifyRefreshToken(token string) (string, error) {
	subject, err := s.codec.Verify(token, auth.TokenTypeRefresh)
	if err != nil {
		return "", tokenError(err, common.ErrRefreshTokenExpired)
	}
	return subject, nil
}

func tokenError(err, expired error) error {
	if errors.Is(err, common.ErrTokenExpired) {
		return expired
	}
	return common.ErrInvalidCredentials
}

// finish records the outcome of op and converts err into what the caller
// may see. Domain errors pass through; anything else is logged here with
// its cause and collapsed to ErrStoreFailure or ErrorInternal.
func (s *AuthService) finish(ctx context.Context, op string, err error) error {
	out := outcome(err)
	if s.observer != nil {
		s.observer.ObserveAuth(op, out)
	}
	if out != "error" {
		return err
	}

	s.log.Error(ctx, op+" failed", "error", err)
	if errors.Is(err, common.ErrStoreFailure) {
		return common.ErrStoreFailure
	}
	return common.ErrorInternal
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrUserAlreadyExists):
		return "user_exists"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrAccessTokenExpired), errors.Is(err, common.ErrRefreshTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}
