// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultRefreshTokenTTL is used when ServiceConfig.RefreshTokenTTL is zero.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// Transactor runs fn in a transaction carried by the context passed to fn.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccessTokens signs and validates access tokens. *AccessTokenIssuer
// implements it.
type AccessTokens interface {
	Issue(user *User) (token string, expiresAt time.Time, err error)
	Parse(token string) (*AccessClaims, error)
}

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	ResetTokens   PasswordResetRepository
	Verifications EmailVerificationRepository
	Hasher        PasswordHasher
	Tokens        AccessTokens
	Transactor    Transactor

	// RefreshTokenTTL defaults to DefaultRefreshTokenTTL.
	RefreshTokenTTL time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service coordinates account and token flows. It keeps no state between
// calls; consistency comes from the repositories and the Transactor.
type Service struct {
	users         UserRepository
	refreshTokens RefreshTokenRepository
	resetTokens   PasswordResetRepository
	verifications EmailVerificationRepository
	hasher        PasswordHasher
	tokens        AccessTokens
	tx            Transactor
	refreshTTL    time.Duration
	logger        *slog.Logger
	now           func() time.Time

	// dummyHash and dummySalt are verified against when a login matches
	// no account, so the response takes as long as a real mismatch.
	dummyHash string
	dummySalt string
}

// NewService validates cfg and creates a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	case cfg.RefreshTokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("refresh token repository is required")
	case cfg.ResetTokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password reset repository is required")
	case cfg.Verifications == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("email verification repository is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case cfg.Tokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("access token issuer is required")
	case cfg.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case cfg.RefreshTokenTTL < 0:
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("ttl", cfg.RefreshTokenTTL).Errorf("refresh token lifetime must be positive")
	}

	dummyPassword, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	dummyHash, dummySalt, err := cfg.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "derive dummy credential").Wrap(err)
	}

	s := &Service{
		users:         cfg.Users,
		refreshTokens: cfg.RefreshTokens,
		resetTokens:   cfg.ResetTokens,
		verifications: cfg.Verifications,
		hasher:        cfg.Hasher,
		tokens:        cfg.Tokens,
		tx:            cfg.Transactor,
		refreshTTL:    cfg.RefreshTokenTTL,
		logger:        cfg.Logger,
		now:           cfg.Now,
		dummyHash:     dummyHash,
		dummySalt:     dummySalt,
	}
	if s.refreshTTL == 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// outcome aborts a transaction with an expected failure. The transaction
// rolls back and the caller receives res with a nil error.
type outcome struct {
	res Result
}

func (o *outcome) Error() string { return string(o.res.Code) + ": " + o.res.Message }

func abort(code Code, msg string) error {
	return &outcome{res: fail(code, msg)}
}

// settle splits a transaction error into an expected Result or an
// unexpected error.
func settle(err error) (Result, error) {
	var o *outcome
	if errors.As(err, &o) {
		return o.res, nil
	}
	return Result{}, err
}

// Register creates an active, unverified account and signs it in.
func (s *Service) Register(ctx context.Context, username, email, password string) (res Result, err error) {
	defer func() { recordOperation("register", res, err) }()

	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return fail(CodeValidation, MsgMissingFields), nil
	}
	for _, verr := range []error{ValidateUsername(username), ValidateEmail(email), ValidatePassword(password)} {
		if verr != nil {
			return fail(CodeValidation, verr.Error()), nil
		}
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return fail(CodeDuplicate, MsgUsernameTaken), nil
	} else if !errors.Is(err, ErrNotFound) {
		return Result{}, oops.Code("AUTH_REGISTER_FAILED").With("operation", "check username").Wrap(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return fail(CodeDuplicate, MsgEmailTaken), nil
	} else if !errors.Is(err, ErrNotFound) {
		return Result{}, oops.Code("AUTH_REGISTER_FAILED").With("operation", "check email").Wrap(err)
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := s.now()
	user := &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var refresh, verification string
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return abort(CodeDuplicate, MsgAccountExists)
			}
			return oops.Code("AUTH_REGISTER_FAILED").With("operation", "create user").Wrap(err)
		}
		var err error
		if refresh, err = s.createRefreshToken(ctx, user.ID, now); err != nil {
			return err
		}
		verification, err = s.createVerification(ctx, user.ID, now)
		return err
	})
	if err != nil {
		return settle(err)
	}

	res, err = s.signIn(user, refresh)
	if err != nil {
		return Result{}, err
	}
	res.VerificationToken = verification
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "username", user.Username)
	return res, nil
}

// Login authenticates by username or email. Unknown accounts and wrong
// passwords produce the same failure. A locked account answers
// AccountLocked whether or not the password is correct.
func (s *Service) Login(ctx context.Context, login, password string) (res Result, err error) {
	defer func() { recordOperation("login", res, err) }()

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return fail(CodeInvalidCredentials, MsgInvalidCredentials), nil
	}

	user, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		// Keep timing identical to a wrong password on an existing account.
		_, _ = s.hasher.Verify(password, s.dummyHash, s.dummySalt) //nolint:errcheck // result unused
		return fail(CodeInvalidCredentials, MsgInvalidCredentials), nil
	}
	if err != nil {
		return Result{}, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by login").Wrap(err)
	}

	now := s.now()
	lockout := CheckFailures(user.FailedAttempts, user.LockedUntil, now)
	valid, err := s.hasher.Verify(password, user.PasswordHash, user.PasswordSalt)
	if err != nil {
		return Result{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if lockout.IsLockedOut {
		s.logger.InfoContext(ctx, "login refused",
			"user_id", user.ID.String(),
			"code", string(CodeAccountLocked),
			"remaining", lockout.Remaining.String())
		return fail(CodeAccountLocked, MsgAccountLocked), nil
	}
	if !valid {
		s.recordLoginFailure(ctx, user.ID)
		return fail(CodeInvalidCredentials, MsgInvalidCredentials), nil
	}

	var refresh string
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.users.Lock(ctx, user.ID)
		// A password change that committed after verification invalidates it.
		if errors.Is(err, ErrNotFound) || (err == nil && locked.PasswordHash != user.PasswordHash) {
			return abort(CodeInvalidCredentials, MsgInvalidCredentials)
		}
		if err != nil {
			return oops.Code("AUTH_LOGIN_FAILED").With("operation", "lock user").Wrap(err)
		}
		// A lock taken by a concurrent failure since the first read.
		if locked.IsLockedAt(now) {
			return abort(CodeAccountLocked, MsgAccountLocked)
		}
		if !locked.IsActive {
			return abort(CodeInactiveAccount, MsgInactiveAccount)
		}
		locked.RecordLogin(now)
		if err := s.users.Update(ctx, locked); err != nil {
			return oops.Code("AUTH_LOGIN_FAILED").With("operation", "record login").Wrap(err)
		}
		user = locked
		refresh, err = s.createRefreshToken(ctx, user.ID, now)
		return err
	})
	if err != nil {
		res, err = settle(err)
		if err == nil {
			s.logger.InfoContext(ctx, "login refused", "user_id", user.ID.String(), "code", string(res.Code))
		}
		return res, err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return s.signIn(user, refresh)
}

// recordLoginFailure counts a failed attempt. Failures to record are
// logged; the login outcome is unchanged.
func (s *Service) recordLoginFailure(ctx context.Context, id ulid.ULID) {
	now := s.now()
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.Lock(ctx, id)
		if err != nil {
			return err
		}
		user.RecordFailure(now)
		status := CheckFailures(user.FailedAttempts, user.LockedUntil, now)
		if status.IsLockedOut {
			s.logger.WarnContext(ctx, "account locked",
				"user_id", id.String(),
				"locked_until", user.LockedUntil.Format(time.RFC3339))
		} else {
			s.logger.DebugContext(ctx, "login failure recorded",
				"user_id", id.String(),
				"attempts_left", status.AttemptsLeft)
		}
		return s.users.Update(ctx, user)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure", "user_id", id.String(), "error", err)
	}
}

// RefreshToken rotates a refresh token. The presented token is revoked
// with its successor recorded; a rotated token can never be reused.
func (s *Service) RefreshToken(ctx context.Context, token string) (res Result, err error) {
	defer func() { recordOperation("refresh", res, err) }()

	if token == "" {
		return fail(CodeInvalidOrExpiredToken, MsgInvalidOrExpiredToken), nil
	}
	hash := HashToken(token)
	now := s.now()

	stored, err := s.refreshTokens.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return fail(CodeInvalidOrExpiredToken, MsgInvalidOrExpiredToken), nil
	}
	if err != nil {
		return Result{}, oops.Code("AUTH_REFRESH_FAILED").With("operation", "get refresh token").Wrap(err)
	}
	if !VerifyToken(token, stored.TokenHash) || !stored.IsActiveAt(now) {
		return fail(CodeInvalidOrExpiredToken, MsgInvalidOrExpiredToken), nil
	}

	var user *User
	var refresh string
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.Lock(ctx, stored.UserID)
		if errors.Is(err, ErrNotFound) {
			return abort(CodeUserNotFoundOrInactive, MsgUserNotFoundOrInactive)
		}
		if err != nil {
			return oops.Code("AUTH_REFRESH_FAILED").With("operation", "lock user").Wrap(err)
		}
		if !user.IsActive {
			return abort(CodeUserNotFoundOrInactive, MsgUserNotFoundOrInactive)
		}

		next, nextHash, err := newOpaqueToken()
		if err != nil {
			return err
		}
		_, err = s.refreshTokens.Revoke(ctx, RevokeRequest{
			TokenHash:      hash,
			Reason:         ReasonRotated,
			ReplacedByHash: nextHash,
			At:             now,
			RequireActive:  true,
		})
		if errors.Is(err, ErrTokenInactive) || errors.Is(err, ErrNotFound) {
			// Another caller rotated this token first.
			return abort(CodeInvalidOrExpiredToken, MsgInvalidOrExpiredToken)
		}
		if err != nil {
			return oops.Code("AUTH_REFRESH_FAILED").With("operation", "revoke rotated token").Wrap(err)
		}
		if err := s.refreshTokens.Create(ctx, &RefreshToken{
			TokenHash: nextHash,
			UserID:    user.ID,
			ExpiresAt: now.Add(s.refreshTTL),
			CreatedAt: now,
		}); err != nil {
			return oops.Code("AUTH_REFRESH_FAILED").With("operation", "create refresh token").Wrap(err)
		}
		refresh = next
		return nil
	})
	if err != nil {
		return settle(err)
	}

	recordRevoked(ReasonRotated, 1)
	return s.signIn(user, refresh)
}

// RevokeToken revokes a refresh token. It returns false when the token is
// unknown or already revoked. An empty reason records ReasonManual.
func (s *Service) RevokeToken(ctx context.Context, token, reason string) (ok bool, err error) {
	defer func() { recordOperation("revoke", Result{Success: ok}, err) }()

	if token == "" {
		return false, nil
	}
	if reason == "" {
		reason = ReasonManual
	}
	_, err = s.refreshTokens.Revoke(ctx, RevokeRequest{
		TokenHash: HashToken(token),
		Reason:    reason,
		At:        s.now(),
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTokenInactive) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_REVOKE_FAILED").With("operation", "revoke refresh token").Wrap(err)
	}
	recordRevoked(reason, 1)
	return true, nil
}

// ValidateAccessToken parses and validates an access token.
func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.tokens.Parse(token)
}

// createRefreshToken stores a new refresh token and returns its plaintext.
func (s *Service) createRefreshToken(ctx context.Context, userID ulid.ULID, now time.Time) (string, error) {
	token, hash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.refreshTokens.Create(ctx, &RefreshToken{
		TokenHash: hash,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return "", oops.Code("AUTH_TOKEN_CREATE_FAILED").
			With("operation", "create refresh token").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}

// signIn builds a successful Result with a fresh access token.
func (s *Service) signIn(user *User, refresh string) (Result, error) {
	access, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success:      true,
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}
