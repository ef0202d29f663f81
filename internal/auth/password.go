// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ChangePassword replaces the password of userID after checking the
// current one. All of the user's refresh tokens are revoked in the same
// transaction.
func (s *Service) ChangePassword(ctx context.Context, userID ulid.ULID, currentPassword, newPassword string) (res Result, err error) {
	defer func() { recordOperation("change_password", res, err) }()

	if verr := ValidatePassword(newPassword); verr != nil {
		return fail(CodeValidation, verr.Error()), nil
	}

	now := s.now()
	var user *User
	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.Lock(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return abort(CodeNotFound, MsgUserNotFound)
		}
		if err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "lock user").Wrap(err)
		}

		valid, err := s.hasher.Verify(currentPassword, user.PasswordHash, user.PasswordSalt)
		if err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
				With("operation", "verify current password").
				With("user_id", userID.String()).
				Wrap(err)
		}
		if !valid {
			return abort(CodeInvalidCurrentPassword, MsgInvalidCurrentPassword)
		}

		revoked, err = s.replacePassword(ctx, user, newPassword, ReasonPassword, now)
		return err
	})
	if err != nil {
		return settle(err)
	}

	recordRevoked(ReasonPassword, revoked)
	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String(), "tokens_revoked", revoked)
	return Result{Success: true, Message: MsgPasswordChanged, User: user}, nil
}

// GeneratePasswordResetToken creates a reset token valid for
// ResetTokenExpiry. It returns "" when no account has the email so that
// callers respond identically either way.
func (s *Service) GeneratePasswordResetToken(ctx context.Context, email string) (token string, err error) {
	defer func() { recordOperation("request_reset", Result{Success: token != ""}, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return "", nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "get user by email").Wrap(err)
	}

	token, hash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	if err := s.resetTokens.Create(ctx, &PasswordResetToken{
		TokenHash: hash,
		UserID:    user.ID,
		ExpiresAt: now.Add(ResetTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return "", oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "create reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID.String())
	return token, nil
}

// ResetPassword redeems a reset token. It returns false when the token is
// unknown, used or expired, when the account is gone, or when the new
// password is rejected. On success the token is consumed, failed login
// attempts are cleared and all refresh tokens are revoked.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (ok bool, err error) {
	defer func() { recordOperation("reset_password", Result{Success: ok}, err) }()

	if token == "" || ValidatePassword(newPassword) != nil {
		return false, nil
	}
	hash := HashToken(token)
	now := s.now()

	reset, err := s.resetTokens.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_RESET_FAILED").With("operation", "get reset token").Wrap(err)
	}
	if !VerifyToken(token, reset.TokenHash) || !reset.IsValidAt(now) {
		return false, nil
	}

	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.Lock(ctx, reset.UserID)
		if errors.Is(err, ErrNotFound) {
			return abort(CodeNotFound, MsgUserNotFound)
		}
		if err != nil {
			return oops.Code("AUTH_RESET_FAILED").With("operation", "lock user").Wrap(err)
		}

		err = s.resetTokens.MarkUsed(ctx, hash, now)
		if errors.Is(err, ErrTokenInactive) || errors.Is(err, ErrNotFound) {
			return abort(CodeInvalidOrExpiredToken, MsgInvalidOrExpiredToken)
		}
		if err != nil {
			return oops.Code("AUTH_RESET_FAILED").With("operation", "mark reset token used").Wrap(err)
		}

		user.FailedAttempts = 0
		user.LockedUntil = nil
		revoked, err = s.replacePassword(ctx, user, newPassword, ReasonReset, now)
		return err
	})
	if err != nil {
		if _, err := settle(err); err != nil {
			return false, err
		}
		return false, nil
	}

	recordRevoked(ReasonReset, revoked)
	s.logger.InfoContext(ctx, "password reset", "user_id", reset.UserID.String(), "tokens_revoked", revoked)
	return true, nil
}

// replacePassword rehashes under a fresh salt, saves the user and revokes
// all of their refresh tokens. Callers hold the user lock.
func (s *Service) replacePassword(ctx context.Context, user *User, password, reason string, now time.Time) (int64, error) {
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return 0, oops.Code("AUTH_PASSWORD_UPDATE_FAILED").With("operation", "hash password").Wrap(err)
	}
	user.PasswordHash = hash
	user.PasswordSalt = salt
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return 0, oops.Code("AUTH_PASSWORD_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	revoked, err := s.refreshTokens.RevokeAllForUser(ctx, user.ID, reason, now)
	if err != nil {
		return 0, oops.Code("AUTH_PASSWORD_UPDATE_FAILED").
			With("operation", "revoke refresh tokens").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return revoked, nil
}
