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

// DefaultSuperUserPassword is the initial superuser password when none is
// configured. It is meant to be changed after the first login.
//
//nolint:gosec // G101: documented bootstrap default, not a secret
const DefaultSuperUserPassword = "ChangeMe123!"

// superUserEmail is the address given to the bootstrapped superuser.
const superUserEmail = "admin@loreweave.local"

// PurgeStats reports the records removed by PurgeExpired.
type PurgeStats struct {
	RefreshTokens int64
	ResetTokens   int64
	Verifications int64
}

// Total returns the number of records removed.
func (p PurgeStats) Total() int64 {
	return p.RefreshTokens + p.ResetTokens + p.Verifications
}

// GetUser returns a non-deleted user by id.
func (s *Service) GetUser(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, oops.With("operation", "get user").With("user_id", id.String()).Wrap(err)
	}
	return user, nil
}

// GetUserIncludingDeleted returns a user by id whether or not it was
// deleted. It backs administrative views.
func (s *Service) GetUserIncludingDeleted(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByIDIncludingDeleted(ctx, id)
	if err != nil {
		return nil, oops.With("operation", "get user including deleted").With("user_id", id.String()).Wrap(err)
	}
	return user, nil
}

// ListUsers returns all non-deleted users.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_LIST_USERS_FAILED").Wrap(err)
	}
	return users, nil
}

// RequestEmailVerification issues a verification token for userID. The
// token is returned in Result.VerificationToken for out-of-band delivery.
// An already verified account succeeds without a token.
func (s *Service) RequestEmailVerification(ctx context.Context, userID ulid.ULID) (res Result, err error) {
	defer func() { recordOperation("request_verification", res, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return fail(CodeNotFound, MsgUserNotFound), nil
	}
	if err != nil {
		return Result{}, oops.Code("AUTH_VERIFICATION_FAILED").With("operation", "get user").Wrap(err)
	}
	if user.EmailVerified {
		return Result{Success: true, Message: MsgEmailVerified, User: user}, nil
	}

	token, err := s.createVerification(ctx, user.ID, s.now())
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, User: user, VerificationToken: token}, nil
}

// VerifyEmail redeems a verification token and marks the owner's email
// verified. It returns false for unknown, used or expired tokens.
func (s *Service) VerifyEmail(ctx context.Context, token string) (ok bool, err error) {
	defer func() { recordOperation("verify_email", Result{Success: ok}, err) }()

	if token == "" {
		return false, nil
	}
	hash := HashToken(token)
	now := s.now()

	v, err := s.verifications.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_VERIFICATION_FAILED").With("operation", "get verification").Wrap(err)
	}
	if !VerifyToken(token, v.TokenHash) || !v.IsValidAt(now) {
		return false, nil
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.Lock(ctx, v.UserID)
		if errors.Is(err, ErrNotFound) {
			return abort(CodeNotFound, MsgUserNotFound)
		}
		if err != nil {
			return oops.Code("AUTH_VERIFICATION_FAILED").With("operation", "lock user").Wrap(err)
		}
		err = s.verifications.MarkUsed(ctx, hash, now)
		if errors.Is(err, ErrTokenInactive) || errors.Is(err, ErrNotFound) {
			return abort(CodeInvalidOrExpiredToken, MsgInvalidOrExpiredToken)
		}
		if err != nil {
			return oops.Code("AUTH_VERIFICATION_FAILED").With("operation", "mark verification used").Wrap(err)
		}
		user.EmailVerified = true
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("AUTH_VERIFICATION_FAILED").With("operation", "update user").Wrap(err)
		}
		return nil
	})
	if err != nil {
		if _, err := settle(err); err != nil {
			return false, err
		}
		return false, nil
	}

	s.logger.InfoContext(ctx, "email verified", "user_id", v.UserID.String())
	return true, nil
}

// DeleteUser soft-deletes an account and removes all of its refresh,
// reset and verification tokens. It returns false for the superuser and
// for unknown accounts.
func (s *Service) DeleteUser(ctx context.Context, id ulid.ULID) (ok bool, err error) {
	defer func() { recordOperation("delete_user", Result{Success: ok}, err) }()

	if id == SuperUserID {
		s.logger.WarnContext(ctx, "refused to delete superuser")
		return false, nil
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.lockMutable(ctx, id)
		if err != nil {
			return err
		}
		if err := s.refreshTokens.DeleteByUser(ctx, user.ID); err != nil {
			return oops.Code("AUTH_DELETE_USER_FAILED").With("operation", "delete refresh tokens").Wrap(err)
		}
		if err := s.resetTokens.DeleteByUser(ctx, user.ID); err != nil {
			return oops.Code("AUTH_DELETE_USER_FAILED").With("operation", "delete reset tokens").Wrap(err)
		}
		if err := s.verifications.DeleteByUser(ctx, user.ID); err != nil {
			return oops.Code("AUTH_DELETE_USER_FAILED").With("operation", "delete verifications").Wrap(err)
		}
		if err := s.users.Delete(ctx, user.ID); err != nil {
			return oops.Code("AUTH_DELETE_USER_FAILED").With("operation", "delete user").Wrap(err)
		}
		return nil
	})
	if err != nil {
		if _, err := settle(err); err != nil {
			return false, oops.With("user_id", id.String()).Wrap(err)
		}
		return false, nil
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id.String())
	return true, nil
}

// DeactivateUser clears IsActive and revokes all refresh tokens. It
// returns false for the superuser and for unknown accounts.
func (s *Service) DeactivateUser(ctx context.Context, id ulid.ULID) (ok bool, err error) {
	defer func() { recordOperation("deactivate_user", Result{Success: ok}, err) }()

	if id == SuperUserID {
		s.logger.WarnContext(ctx, "refused to deactivate superuser")
		return false, nil
	}
	now := s.now()
	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.lockMutable(ctx, id)
		if err != nil {
			return err
		}
		user.IsActive = false
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("AUTH_DEACTIVATE_USER_FAILED").With("operation", "update user").Wrap(err)
		}
		revoked, err = s.refreshTokens.RevokeAllForUser(ctx, user.ID, ReasonDeactivated, now)
		if err != nil {
			return oops.Code("AUTH_DEACTIVATE_USER_FAILED").With("operation", "revoke refresh tokens").Wrap(err)
		}
		return nil
	})
	if err != nil {
		if _, err := settle(err); err != nil {
			return false, oops.With("user_id", id.String()).Wrap(err)
		}
		return false, nil
	}

	recordRevoked(ReasonDeactivated, revoked)
	s.logger.InfoContext(ctx, "user deactivated", "user_id", id.String(), "tokens_revoked", revoked)
	return true, nil
}

// lockMutable locks an account that may be deleted or deactivated.
func (s *Service) lockMutable(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.Lock(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, abort(CodeNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("AUTH_USER_LOCK_FAILED").With("operation", "lock user").Wrap(err)
	}
	if user.IsSuperUser {
		return nil, abort(CodePermissionDenied, MsgSuperUserProtected)
	}
	return user, nil
}

// EnsureSuperUser creates the superuser when no account holds the
// reserved username. It reports whether an account was created. An empty
// password selects DefaultSuperUserPassword.
func (s *Service) EnsureSuperUser(ctx context.Context, initialPassword string) (bool, error) {
	_, err := s.users.GetByUsername(ctx, SuperUserName)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, oops.Code("AUTH_BOOTSTRAP_FAILED").With("operation", "get superuser").Wrap(err)
	}

	if initialPassword == "" {
		initialPassword = DefaultSuperUserPassword
	}
	hash, salt, err := s.hasher.Hash(initialPassword)
	if err != nil {
		return false, oops.Code("AUTH_BOOTSTRAP_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := s.now()
	err = s.users.Create(ctx, &User{
		ID:            SuperUserID,
		Username:      SuperUserName,
		Email:         superUserEmail,
		PasswordHash:  hash,
		PasswordSalt:  salt,
		IsActive:      true,
		EmailVerified: true,
		IsSuperUser:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if errors.Is(err, ErrDuplicate) {
		// Another instance bootstrapped concurrently.
		return false, nil
	}
	if err != nil {
		return false, oops.Code("AUTH_BOOTSTRAP_FAILED").With("operation", "create superuser").Wrap(err)
	}

	s.logger.InfoContext(ctx, "superuser created", "user_id", SuperUserID.String(), "username", SuperUserName)
	return true, nil
}

// PurgeExpired removes expired refresh, reset and verification tokens.
func (s *Service) PurgeExpired(ctx context.Context) (PurgeStats, error) {
	now := s.now()
	var stats PurgeStats
	var err error

	if stats.RefreshTokens, err = s.refreshTokens.DeleteExpired(ctx, now); err != nil {
		return stats, oops.Code("AUTH_PURGE_FAILED").With("kind", "refresh").Wrap(err)
	}
	if stats.ResetTokens, err = s.resetTokens.DeleteExpired(ctx, now); err != nil {
		return stats, oops.Code("AUTH_PURGE_FAILED").With("kind", "reset").Wrap(err)
	}
	if stats.Verifications, err = s.verifications.DeleteExpired(ctx, now); err != nil {
		return stats, oops.Code("AUTH_PURGE_FAILED").With("kind", "verification").Wrap(err)
	}

	TokensPurged.WithLabelValues("refresh").Add(float64(stats.RefreshTokens))
	TokensPurged.WithLabelValues("reset").Add(float64(stats.ResetTokens))
	TokensPurged.WithLabelValues("verification").Add(float64(stats.Verifications))
	if stats.Total() > 0 {
		s.logger.InfoContext(ctx, "purged expired tokens",
			"refresh", stats.RefreshTokens,
			"reset", stats.ResetTokens,
			"verification", stats.Verifications)
	}
	return stats, nil
}

// createVerification stores a verification token and returns its plaintext.
func (s *Service) createVerification(ctx context.Context, userID ulid.ULID, now time.Time) (string, error) {
	token, hash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.verifications.Create(ctx, &EmailVerification{
		TokenHash: hash,
		UserID:    userID,
		ExpiresAt: now.Add(VerificationTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return "", oops.Code("AUTH_VERIFICATION_FAILED").
			With("operation", "create verification").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}
