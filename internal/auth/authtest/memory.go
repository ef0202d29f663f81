// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/auth"
)

// Store holds every auth table in memory. Transactions are serialized
// and roll back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex

	mu            sync.Mutex
	users         map[ulid.ULID]auth.User
	refresh       map[string]auth.RefreshToken
	resets        map[string]auth.PasswordResetToken
	verifications map[string]auth.EmailVerification
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:         make(map[ulid.ULID]auth.User),
		refresh:       make(map[string]auth.RefreshToken),
		resets:        make(map[string]auth.PasswordResetToken),
		verifications: make(map[string]auth.EmailVerification),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// RefreshTokens returns the refresh token repository view of the store.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

// ResetTokens returns the password reset repository view of the store.
func (s *Store) ResetTokens() *ResetRepository { return &ResetRepository{s: s} }

// Verifications returns the email verification repository view of the store.
func (s *Store) Verifications() *VerificationRepository { return &VerificationRepository{s: s} }

// Transactor returns a Transactor over the store.
func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

type txKey struct{}

// Transactor serializes transactions and rolls back on error.
type Transactor struct {
	s *Store
}

// InTransaction implements auth.Transactor. Nested calls join the outer
// transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	users, refresh := maps.Clone(t.s.users), maps.Clone(t.s.refresh)
	resets, verifications := maps.Clone(t.s.resets), maps.Clone(t.s.verifications)
	t.s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.mu.Lock()
		t.s.users, t.s.refresh = users, refresh
		t.s.resets, t.s.verifications = resets, verifications
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// UserRepository is an in-memory auth.UserRepository.
type UserRepository struct {
	s *Store
}

func notFound(kind, key string) error {
	return oops.Code(strings.ToUpper(kind)+"_NOT_FOUND").With("key", key).Wrap(auth.ErrNotFound)
}

// Create implements auth.UserRepository.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return oops.Code("USER_DUPLICATE").With("id", user.ID.String()).Wrap(auth.ErrDuplicate)
	}
	for _, u := range r.s.users {
		if u.IsDeleted {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return oops.Code("USER_DUPLICATE").With("username", user.Username).Wrap(auth.ErrDuplicate)
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) find(match func(auth.User) bool, key string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if !u.IsDeleted && match(u) {
			return &u, nil
		}
	}
	return nil, notFound("user", key)
}

// GetByID implements auth.UserRepository.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.ID == id }, id.String())
}

// GetByUsername implements auth.UserRepository.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Username, username) }, username)
}

// GetByEmail implements auth.UserRepository.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

// GetByLogin implements auth.UserRepository.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	if u, err := r.GetByUsername(ctx, login); err == nil {
		return u, nil
	}
	return r.GetByEmail(ctx, login)
}

// List implements auth.UserRepository.
func (r *UserRepository) List(_ context.Context) ([]*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.User
	for _, u := range r.s.users {
		if !u.IsDeleted {
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

// Lock implements auth.UserRepository. Transactions are already
// serialized, so it is a plain read.
func (r *UserRepository) Lock(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.GetByID(ctx, id)
}

// Update implements auth.UserRepository.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[user.ID]; !ok || u.IsDeleted {
		return notFound("user", user.ID.String())
	}
	r.s.users[user.ID] = *user
	return nil
}

// Delete implements auth.UserRepository.
func (r *UserRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.IsDeleted {
		return notFound("user", id.String())
	}
	u.IsDeleted = true
	u.IsActive = false
	r.s.users[id] = u
	return nil
}

// GetByIDIncludingDeleted implements auth.UserRepository.
func (r *UserRepository) GetByIDIncludingDeleted(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound("user", id.String())
	}
	return &u, nil
}

// RefreshTokenRepository is an in-memory auth.RefreshTokenRepository.
type RefreshTokenRepository struct {
	s *Store
}

// Create implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) Create(_ context.Context, token *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.refresh[token.TokenHash] = *token
	return nil
}

// GetByHash implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) GetByHash(_ context.Context, hash string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[hash]
	if !ok {
		return nil, notFound("refresh_token", hash)
	}
	return &t, nil
}

// Revoke implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) Revoke(_ context.Context, req auth.RevokeRequest) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[req.TokenHash]
	if !ok {
		return nil, notFound("refresh_token", req.TokenHash)
	}
	if t.IsRevoked() || (req.RequireActive && t.IsExpiredAt(req.At)) {
		return nil, oops.Code("REFRESH_TOKEN_INACTIVE").Wrap(auth.ErrTokenInactive)
	}
	at := req.At
	t.RevokedAt = &at
	t.RevokedReason = req.Reason
	t.ReplacedByHash = req.ReplacedByHash
	r.s.refresh[req.TokenHash] = t
	return &t, nil
}

// RevokeAllForUser implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID ulid.ULID, reason string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, t := range r.s.refresh {
		if t.UserID != userID || t.IsRevoked() {
			continue
		}
		t.RevokedAt = &at
		t.RevokedReason = reason
		r.s.refresh[hash] = t
		n++
	}
	return n, nil
}

// ListByUser implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) ListByUser(_ context.Context, userID ulid.ULID) ([]*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.RefreshToken
	for _, t := range r.s.refresh {
		if t.UserID == userID {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteByUser implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maps.DeleteFunc(r.s.refresh, func(_ string, t auth.RefreshToken) bool { return t.UserID == userID })
	return nil
}

// DeleteExpired implements auth.RefreshTokenRepository.
func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	before := len(r.s.refresh)
	maps.DeleteFunc(r.s.refresh, func(_ string, t auth.RefreshToken) bool { return t.IsExpiredAt(now) })
	return int64(before - len(r.s.refresh)), nil
}

// ResetRepository is an in-memory auth.PasswordResetRepository.
type ResetRepository struct {
	s *Store
}

// Create implements auth.PasswordResetRepository.
func (r *ResetRepository) Create(_ context.Context, token *auth.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resets[token.TokenHash] = *token
	return nil
}

// GetByHash implements auth.PasswordResetRepository.
func (r *ResetRepository) GetByHash(_ context.Context, hash string) (*auth.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resets[hash]
	if !ok {
		return nil, notFound("reset_token", hash)
	}
	return &t, nil
}

// MarkUsed implements auth.PasswordResetRepository.
func (r *ResetRepository) MarkUsed(_ context.Context, hash string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resets[hash]
	if !ok {
		return notFound("reset_token", hash)
	}
	if !t.IsValidAt(at) {
		return oops.Code("RESET_TOKEN_INACTIVE").Wrap(auth.ErrTokenInactive)
	}
	t.Used = true
	t.UsedAt = &at
	r.s.resets[hash] = t
	return nil
}

// DeleteByUser implements auth.PasswordResetRepository.
func (r *ResetRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maps.DeleteFunc(r.s.resets, func(_ string, t auth.PasswordResetToken) bool { return t.UserID == userID })
	return nil
}

// DeleteExpired implements auth.PasswordResetRepository.
func (r *ResetRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	before := len(r.s.resets)
	maps.DeleteFunc(r.s.resets, func(_ string, t auth.PasswordResetToken) bool { return t.IsExpiredAt(now) })
	return int64(before - len(r.s.resets)), nil
}

// VerificationRepository is an in-memory auth.EmailVerificationRepository.
type VerificationRepository struct {
	s *Store
}

// Create implements auth.EmailVerificationRepository.
func (r *VerificationRepository) Create(_ context.Context, v *auth.EmailVerification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.verifications[v.TokenHash] = *v
	return nil
}

// GetByHash implements auth.EmailVerificationRepository.
func (r *VerificationRepository) GetByHash(_ context.Context, hash string) (*auth.EmailVerification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.verifications[hash]
	if !ok {
		return nil, notFound("verification", hash)
	}
	return &v, nil
}

// MarkUsed implements auth.EmailVerificationRepository.
func (r *VerificationRepository) MarkUsed(_ context.Context, hash string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.verifications[hash]
	if !ok {
		return notFound("verification", hash)
	}
	if !v.IsValidAt(at) {
		return oops.Code("VERIFICATION_INACTIVE").Wrap(auth.ErrTokenInactive)
	}
	v.UsedAt = &at
	r.s.verifications[hash] = v
	return nil
}

// DeleteByUser implements auth.EmailVerificationRepository.
func (r *VerificationRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maps.DeleteFunc(r.s.verifications, func(_ string, v auth.EmailVerification) bool { return v.UserID == userID })
	return nil
}

// DeleteExpired implements auth.EmailVerificationRepository.
func (r *VerificationRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	before := len(r.s.verifications)
	maps.DeleteFunc(r.s.verifications, func(_ string, v auth.EmailVerification) bool { return !now.Before(v.ExpiresAt) })
	return int64(before - len(r.s.verifications)), nil
}

// Verify interfaces are satisfied.
var (
	_ auth.UserRepository              = (*UserRepository)(nil)
	_ auth.RefreshTokenRepository      = (*RefreshTokenRepository)(nil)
	_ auth.PasswordResetRepository     = (*ResetRepository)(nil)
	_ auth.EmailVerificationRepository = (*VerificationRepository)(nil)
	_ auth.Transactor                  = (*Transactor)(nil)
)
