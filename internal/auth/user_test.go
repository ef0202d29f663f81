// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/pkg/errutil"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "alice", false},
		{"with digits and underscore", "alice_99", false},
		{"minimum length", "abc", false},
		{"maximum length", strings.Repeat("a", auth.MaxUsernameLength), false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", auth.MaxUsernameLength+1), true},
		{"starts with digit", "9lives", true},
		{"contains space", "alice smith", true},
		{"contains at sign", "alice@x", true},
		{"reserved superuser name", "admin", true},
		{"reserved name in other case", "AdMiN", true},
		{"superuser name as prefix", "administrator", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"alice@x.com", false},
		{"a.b+tag@example.org", false},
		{"not-an-email", true},
		{"Alice <alice@x.com>", true},
		{"@x.com", true},
		{strings.Repeat("a", 250) + "@x.com", true},
		{"Admin@Loreweave.local", true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, auth.ValidatePassword("Secret123!"))
	errutil.AssertErrorCode(t, auth.ValidatePassword("short"), "AUTH_WEAK_PASSWORD")
}

func TestRefreshToken_State(t *testing.T) {
	f := fixtureTime()
	tok := &auth.RefreshToken{ExpiresAt: f.Add(hour)}

	assert.True(t, tok.IsActiveAt(f))
	assert.True(t, tok.IsExpiredAt(f.Add(hour)), "expiry instant counts as expired")
	assert.False(t, tok.IsActiveAt(f.Add(hour)))

	revokedAt := f
	tok.RevokedAt = &revokedAt
	assert.True(t, tok.IsRevoked())
	assert.False(t, tok.IsActiveAt(f))
}

func TestPasswordResetToken_State(t *testing.T) {
	f := fixtureTime()
	tok := &auth.PasswordResetToken{ExpiresAt: f.Add(auth.ResetTokenExpiry)}

	assert.True(t, tok.IsValidAt(f))
	assert.False(t, tok.IsValidAt(f.Add(auth.ResetTokenExpiry)))

	tok.Used = true
	assert.False(t, tok.IsValidAt(f))
}
