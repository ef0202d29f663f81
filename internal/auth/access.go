// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// RoleSuperUser is the role claim carried by the superuser's tokens.
const RoleSuperUser = "SuperUser"

// MinSigningSecretLength is the shortest accepted HMAC signing secret.
const MinSigningSecretLength = 32

// AccessClaims are the claims of an access token. Subject is the user id.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// IsSuperUser reports whether the token carries the superuser role.
func (c *AccessClaims) IsSuperUser() bool {
	return c.Role == RoleSuperUser
}

// AccessTokenConfig configures an AccessTokenIssuer.
type AccessTokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration

	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// AccessTokenIssuer signs and validates HS256 access tokens.
type AccessTokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewAccessTokenIssuer validates cfg and creates an issuer.
func NewAccessTokenIssuer(cfg AccessTokenConfig) (*AccessTokenIssuer, error) {
	if len(cfg.Secret) < MinSigningSecretLength {
		return nil, oops.Code("AUTH_WEAK_SECRET").
			With("min", MinSigningSecretLength).
			Errorf("signing secret must be at least %d characters", MinSigningSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("ttl", cfg.TTL).Errorf("access token lifetime must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AccessTokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      now,
	}, nil
}

// Issue signs a token for user and returns it with its expiry.
func (i *AccessTokenIssuer) Issue(user *User) (token string, expiresAt time.Time, err error) {
	now := i.now()
	expiresAt = now.Add(i.ttl)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Name:  user.Username,
		Email: user.Email,
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	if user.IsSuperUser {
		claims.Role = RoleSuperUser
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	return token, expiresAt, nil
}

// Parse validates signature, algorithm, issuer, audience and expiry.
func (i *AccessTokenIssuer) Parse(token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_ACCESS_TOKEN").Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("AUTH_INVALID_ACCESS_TOKEN").Errorf("access token is not valid")
	}
	return claims, nil
}
