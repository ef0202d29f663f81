// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/auth"
	authpg "github.com/loreweave/loreweave/internal/auth/postgres"
	"github.com/loreweave/loreweave/internal/config"
	"github.com/loreweave/loreweave/internal/store"
	"github.com/loreweave/loreweave/internal/world"
	worldpg "github.com/loreweave/loreweave/internal/world/postgres"
)

// app holds the services built over one database pool.
type app struct {
	Auth      *auth.Service
	World     *world.Service
	Relations *world.Registry

	cfg *config.Config
}

// buildApp wires the PostgreSQL repositories into the services.
func buildApp(pool store.Pool, cfg *config.Config, logger *slog.Logger) (*app, error) {
	hasher, err := auth.NewHasher(cfg.Auth.Hasher)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewAccessTokenIssuer(auth.AccessTokenConfig{
		Secret:   cfg.Auth.SigningSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		return nil, oops.With("operation", "create token issuer").Wrap(err)
	}

	tx := store.NewTransactor(pool)
	authSvc, err := auth.NewService(auth.ServiceConfig{
		Users:           authpg.NewUserRepository(pool),
		RefreshTokens:   authpg.NewRefreshTokenRepository(pool),
		ResetTokens:     authpg.NewPasswordResetRepository(pool),
		Verifications:   authpg.NewEmailVerificationRepository(pool),
		Hasher:          hasher,
		Tokens:          tokens,
		Transactor:      tx,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL(),
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	universes := worldpg.NewUniverseRepository(pool)
	worldSvc, err := world.NewService(world.ServiceConfig{
		Universes: universes,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	registry, err := world.NewRegistry(world.RegistryConfig{
		Universes:  universes,
		Relations:  worldpg.NewRelationRepository(pool),
		Transactor: tx,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{Auth: authSvc, World: worldSvc, Relations: registry, cfg: cfg}, nil
}
