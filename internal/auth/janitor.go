// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("loreweave/auth")

// DefaultJanitorInterval is how often expired tokens are purged when no
// interval is configured.
const DefaultJanitorInterval = time.Hour

// Purger removes expired token records. *Service implements it.
type Purger interface {
	PurgeExpired(ctx context.Context) (PurgeStats, error)
}

// Janitor periodically purges expired refresh, reset and verification
// tokens in the background.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a Janitor. A non-positive interval selects
// DefaultJanitorInterval; a nil logger selects slog.Default().
func NewJanitor(purger Purger, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{purger: purger, interval: interval, logger: logger}
}

// Start runs a purge immediately and then once per interval until Stop is
// called or ctx ends.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return oops.Code("JANITOR_ALREADY_RUNNING").Errorf("janitor already running")
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.run(ctx)
	return nil
}

// Stop stops the janitor and waits for an in-flight purge to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "auth.purge_expired")
	defer span.End()

	stats, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			j.logger.ErrorContext(ctx, "token purge failed", "error", err)
		}
		return
	}
	span.SetAttributes(attribute.Int64("auth.purged", stats.Total()))
}
