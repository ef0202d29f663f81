// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("TEST_ERROR").
		With("key", "value").
		Errorf("something failed")

	errutil.LogError(logger, "operation failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "operation failed", logEntry["msg"])
	assert.Equal(t, "TEST_ERROR", logEntry["code"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := errors.New("standard error")

	errutil.LogError(logger, "operation failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Contains(t, logEntry["error"], "standard error")
}

func TestCode(t *testing.T) {
	assert.Equal(t, "STORE_DOWN", errutil.Code(oops.Code("STORE_DOWN").Errorf("boom")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
	assert.Empty(t, errutil.Code(oops.Errorf("no code")))
}

func TestPublicMessage(t *testing.T) {
	err := oops.Code("STORE_DOWN").Errorf("connection refused")

	t.Run("production hides details", func(t *testing.T) {
		assert.Equal(t, errutil.GenericMessage, errutil.PublicMessage(err, false))
	})

	t.Run("development echoes code and message", func(t *testing.T) {
		msg := errutil.PublicMessage(err, true)
		assert.Contains(t, msg, "STORE_DOWN")
		assert.Contains(t, msg, "connection refused")
	})

	t.Run("nil error has no message", func(t *testing.T) {
		assert.Empty(t, errutil.PublicMessage(nil, true))
	})
}
