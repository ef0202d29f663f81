// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package errutil holds helpers for logging and surfacing oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// GenericMessage is what callers outside development see for unexpected errors.
const GenericMessage = "an unexpected error occurred"

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// Code returns the oops code attached to err, or "" when there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return ""
	}
	return code
}

// PublicMessage returns the text that may be shown to an end user for an
// unexpected error. Details are only echoed in development.
func PublicMessage(err error, development bool) string {
	if err == nil {
		return ""
	}
	if !development {
		return GenericMessage
	}
	if code := Code(err); code != "" {
		return code + ": " + err.Error()
	}
	return err.Error()
}
