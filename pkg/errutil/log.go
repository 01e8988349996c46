// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil holds oops-aware helpers shared by the plugin runtime:
// structured error logging, the dispatch-boundary error formatter and test
// assertions on error codes.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, msg, err, attrs...)
}

// LogErrorContext is LogError with a context for trace correlation.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	all := append([]any{"error", err.Error()}, attrs...)
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			all = append(all, "code", code)
		}
		if octx := oopsErr.Context(); len(octx) > 0 {
			all = append(all, "context", octx)
		}
	}
	logger.ErrorContext(ctx, msg, all...)
}
