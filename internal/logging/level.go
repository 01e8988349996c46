// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"log/slog"
)

// DefaultLevel applies when the framework does not supply a level.
const DefaultLevel = slog.LevelWarn

// FromFramework maps the framework's numeric log level (1 debug, 2 info,
// 3 warn, 4 error, 5 fatal) to a slog level. Fatal has no slog counterpart
// and maps to error.
func FromFramework(n int) (slog.Level, bool) {
	switch n {
	case 1:
		return slog.LevelDebug, true
	case 2:
		return slog.LevelInfo, true
	case 3:
		return slog.LevelWarn, true
	case 4, 5:
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// ApplyFrameworkLevel sets lv from the framework level n. Zero means unset and
// selects DefaultLevel; out-of-range values are logged and leave lv unchanged.
func ApplyFrameworkLevel(ctx context.Context, logger *slog.Logger, lv *slog.LevelVar, n int) {
	if n == 0 {
		lv.Set(DefaultLevel)
		return
	}
	level, ok := FromFramework(n)
	if !ok {
		logger.ErrorContext(ctx, "log level should be between 1 and 5", "level", n)
		return
	}
	lv.Set(level)
}
