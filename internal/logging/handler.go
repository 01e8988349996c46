// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
// Plugins log to stderr; stdout carries only the handshake preamble.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Identity names the plugin on every record.
type Identity struct {
	Plugin  string
	Version int
	Kind    string
}

func (id Identity) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("plugin", id.Plugin),
		slog.Int("plugin_version", id.Version),
		slog.Int("pid", os.Getpid()),
	}
	if id.Kind != "" {
		attrs = append(attrs, slog.String("plugin_kind", id.Kind))
	}
	return attrs
}

// spanHandler adds trace_id and span_id when the context carries a span.
type spanHandler struct {
	next slog.Handler
}

func (h spanHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{next: h.next.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{next: h.next.WithGroup(name)}
}

// Setup returns a logger for the plugin described by id.
// format is "text" or "json" (the default). A nil w writes to os.Stderr and
// a nil level logs everything from debug up.
func Setup(id Identity, format string, w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if level == nil {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return slog.New(spanHandler{next: base.WithAttrs(id.attrs())})
}
