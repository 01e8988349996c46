// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"strings"

	"github.com/samber/oops"
)

const (
	messagePrefix  = "message: "
	traceSeparator = "\n\nstack trace: "
)

// FormatWithTrace renders err as the reply error string used at the plugin
// dispatch boundary: "message: <msg>\n\nstack trace: <trace>".
// Returns "" for a nil error.
func FormatWithTrace(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		wrapped := oops.Wrap(err)
		oopsErr, _ = oops.AsOops(wrapped)
	}
	return messagePrefix + err.Error() + traceSeparator + oopsErr.Stacktrace()
}

// ParseTrace splits a reply error string produced by FormatWithTrace into
// its message and stack trace. ok is false for strings in any other shape,
// in which case msg is s unchanged.
func ParseTrace(s string) (msg, stack string, ok bool) {
	rest, found := strings.CutPrefix(s, messagePrefix)
	if !found {
		return s, "", false
	}
	i := strings.LastIndex(rest, traceSeparator)
	if i < 0 {
		return s, "", false
	}
	return rest[:i], rest[i+len(traceSeparator):], true
}

// Capture runs fn and converts a panic into a PLUGIN_PANIC error naming the
// method. Errors returned by fn pass through unchanged.
func Capture(method string, fn func() error) (err error) {
	perr := oops.Code("PLUGIN_PANIC").
		With("method", method).
		Recoverf(func() { err = fn() }, "panic in %s", method)
	if perr != nil {
		return perr
	}
	return err
}
