// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/snapplugin/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("PORT_IN_USE").Errorf("port already in use")
	errutil.AssertErrorCode(t, err, "PORT_IN_USE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("path", "/etc/ca.crt").Errorf("failed to load")
	errutil.AssertErrorContext(t, err, "path", "/etc/ca.crt")
}

func TestAssertTraceReply_FormattedError(t *testing.T) {
	reply := errutil.FormatWithTrace(oops.Errorf("sensor offline"))
	errutil.AssertTraceReply(t, reply, "sensor offline")
}
