// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is an example stream collector that emits random values at a
// fixed pace.
package main

import (
	"os"
	"time"

	"github.com/holomush/snapplugin/pkg/pluginsdk"
)

func main() {
	s := newStreamer(uint64(time.Now().UnixNano()))
	os.Exit(pluginsdk.StartStreamCollector(s, "rand-stream", 1, pluginsdk.WithFlags(s.registerFlags)))
}
