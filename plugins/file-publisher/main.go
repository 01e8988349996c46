// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is an example publisher plugin that appends metrics to a file.
package main

import (
	"os"

	"github.com/holomush/snapplugin/pkg/plugin"
	"github.com/holomush/snapplugin/pkg/pluginsdk"
)

func main() {
	p := newPublisher()
	os.Exit(pluginsdk.StartPublisher(p, "file", 1,
		pluginsdk.WithMeta(plugin.Exclusive(true)),
		pluginsdk.WithFlags(p.registerFlags),
	))
}
