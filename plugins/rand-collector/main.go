// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is an example collector plugin that reports random values.
//
// Run it without arguments for a diagnostic report:
//
//	go run ./plugins/rand-collector --max 10
package main

import (
	"os"
	"time"

	"github.com/holomush/snapplugin/pkg/plugin"
	"github.com/holomush/snapplugin/pkg/pluginsdk"
)

const (
	pluginName    = "rand"
	pluginVersion = 1
)

func main() {
	c := newCollector(uint64(time.Now().UnixNano()))
	os.Exit(pluginsdk.StartCollector(c, pluginName, pluginVersion,
		pluginsdk.WithMeta(plugin.CacheTTL(time.Second), plugin.ConcurrencyCount(2)),
		pluginsdk.WithFlags(c.registerFlags),
	))
}
