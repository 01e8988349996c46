// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is an example processor plugin that adds tags to metrics
// whose namespace matches a glob.
package main

import (
	"os"

	"github.com/holomush/snapplugin/pkg/pluginsdk"
)

func main() {
	p := &processor{}
	os.Exit(pluginsdk.StartProcessor(p, "tag", 1, pluginsdk.WithFlags(p.registerFlags)))
}
