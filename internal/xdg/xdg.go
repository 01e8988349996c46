// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves XDG Base Directory paths for plugin tooling.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "snapplugin"

// ConfigDir returns XDG_CONFIG_HOME/snapplugin, falling back to ~/.config.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns XDG_STATE_HOME/snapplugin, falling back to ~/.local/state.
func StateDir() string {
	return dir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// CertsDir holds the operator's client certificate (client.crt, client.key)
// and CA bundle used by snapctl.
func CertsDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

func dir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), fallback)
	}
	return filepath.Join(base, appName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("DIR_CREATE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// ExistingFile returns filepath.Join(dir, name) when it names a regular file.
func ExistingFile(dir, name string) (string, bool) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
