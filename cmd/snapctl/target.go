// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/snapplugin/internal/xdg"
	"github.com/holomush/snapplugin/pkg/client"
)

// targetFlags select the plugin a command talks to.
type targetFlags struct {
	attach       string
	pluginArgs   []string
	logLevel     int
	rootCerts    []string
	certPath     string
	keyPath      string
	codec        string
	readyTimeout time.Duration
}

func (f *targetFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.attach, "attach", "", "attach to a running plugin using its preamble file ('-' for stdin)")
	fs.StringArrayVar(&f.pluginArgs, "plugin-arg", nil, "extra argument passed to the plugin binary")
	fs.IntVar(&f.logLevel, "log-level", 2, "plugin log level (1-5)")
	fs.StringSliceVar(&f.rootCerts, "root-cert", nil, "CA certificate used to verify the plugin")
	fs.StringVar(&f.certPath, "cert", "", "client certificate presented to the plugin")
	fs.StringVar(&f.keyPath, "key", "", "client private key")
	fs.StringVar(&f.codec, "codec", client.CodecJSON, "wire codec (json or cbor)")
	fs.DurationVar(&f.readyTimeout, "ready-timeout", client.DefaultReadyTimeout, "time allowed for the plugin to become ready")
}

// dialConfig falls back to the client certificate and CA kept in the
// operator's certs directory when none are given on the command line.
func (f *targetFlags) dialConfig() client.DialConfig {
	cfg := client.DialConfig{
		RootCertPaths: f.rootCerts,
		CertPath:      f.certPath,
		KeyPath:       f.keyPath,
		Codec:         f.codec,
	}
	dir := xdg.CertsDir()
	if cfg.CertPath == "" && cfg.KeyPath == "" {
		cert, certOK := xdg.ExistingFile(dir, "client.crt")
		key, keyOK := xdg.ExistingFile(dir, "client.key")
		if certOK && keyOK {
			cfg.CertPath, cfg.KeyPath = cert, key
		}
	}
	if len(cfg.RootCertPaths) == 0 {
		if ca, ok := xdg.ExistingFile(dir, "root-ca.crt"); ok {
			cfg.RootCertPaths = []string{ca}
		}
	}
	return cfg
}

// session is a connected plugin, either launched by us or attached to.
type session struct {
	*client.Client
	pre  client.Preamble
	proc *client.Process
}

func openSession(ctx context.Context, cmd *cobra.Command, f *targetFlags, args []string) (*session, error) {
	if f.attach != "" {
		if len(args) > 0 {
			return nil, oops.Code("INVALID_ARGS").Errorf("--attach and a plugin path are mutually exclusive")
		}
		pre, err := readPreambleFrom(cmd, f.attach)
		if err != nil {
			return nil, err
		}
		c, err := client.Dial(ctx, pre, f.dialConfig())
		if err != nil {
			return nil, err
		}
		return &session{Client: c, pre: pre}, nil
	}
	if len(args) == 0 {
		return nil, oops.Code("INVALID_ARGS").Errorf("a plugin path or --attach is required")
	}
	return launch(ctx, cmd, f, args[0])
}

func launch(ctx context.Context, cmd *cobra.Command, f *targetFlags, path string) (*session, error) {
	p, err := client.Launch(ctx, path, client.LaunchConfig{
		Config:       map[string]any{"LogLevel": f.logLevel},
		Args:         f.pluginArgs,
		Stderr:       cmd.ErrOrStderr(),
		Dial:         f.dialConfig(),
		ReadyTimeout: f.readyTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &session{Client: p.Client, pre: p.Preamble, proc: p}, nil
}

func readPreambleFrom(cmd *cobra.Command, src string) (client.Preamble, error) {
	var r io.Reader = cmd.InOrStdin()
	if src != "-" {
		f, err := os.Open(src) //nolint:gosec // path comes from the operator
		if err != nil {
			return client.Preamble{}, oops.Code("PREAMBLE_UNREADABLE").With("path", src).Wrap(err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return client.ReadPreamble(r)
}

// close stops a launched plugin, or only drops the connection when attached.
func (s *session) close(ctx context.Context) error {
	if s.proc != nil {
		return s.proc.Stop(ctx)
	}
	return s.Close()
}
