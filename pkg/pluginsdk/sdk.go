// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pluginsdk provides the entry points for building metric plugins.
//
// A plugin binary implements one of the capability interfaces from
// pkg/plugin and hands it to the matching Start function:
//
//	package main
//
//	import (
//		"os"
//
//		"github.com/holomush/snapplugin/pkg/pluginsdk"
//	)
//
//	func main() {
//		os.Exit(pluginsdk.StartCollector(&randCollector{}, "rand-collector", 1))
//	}
//
// Start parses the command line, decides whether the process was launched by
// the framework, in standalone mode or for diagnostics, and runs until the
// framework kills it. The return value is the process exit code.
package pluginsdk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/snapplugin/internal/config"
	"github.com/holomush/snapplugin/internal/lifecycle"
	"github.com/holomush/snapplugin/internal/logging"
	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// Option customizes how a plugin starts.
type Option func(*options)

type options struct {
	meta     []plugin.MetaOption
	flags    []func(*pflag.FlagSet)
	flagKeys map[string]string
	args     []string
	argsSet  bool
	stdout   io.Writer
	stderr   io.Writer
	ctx      context.Context
}

// WithMeta applies optional meta settings such as routing or cache TTL.
func WithMeta(opts ...plugin.MetaOption) Option {
	return func(o *options) { o.meta = append(o.meta, opts...) }
}

// WithFlags registers plugin-specific flags. Variables bound to them are set
// before the plugin starts. Diagnostic mode also places their values in the
// config map under the flag name, or under the key given to WithFlagKey.
func WithFlags(fn func(fs *pflag.FlagSet)) Option {
	return func(o *options) { o.flags = append(o.flags, fn) }
}

// WithFlagKey stores the value of flag under key in the config map.
func WithFlagKey(flag, key string) Option {
	return func(o *options) { o.flagKeys[flag] = key }
}

// WithArgs replaces os.Args[1:].
func WithArgs(args []string) Option {
	return func(o *options) {
		o.args = args
		o.argsSet = true
	}
}

// WithOutput redirects the preamble stream and the log stream.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		if stdout != nil {
			o.stdout = stdout
		}
		if stderr != nil {
			o.stderr = stderr
		}
	}
}

// WithContext sets the parent context. Cancelling it stops the plugin.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// StartCollector runs a collector plugin and returns the exit code.
func StartCollector(c plugin.Collector, name string, version int, opts ...Option) int {
	return start(plugin.KindCollector, c, name, version, opts)
}

// StartProcessor runs a processor plugin and returns the exit code.
func StartProcessor(p plugin.Processor, name string, version int, opts ...Option) int {
	return start(plugin.KindProcessor, p, name, version, opts)
}

// StartPublisher runs a publisher plugin and returns the exit code.
func StartPublisher(p plugin.Publisher, name string, version int, opts ...Option) int {
	return start(plugin.KindPublisher, p, name, version, opts)
}

// StartStreamCollector runs a streaming collector plugin and returns the exit code.
func StartStreamCollector(c plugin.StreamCollector, name string, version int, opts ...Option) int {
	return start(plugin.KindStreamCollector, c, name, version, opts)
}

func start(kind plugin.Kind, impl plugin.Plugin, name string, version int, opts []Option) int {
	o := &options{
		flagKeys: map[string]string{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}

	meta := plugin.NewMeta(kind, name, version, o.meta...)
	cmd := newCommand(meta, impl, o)
	if o.argsSet {
		cmd.SetArgs(o.args)
	} else {
		cmd.SetArgs(os.Args[1:])
	}
	if err := cmd.ExecuteContext(o.ctx); err != nil {
		return 1
	}
	return 0
}

func newCommand(meta plugin.Meta, impl plugin.Plugin, o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           meta.Name + " [config]",
		Short:         fmt.Sprintf("%s %s plugin", meta.Name, meta.Kind),
		Version:       fmt.Sprintf("v%d", meta.Version),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), meta, impl, cmd.Flags(), args, o)
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	cmd.SetOut(o.stdout)
	cmd.SetErr(o.stderr)

	config.Register(cmd.Flags())
	for _, fn := range o.flags {
		fn(cmd.Flags())
	}
	return cmd
}

func run(ctx context.Context, meta plugin.Meta, impl plugin.Plugin, fs *pflag.FlagSet, args []string, o *options) error {
	level := new(slog.LevelVar)
	level.Set(logging.DefaultLevel)
	id := logging.Identity{Plugin: meta.Name, Version: meta.Version, Kind: meta.Kind.String()}
	logger := logging.Setup(id, config.DefaultLogFormat, o.stderr, level)

	loader := config.NewLoader(logger)
	loader.MapFlag("help", "")
	loader.MapFlag("version", "")
	for flag, key := range o.flagKeys {
		loader.MapFlag(flag, key)
	}

	cfg, err := loader.Load(ctx, fs, args)
	if err != nil {
		errutil.LogErrorContext(ctx, logger, "unable to load plugin configuration", err)
		return err
	}
	if cfg.LogFormat != config.DefaultLogFormat {
		logger = logging.Setup(id, cfg.LogFormat, o.stderr, level)
	}
	logging.ApplyFrameworkLevel(ctx, logger, level, cfg.LogLevel)
	// Plugin code logs through the slog default.
	slog.SetDefault(logger)
	logger.DebugContext(ctx, "configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lc, err := lifecycle.New(meta, impl, cfg, lifecycle.Options{
		Stdout: o.stdout,
		Logger: logger,
	})
	if err != nil {
		errutil.LogErrorContext(ctx, logger, "unable to start plugin", err)
		return err
	}
	if err := lc.Start(ctx); err != nil {
		errutil.LogErrorContext(ctx, logger, "plugin exited with error", err, "mode", cfg.Mode.String())
		return err
	}
	return nil
}
