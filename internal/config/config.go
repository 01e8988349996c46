// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config parses plugin command-line flags and the framework-supplied
// configuration document into a typed Config.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/snapplugin/pkg/plugin"
)

// Mode is the operating mode chosen once at startup.
type Mode int

// Operating modes.
const (
	ModeServed Mode = iota
	ModeStandalone
	ModeDiagnostic
)

func (m Mode) String() string {
	switch m {
	case ModeServed:
		return "served"
	case ModeStandalone:
		return "standalone"
	case ModeDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Flag names.
const (
	FlagConfig         = "config"
	FlagConfigFile     = "config-file"
	FlagPort           = "port"
	FlagStandAlone     = "stand-alone"
	FlagStandAlonePort = "stand-alone-port"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagTLS            = "tls"
	FlagRootCertPaths  = "root-cert-paths"
	FlagKeyPath        = "key-path"
	FlagCertPath       = "cert-path"
)

// Config keys, as the framework names them.
const (
	KeyLogLevel       = "LogLevel"
	KeyLogFormat      = "LogFormat"
	KeyTLSEnabled     = "TLSEnabled"
	KeyRootCertPaths  = "RootCertPaths"
	KeyKeyPath        = "KeyPath"
	KeyCertPath       = "CertPath"
	KeyPort           = "Port"
	KeyStandAlone     = "StandAlone"
	KeyStandAlonePort = "StandAlonePort"
	KeyPingTimeout    = "PingTimeoutDuration"
)

// Defaults.
const (
	DefaultStandAlonePort = 8182
	DefaultPingTimeout    = 5 * time.Second
	DefaultLogLevel       = 3
	DefaultLogFormat      = "json"
)

// TLS holds the secure channel settings.
type TLS struct {
	Enabled       bool
	RootCertPaths []string
	CertPath      string
	KeyPath       string
}

// Config is the resolved plugin configuration.
type Config struct {
	Mode           Mode
	LogLevel       int
	LogFormat      string
	Port           int
	StandAlonePort int
	TLS            TLS
	PingTimeout    time.Duration

	// Values holds every loaded key, including author flags.
	Values *koanf.Koanf
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("INVALID_CONFIG").With("log_format", c.LogFormat).
			Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Port < 0 || c.Port > math.MaxUint16 {
		return oops.Code("INVALID_CONFIG").With("port", c.Port).Errorf("port %d out of range", c.Port)
	}
	if c.StandAlonePort < 0 || c.StandAlonePort > math.MaxUint16 {
		return oops.Code("INVALID_CONFIG").With("port", c.StandAlonePort).
			Errorf("stand-alone-port %d out of range", c.StandAlonePort)
	}
	return nil
}

// ConfigMap returns the scalar values as a typed config map. Whole-number
// floats, as produced by JSON decoding, become integers.
func (c *Config) ConfigMap() plugin.ConfigMap {
	out := plugin.ConfigMap{}
	if c.Values == nil {
		return out
	}
	for key, v := range c.Values.All() {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			v = int64(f)
		}
		_ = out.Set(key, v)
	}
	return out
}

// Register installs the recognised flags on fs.
func Register(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "JSON framework config")
	fs.String(FlagConfigFile, "", "YAML or JSON config file")
	fs.Int(FlagPort, 0, "gRPC server port (0 picks a free port)")
	fs.Bool(FlagStandAlone, false, "enable stand alone mode")
	fs.Int(FlagStandAlonePort, DefaultStandAlonePort, "http port for stand alone mode")
	fs.Int(FlagLogLevel, DefaultLogLevel, "logging level 1:debug - 5:fatal")
	fs.String(FlagLogFormat, DefaultLogFormat, "log format (json or text)")
	fs.Bool(FlagTLS, false, "enable tls")
	fs.String(FlagRootCertPaths, "", "paths to root certificates; delimited by ':'")
	fs.String(FlagKeyPath, "", "path to server private key")
	fs.String(FlagCertPath, "", "path to server certificate")
}

// Loader resolves flags and documents into a Config.
type Loader struct {
	keys   map[string]string
	logger *slog.Logger
}

// NewLoader returns a loader with the built-in flag to key mapping.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger: logger,
		keys: map[string]string{
			FlagLogLevel:       KeyLogLevel,
			FlagLogFormat:      KeyLogFormat,
			FlagTLS:            KeyTLSEnabled,
			FlagRootCertPaths:  KeyRootCertPaths,
			FlagKeyPath:        KeyKeyPath,
			FlagCertPath:       KeyCertPath,
			FlagPort:           KeyPort,
			FlagStandAlone:     KeyStandAlone,
			FlagStandAlonePort: KeyStandAlonePort,
			FlagConfig:         "",
			FlagConfigFile:     "",
		},
	}
}

// MapFlag stores the value of flag under key. Unmapped flags use their own name.
func (l *Loader) MapFlag(flag, key string) {
	l.keys[flag] = key
}

// Load resolves the configuration from a parsed flag set and its positional
// arguments. Precedence, lowest first: framework document, config file,
// explicitly set flags. Flag defaults fill keys nothing else supplied.
func (l *Loader) Load(ctx context.Context, fs *pflag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{Mode: ModeDiagnostic}

	framework := ""
	if len(args) > 0 {
		framework = args[0]
	} else if v, err := fs.GetString(FlagConfig); err == nil {
		framework = v
	}
	standAlone, _ := fs.GetBool(FlagStandAlone)
	switch {
	case framework != "":
		cfg.Mode = ModeServed
	case standAlone:
		cfg.Mode = ModeStandalone
	}

	k := koanf.New(".")
	if framework != "" {
		if err := k.Load(rawbytes.Provider([]byte(framework)), koanfjson.Parser()); err != nil {
			l.logger.ErrorContext(ctx, "invalid config provided: expected JSON", "provided", framework)
			return nil, oops.Code("INVALID_CONFIG").Wrapf(err, "invalid config provided: expected JSON")
		}
	}

	if path, _ := fs.GetString(FlagConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("INVALID_CONFIG").With("path", path).Wrapf(err, "load config file")
		}
	}

	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, l.flagValue(fs)), nil); err != nil {
		return nil, oops.Code("INVALID_CONFIG").Wrapf(err, "load flags")
	}

	cfg.Values = k
	cfg.LogLevel = k.Int(KeyLogLevel)
	cfg.LogFormat = strings.ToLower(k.String(KeyLogFormat))
	cfg.Port = k.Int(KeyPort)
	cfg.StandAlonePort = k.Int(KeyStandAlonePort)
	cfg.TLS = TLS{
		Enabled:       k.Bool(KeyTLSEnabled),
		RootCertPaths: certPaths(k),
		CertPath:      k.String(KeyCertPath),
		KeyPath:       k.String(KeyKeyPath),
	}
	cfg.PingTimeout = DefaultPingTimeout
	if ms := k.Float64(KeyPingTimeout); ms > 0 {
		cfg.PingTimeout = time.Duration(ms * float64(time.Millisecond))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) flagValue(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, mapped := l.keys[f.Name]
		if !mapped {
			key = f.Name
		}
		if key == "" {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// certPaths accepts either a colon-delimited string or a list.
func certPaths(k *koanf.Koanf) []string {
	switch v := k.Get(KeyRootCertPaths).(type) {
	case nil:
		return nil
	case string:
		return plugin.SplitPaths(v)
	default:
		var out []string
		for _, p := range k.Strings(KeyRootCertPaths) {
			out = append(out, plugin.SplitPaths(p)...)
		}
		return out
	}
}

// String renders the mode and the non-secret settings for debug logs.
func (c *Config) String() string {
	return fmt.Sprintf("mode=%s port=%d standalone_port=%d tls=%t log_level=%d ping_timeout=%s",
		c.Mode, c.Port, c.StandAlonePort, c.TLS.Enabled, c.LogLevel, c.PingTimeout)
}
