// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Meta defaults.
const (
	DefaultConcurrencyCount = 5
	DefaultRPCVersion       = 1
)

// DefaultCipherSuites lists the cipher suites advertised when TLS is enabled.
var DefaultCipherSuites = []string{
	"ECDHE-RSA-AES128-GCM-SHA256",
	"ECDHE-RSA-AES256-GCM-SHA384",
}

// Meta describes a plugin to the orchestrator. It is built once at startup
// and only its TLS fields are filled in later, during bootstrap.
type Meta struct {
	Name             string          `validate:"required"`
	Version          int             `validate:"gte=1"`
	Kind             Kind            `validate:"gte=0,lte=3"`
	RPCType          RPCType         `validate:"gte=0,lte=3"`
	RPCVersion       int             `validate:"gte=1"`
	ConcurrencyCount int             `validate:"gte=1"`
	RoutingStrategy  RoutingStrategy `validate:"gte=0,lte=2"`
	Exclusive        bool
	// CacheTTL overrides the orchestrator's cache TTL; zero means unset.
	CacheTTL time.Duration

	TLSEnabled    bool
	RootCertPaths []string
	CertPath      string
	KeyPath       string
	CipherSuites  []string
}

// MetaOption configures optional Meta fields.
type MetaOption func(*Meta)

// NewMeta builds a Meta with defaults for the given kind.
func NewMeta(kind Kind, name string, version int, opts ...MetaOption) Meta {
	m := Meta{
		Name:             name,
		Version:          version,
		Kind:             kind,
		RPCType:          RPCGRPC,
		RPCVersion:       DefaultRPCVersion,
		ConcurrencyCount: DefaultConcurrencyCount,
		RoutingStrategy:  RoutingLRU,
		CipherSuites:     append([]string(nil), DefaultCipherSuites...),
	}
	if kind == KindStreamCollector {
		m.RPCType = RPCGRPCStream
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ConcurrencyCount sets the max number of concurrent calls routed to one instance.
func ConcurrencyCount(n int) MetaOption {
	return func(m *Meta) { m.ConcurrencyCount = n }
}

// Routing sets the routing strategy.
func Routing(r RoutingStrategy) MetaOption {
	return func(m *Meta) { m.RoutingStrategy = r }
}

// Exclusive requests a single running instance regardless of task count.
func Exclusive(v bool) MetaOption {
	return func(m *Meta) { m.Exclusive = v }
}

// CacheTTL overrides the orchestrator's metric cache TTL.
func CacheTTL(d time.Duration) MetaOption {
	return func(m *Meta) { m.CacheTTL = d }
}

// RPCVersion sets the advertised RPC version.
func RPCVersion(v int) MetaOption {
	return func(m *Meta) { m.RPCVersion = v }
}

// RootCertPaths sets the colon-delimited root certificate paths.
func RootCertPaths(paths string) MetaOption {
	return func(m *Meta) { m.RootCertPaths = SplitPaths(paths) }
}

// CertPath sets the server certificate path.
func CertPath(path string) MetaOption {
	return func(m *Meta) { m.CertPath = path }
}

// KeyPath sets the private key path.
func KeyPath(path string) MetaOption {
	return func(m *Meta) { m.KeyPath = path }
}

// CipherSuites replaces the advertised cipher suites.
func CipherSuites(names ...string) MetaOption {
	return func(m *Meta) { m.CipherSuites = names }
}

// SplitPaths splits a colon-delimited path list, dropping empty entries.
func SplitPaths(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks the meta record before it is advertised.
func (m Meta) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(m); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		return oops.Code("INVALID_META").
			With("plugin", m.Name).
			With("fields", fields).
			Wrapf(err, "invalid plugin meta")
	}
	return nil
}
