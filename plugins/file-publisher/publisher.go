// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/holomush/snapplugin/internal/xdg"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// record is the on-disk form of one metric.
type record struct {
	Namespace string            `json:"namespace" yaml:"namespace"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Type      string            `json:"type" yaml:"type"`
	Value     any               `json:"value" yaml:"value"`
	Unit      string            `json:"unit,omitempty" yaml:"unit,omitempty"`
	Tags      map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Version   int64             `json:"version" yaml:"version"`
}

// publisher appends metrics to the file named by the "file" config key,
// one JSON object per line or one YAML document per metric.
type publisher struct {
	mu sync.Mutex

	file   string
	format string
	// defaultFile lives under the XDG state directory, created on demand.
	defaultFile string
}

func newPublisher() *publisher {
	def := filepath.Join(xdg.StateDir(), "file-publisher", "metrics.log")
	return &publisher{
		file:        def,
		format:      formatJSON,
		defaultFile: def,
	}
}

func (p *publisher) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.file, "file", p.file, "file metrics are appended to")
	fs.StringVar(&p.format, "format", p.format, "output format (json or yaml)")
}

func (p *publisher) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	policy := plugin.NewConfigPolicy()
	policy.AddStringRule(nil, "file", plugin.StringRule{Default: plugin.Ptr(p.file)})
	policy.AddStringRule(nil, "format", plugin.StringRule{Default: plugin.Ptr(p.format)})
	return policy, nil
}

func (p *publisher) Publish(ctx context.Context, mts []plugin.Metric, cfg plugin.ConfigMap) error {
	path, ok := cfg.GetString("file")
	if !ok || path == "" {
		path = p.file
	}
	format, ok := cfg.GetString("format")
	if !ok || format == "" {
		format = p.format
	}
	if format != formatJSON && format != formatYAML {
		return oops.Code("INVALID_CONFIG").With("format", format).Errorf("format must be json or yaml, got %q", format)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if path == p.defaultFile {
		if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
			return oops.Code("PUBLISH_FAILED").With("file", path).Wrap(err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is operator config
	if err != nil {
		return oops.Code("PUBLISH_FAILED").With("file", path).Wrap(err)
	}
	if err := write(f, format, mts); err != nil {
		_ = f.Close()
		return oops.Code("PUBLISH_FAILED").With("file", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("PUBLISH_FAILED").With("file", path).Wrap(err)
	}
	slog.DebugContext(ctx, "published metrics", "file", path, "count", len(mts))
	return nil
}

func write(w io.Writer, format string, mts []plugin.Metric) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		for _, m := range mts {
			if err := enc.Encode(toRecord(m)); err != nil {
				return err
			}
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		for _, m := range mts {
			if err := enc.Encode(toRecord(m)); err != nil {
				return err
			}
		}
		return nil
	}
}

func toRecord(m plugin.Metric) record {
	value := m.Data
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	return record{
		Namespace: m.Namespace.String(),
		Timestamp: m.Timestamp.UTC(),
		Type:      m.DataType(),
		Value:     value,
		Unit:      m.Unit,
		Tags:      m.Tags,
		Version:   m.Version,
	}
}
