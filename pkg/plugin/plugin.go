// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import "context"

// Plugin is the capability shared by every plugin kind.
type Plugin interface {
	// GetConfigPolicy describes the configuration the plugin accepts.
	GetConfigPolicy(ctx context.Context) (ConfigPolicy, error)
}

// Collector gathers metrics on request.
type Collector interface {
	Plugin
	// CollectMetrics returns values for the requested metrics.
	CollectMetrics(ctx context.Context, mts []Metric) ([]Metric, error)
	// GetMetricTypes returns the catalog of metrics the collector exposes.
	GetMetricTypes(ctx context.Context, cfg ConfigMap) ([]Metric, error)
}

// Processor transforms metrics in flight.
type Processor interface {
	Plugin
	Process(ctx context.Context, mts []Metric, cfg ConfigMap) ([]Metric, error)
}

// Publisher delivers metrics to an external sink.
type Publisher interface {
	Plugin
	Publish(ctx context.Context, mts []Metric, cfg ConfigMap) error
}

// StreamCollector produces metrics continuously.
//
// StreamMetrics is pull-style: the runtime calls it repeatedly for the
// lifetime of a stream call and relays whatever it returns. It may block to
// pace emission but must return promptly once ctx is done.
type StreamCollector interface {
	Plugin
	StreamMetrics(ctx context.Context, mts []Metric) ([]Metric, error)
	GetMetricTypes(ctx context.Context, cfg ConfigMap) ([]Metric, error)
}
