// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package rpc defines the wire messages, codecs and gRPC service descriptors
// spoken between the orchestrator and a plugin process.
package rpc

// Time is a wall-clock instant split into seconds and nanoseconds.
type Time struct {
	Sec  int64 `json:"sec"`
	Nsec int64 `json:"nsec"`
}

// NamespaceElement is one segment of a metric namespace.
type NamespaceElement struct {
	Value       string `json:"Value"`
	Description string `json:"Description,omitempty"`
	Name        string `json:"Name,omitempty"`
}

// ConfigMap carries typed configuration values.
type ConfigMap struct {
	IntMap    map[string]int64   `json:"intmap,omitempty"`
	StringMap map[string]string  `json:"stringmap,omitempty"`
	FloatMap  map[string]float64 `json:"floatmap,omitempty"`
	BoolMap   map[string]bool    `json:"boolmap,omitempty"`
}

// Metric is the wire form of a metric. At most one of the *Data fields is set.
type Metric struct {
	Namespace          []NamespaceElement `json:"Namespace"`
	Version            int64              `json:"Version"`
	Config             *ConfigMap         `json:"Config,omitempty"`
	LastAdvertisedTime *Time              `json:"LastAdvertisedTime,omitempty"`
	Tags               map[string]string  `json:"Tags,omitempty"`
	Timestamp          *Time              `json:"Timestamp,omitempty"`
	Unit               string             `json:"Unit,omitempty"`
	Description        string             `json:"Description,omitempty"`

	Float32Data *float32 `json:"float32_data,omitempty"`
	Float64Data *float64 `json:"float64_data,omitempty"`
	Int32Data   *int32   `json:"int32_data,omitempty"`
	Int64Data   *int64   `json:"int64_data,omitempty"`
	Uint32Data  *uint32  `json:"uint32_data,omitempty"`
	Uint64Data  *uint64  `json:"uint64_data,omitempty"`
	BytesData   []byte   `json:"bytes_data,omitempty"`
	BoolData    *bool    `json:"bool_data,omitempty"`
	StringData  *string  `json:"string_data,omitempty"`
}

// ErrReply is the reply of calls with no payload.
type ErrReply struct {
	Error string `json:"error,omitempty"`
}

// MetricsArg requests values for a list of metrics.
type MetricsArg struct {
	Metrics []Metric `json:"metrics"`
}

// MetricsReply carries metrics or an error string.
type MetricsReply struct {
	Metrics []Metric `json:"metrics"`
	Error   string   `json:"error,omitempty"`
}

// GetMetricTypesArg requests the metric catalog.
type GetMetricTypesArg struct {
	Config ConfigMap `json:"config"`
}

// PubProcArg is the argument of Process and Publish.
type PubProcArg struct {
	Metrics []Metric  `json:"metrics"`
	Config  ConfigMap `json:"config"`
}

// StreamMetricsArg opens a stream call. MaxCollectDuration is in nanoseconds;
// zero or negative thresholds defer to the request config and then defaults.
type StreamMetricsArg struct {
	Metrics            []Metric  `json:"metrics"`
	Config             ConfigMap `json:"config"`
	MaxMetricsBuffer   int64     `json:"max_metrics_buffer,omitempty"`
	MaxCollectDuration int64     `json:"max_collect_duration,omitempty"`
}

// BoolRule is the wire form of a boolean config rule.
type BoolRule struct {
	Required bool  `json:"required"`
	Default  *bool `json:"default,omitempty"`
}

// StringRule is the wire form of a string config rule.
type StringRule struct {
	Required bool    `json:"required"`
	Default  *string `json:"default,omitempty"`
}

// IntegerRule is the wire form of an integer config rule.
type IntegerRule struct {
	Required bool   `json:"required"`
	Default  *int64 `json:"default,omitempty"`
	Minimum  *int64 `json:"minimum,omitempty"`
	Maximum  *int64 `json:"maximum,omitempty"`
}

// FloatRule is the wire form of a float config rule.
type FloatRule struct {
	Required bool     `json:"required"`
	Default  *float64 `json:"default,omitempty"`
	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
}

// BoolPolicy groups boolean rules by config key.
type BoolPolicy struct {
	Rules map[string]BoolRule `json:"rules"`
}

// StringPolicy groups string rules by config key.
type StringPolicy struct {
	Rules map[string]StringRule `json:"rules"`
}

// IntegerPolicy groups integer rules by config key.
type IntegerPolicy struct {
	Rules map[string]IntegerRule `json:"rules"`
}

// FloatPolicy groups float rules by config key.
type FloatPolicy struct {
	Rules map[string]FloatRule `json:"rules"`
}

// GetConfigPolicyReply describes the plugin's config policy, keyed by the
// dotted namespace prefix each policy applies to.
type GetConfigPolicyReply struct {
	Error         string                   `json:"error,omitempty"`
	BoolPolicy    map[string]BoolPolicy    `json:"bool_policy,omitempty"`
	FloatPolicy   map[string]FloatPolicy   `json:"float_policy,omitempty"`
	IntegerPolicy map[string]IntegerPolicy `json:"integer_policy,omitempty"`
	StringPolicy  map[string]StringPolicy  `json:"string_policy,omitempty"`
}
