// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"time"

	"github.com/samber/oops"
)

// Metric data type names returned by Metric.DataType.
const (
	DataTypeInt32   = "int32"
	DataTypeInt64   = "int64"
	DataTypeUint32  = "uint32"
	DataTypeUint64  = "uint64"
	DataTypeFloat32 = "float32"
	DataTypeFloat64 = "float64"
	DataTypeString  = "string"
	DataTypeBool    = "bool"
	DataTypeBytes   = "bytes"
)

// Metric is a single measurement, or a catalog entry when Data is nil.
type Metric struct {
	Namespace Namespace
	// Version is the plugin version that produced the metric. The runtime
	// fills it from Meta when left at zero.
	Version            int64
	Tags               map[string]string
	Config             ConfigMap
	Timestamp          time.Time
	LastAdvertisedTime time.Time
	Unit               string
	Description        string
	Data               any
}

// NewMetric builds a metric with the given namespace and data.
func NewMetric(ns Namespace, data any) (Metric, error) {
	m := Metric{Namespace: ns, Timestamp: time.Now()}
	if data != nil {
		if err := m.SetData(data); err != nil {
			return Metric{}, err
		}
	}
	return m, nil
}

// SetData stores v after normalizing platform-width integers.
func (m *Metric) SetData(v any) error {
	switch d := v.(type) {
	case int:
		m.Data = int64(d)
	case uint:
		m.Data = uint64(d)
	case int32, int64, uint32, uint64, float32, float64, string, bool, []byte:
		m.Data = d
	default:
		return oops.Code("UNSUPPORTED_DATA_TYPE").
			With("namespace", m.Namespace.String()).
			Errorf("unsupported data type %T (supported: bool, int, float, string, bytes)", v)
	}
	return nil
}

// DataType returns the name of the stored data type, or "" when unset.
func (m Metric) DataType() string {
	switch m.Data.(type) {
	case nil:
		return ""
	case int32:
		return DataTypeInt32
	case int64:
		return DataTypeInt64
	case uint32:
		return DataTypeUint32
	case uint64:
		return DataTypeUint64
	case float32:
		return DataTypeFloat32
	case float64:
		return DataTypeFloat64
	case string:
		return DataTypeString
	case bool:
		return DataTypeBool
	case []byte:
		return DataTypeBytes
	default:
		return "unsupported"
	}
}
