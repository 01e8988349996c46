// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"sort"

	"github.com/samber/oops"
)

// ConfigMap holds typed configuration values: int64, float64, string or bool.
type ConfigMap map[string]any

// NewConfigMap builds a ConfigMap from arbitrary values, normalizing integer
// and float widths. Unsupported value types are rejected.
func NewConfigMap(values map[string]any) (ConfigMap, error) {
	c := make(ConfigMap, len(values))
	for k, v := range values {
		if err := c.Set(k, v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Set stores a value under key.
func (c ConfigMap) Set(key string, value any) error {
	switch v := value.(type) {
	case int:
		c[key] = int64(v)
	case int32:
		c[key] = int64(v)
	case int64:
		c[key] = v
	case uint32:
		c[key] = int64(v)
	case float32:
		c[key] = float64(v)
	case float64:
		c[key] = v
	case string:
		c[key] = v
	case bool:
		c[key] = v
	default:
		return oops.Code("UNSUPPORTED_CONFIG_TYPE").
			With("key", key).
			Errorf("unsupported config value type %T for key %q", value, key)
	}
	return nil
}

// Get returns the raw value under key.
func (c ConfigMap) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// GetString returns the string value under key.
func (c ConfigMap) GetString(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

// GetInt returns the integer value under key.
func (c ConfigMap) GetInt(key string) (int64, bool) {
	v, ok := c[key].(int64)
	return v, ok
}

// GetFloat returns the float value under key.
func (c ConfigMap) GetFloat(key string) (float64, bool) {
	v, ok := c[key].(float64)
	return v, ok
}

// GetBool returns the bool value under key.
func (c ConfigMap) GetBool(key string) (bool, bool) {
	v, ok := c[key].(bool)
	return v, ok
}

// Keys returns the keys in sorted order.
func (c ConfigMap) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new map holding c overlaid with other.
func (c ConfigMap) Merge(other ConfigMap) ConfigMap {
	out := make(ConfigMap, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
