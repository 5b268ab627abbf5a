// Package config defines the sink configuration model for synthstream and the
// small helpers shared by every sink adapter.
//
// A sink file is a flat YAML mapping discriminated by "kind":
//
//	kind: delta_lake
//	path: ./data/people
//	partition_by: [country]
//	optimize: 10
//	vacuum: 50
//
// The decoded value is a SinkSpec, a closed sum type over the five supported
// sink variants. Unknown kinds are rejected at decode time with an
// UnsupportedSinkTypeError, so adapters only ever see well-typed specs.
//
// Opaque passthrough blocks (Kafka producer settings, Iceberg catalog
// properties) are kept as Options/map values and interpreted by the adapter
// that owns them.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Options is a small helper to fetch typed values from arbitrary YAML maps
// without a schema. It performs only minimal type coercion and returns the
// provided default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def. Scalars are formatted.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case int, int64, float64, bool:
		return fmt.Sprint(s)
	}
	return def
}

// Bool returns the bool value for key or def. "true"/"false" strings are
// accepted.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				return p
			}
		}
	}
	return def
}

// Int returns the int value for key or def. YAML decodes integers as int, but
// values that went through JSON arrive as float64; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if p, err := strconv.Atoi(n); err == nil {
				return p
			}
		}
	}
	return def
}

// Duration returns a duration for key. Strings are parsed with
// time.ParseDuration; bare numbers are interpreted in unit.
func (o Options) Duration(key string, unit, def time.Duration) time.Duration {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch d := v.(type) {
	case string:
		if p, err := time.ParseDuration(d); err == nil {
			return p
		}
		if n, err := strconv.Atoi(d); err == nil {
			return time.Duration(n) * unit
		}
	case int:
		return time.Duration(d) * unit
	case float64:
		return time.Duration(d * float64(unit))
	}
	return def
}

// StringSlice returns a []string for key. A list of strings and a single
// comma-separated string are both accepted; nil when absent.
func (o Options) StringSlice(key string) []string {
	v, ok := o[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	case string:
		var out []string
		for _, p := range strings.Split(vv, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// UnmarshalYAML makes a missing or null mapping decode to an empty, non-nil
// Options value.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	var tmp map[string]any
	if err := n.Decode(&tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
