package duckdb

import "errors"

// ErrUnavailable is returned when DuckDB support is not compiled in.
var ErrUnavailable = errors.New("duckdb: engine unavailable (built without cgo)")
