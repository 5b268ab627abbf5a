//go:build !cgo

package duckdb

import (
	"context"

	"synthstream/internal/storage"
)

// NewRepository always fails: this binary was built without cgo.
func NewRepository(context.Context, string) (storage.Repository, error) {
	return nil, ErrUnavailable
}
