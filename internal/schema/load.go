package schema

import (
	"bytes"
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"synthstream/internal/remote"
)

// Parse decodes a YAML table schema and normalizes it.
func Parse(data []byte) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("schema: decode: %w", err)
	}
	if err := t.Normalize(); err != nil {
		return Table{}, fmt.Errorf("schema %q: %w", t.Name, err)
	}
	return t, nil
}

// Load reads a table schema from a local path, s3:// or gs:// URL.
func Load(ctx context.Context, path string) (Table, error) {
	text, err := remote.ReadText(ctx, path)
	if err != nil {
		return Table{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return Parse([]byte(text))
}
