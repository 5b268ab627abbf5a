package config

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"synthstream/internal/remote"
)

// ParseSink decodes a YAML sink document.
func ParseSink(data []byte) (Sink, error) {
	var s Sink
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sink{}, fmt.Errorf("sink config: %w", err)
	}
	if s.Spec == nil {
		return Sink{}, fmt.Errorf("sink config: empty document")
	}
	return s, nil
}

// LoadSink reads a sink document from a local path, s3:// or gs:// URL.
func LoadSink(ctx context.Context, path string) (Sink, error) {
	text, err := remote.ReadText(ctx, path)
	if err != nil {
		return Sink{}, fmt.Errorf("sink config: read %s: %w", path, err)
	}
	return ParseSink([]byte(text))
}
