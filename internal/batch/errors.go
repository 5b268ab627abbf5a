package batch

import (
	"fmt"
	"strconv"
	"strings"

	"synthstream/internal/schema"
)

// InvalidCountError reports a record count that is not a positive integer.
type InvalidCountError struct {
	Value string
}

func (e *InvalidCountError) Error() string {
	return fmt.Sprintf("invalid count value: %s; count must be a positive integer", e.Value)
}

// InvalidFieldConfigurationError reports a field that could not be resolved
// in strict mode.
type InvalidFieldConfigurationError struct {
	Field schema.Field
	Err   error
}

func (e *InvalidFieldConfigurationError) Error() string {
	return fmt.Sprintf("invalid field configuration for %q (generator %s): %v", e.Field.Name, e.Field.Generator, e.Err)
}

func (e *InvalidFieldConfigurationError) Unwrap() error { return e.Err }

// ParseCount parses a record count from text.
func ParseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, &InvalidCountError{Value: s}
	}
	return n, nil
}
