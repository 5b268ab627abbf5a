// Package all wires every built-in sink adapter into the storage registry.
//
// It exists for side effects only: importing it runs each adapter's init,
// which registers an Appender for its sink kind.
//
//	import _ "synthstream/internal/storage/all"
package all

import (
	_ "synthstream/internal/storage/deltalake"
	_ "synthstream/internal/storage/embedded"
	_ "synthstream/internal/storage/iceberg"
	_ "synthstream/internal/storage/kafka"
	_ "synthstream/internal/storage/relational"
)
