package storage

import (
	"context"
	"fmt"
	"time"

	"synthstream/internal/logging"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// CopyInChunks splits rows into chunks of at most chunkSize and calls copyFn
// for each. It returns the total reported by copyFn and the first error,
// after which no further chunk is sent.
//
// Drivers with a bind-parameter limit (SQLite, MySQL, SQL Server) use this to
// keep each multi-row INSERT under it.
func CopyInChunks(
	ctx context.Context,
	columns []string,
	rows [][]any,
	chunkSize int,
	copyFn CopyFn,
) (int64, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("chunkSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	log := logging.For("loader")
	var (
		total  int64
		chunks int
		start  = time.Now()
	)
	for lo := 0; lo < len(rows); lo += chunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+chunkSize, len(rows))
		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Error("copy failed", "chunk", chunks+1, "inserted", n, "total", total, "err", err)
			return total, err
		}
		chunks++
		log.Debug("chunk copied",
			"chunk", chunks,
			"inserted", n,
			"total", total,
			"elapsed", time.Since(start).Truncate(time.Millisecond),
		)
	}
	return total, nil
}

// ChunkSizeFor returns how many rows fit in one statement when each row binds
// columns parameters and the driver accepts at most maxParams.
func ChunkSizeFor(columns, maxParams int) int {
	if columns <= 0 {
		return 1
	}
	return max(1, maxParams/columns)
}
