package deltalake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"synthstream/internal/batch"
)

const (
	engineInfo     = "synthstream"
	commitAttempts = 5
	readParallel   = 4
)

// SchemaMismatchError reports an append whose columns differ from the
// table's schema.
type SchemaMismatchError struct {
	Path  string
	Table []Column
	Batch []Column
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("deltalake: schema mismatch for %s: table has %s, batch has %s",
		e.Path, describe(e.Table), describe(e.Batch))
}

func describe(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + " " + deltaType(c.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Table is a Delta table rooted at a local directory.
type Table struct {
	Path string

	mem memory.Allocator
	now func() time.Time
}

// Open returns a handle on the table at path. The directory need not exist.
func Open(path string) *Table {
	return &Table{Path: path, mem: memory.DefaultAllocator, now: time.Now}
}

// Version returns the latest committed version, or -1 for a missing table.
func (t *Table) Version() (int64, error) {
	s, err := loadSnapshot(t.Path)
	if err != nil || s == nil {
		return -1, err
	}
	return s.Version, nil
}

// Columns returns the table schema.
func (t *Table) Columns() ([]Column, error) {
	s, err := loadSnapshot(t.Path)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fs.ErrNotExist
	}
	return s.Columns, nil
}

// ActiveFiles returns the relative paths of the files in the current version.
func (t *Table) ActiveFiles() ([]string, error) {
	s, err := loadSnapshot(t.Path)
	if err != nil || s == nil {
		return nil, err
	}
	return s.sortedActive(), nil
}

// Append writes b as new data files and commits them. The table is created
// on first append with partitionBy as its partition columns; later appends
// must match its schema and use its partition columns.
func (t *Table) Append(ctx context.Context, b *batch.Batch, partitionBy []string) (int64, error) {
	if err := os.MkdirAll(t.Path, 0o755); err != nil {
		return -1, fmt.Errorf("deltalake: create %s: %w", t.Path, err)
	}
	cols := columnsOf(b)
	for _, p := range partitionBy {
		if _, ok := b.Column(p); !ok {
			return -1, fmt.Errorf("deltalake: partition column %q is not in the batch", p)
		}
	}

	snap, err := loadSnapshot(t.Path)
	if err != nil {
		return -1, err
	}
	if snap != nil {
		if !sameColumns(snap.Columns, cols) {
			return -1, &SchemaMismatchError{Path: t.Path, Table: snap.Columns, Batch: cols}
		}
		partitionBy = snap.Meta.PartitionColumns
	}

	adds, err := t.writeFiles(b, partitionBy)
	if err != nil {
		return -1, err
	}

	for attempt := 0; attempt < commitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		var actions []action
		version := int64(0)
		if snap == nil {
			meta, err := t.newMeta(cols, partitionBy)
			if err != nil {
				return -1, err
			}
			actions = append(actions,
				action{Protocol: &protocol{MinReaderVersion: 1, MinWriterVersion: 2}},
				action{MetaData: meta},
			)
		} else {
			version = snap.Version + 1
		}
		for _, a := range adds {
			actions = append(actions, action{Add: a})
		}
		mode := "Append"
		if snap == nil {
			mode = "ErrorIfExists"
		}
		actions = append(actions, action{CommitInfo: &commitInfo{
			Timestamp:           t.now().UnixMilli(),
			Operation:           "WRITE",
			OperationParameters: map[string]string{"mode": mode},
			EngineInfo:          engineInfo,
		}})

		err := commit(t.Path, version, actions)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, errVersionExists) {
			return -1, fmt.Errorf("deltalake: commit version %d: %w", version, err)
		}
		// Lost the race; re-read and retry as a blind append.
		if snap, err = loadSnapshot(t.Path); err != nil {
			return -1, err
		}
		if snap != nil && !sameColumns(snap.Columns, cols) {
			return -1, &SchemaMismatchError{Path: t.Path, Table: snap.Columns, Batch: cols}
		}
	}
	return -1, fmt.Errorf("deltalake: commit: %w after %d attempts", errVersionExists, commitAttempts)
}

func (t *Table) newMeta(cols []Column, partitionBy []string) (*metaData, error) {
	schemaString, err := encodeSchema(cols)
	if err != nil {
		return nil, err
	}
	if partitionBy == nil {
		partitionBy = []string{}
	}
	return &metaData{
		ID:               uuid.NewString(),
		Format:           format{Provider: "parquet", Options: map[string]string{}},
		SchemaString:     schemaString,
		PartitionColumns: partitionBy,
		Configuration:    map[string]string{},
		CreatedTime:      t.now().UnixMilli(),
	}, nil
}

// writeFiles writes one parquet file per distinct partition (or one file
// when unpartitioned) and returns their add actions.
func (t *Table) writeFiles(b *batch.Batch, partitionBy []string) ([]*addFile, error) {
	type group struct {
		values map[string]*string
		rows   []int
	}
	var order []string
	groups := map[string]*group{}
	for i := 0; i < b.Len(); i++ {
		values := make(map[string]*string, len(partitionBy))
		for _, p := range partitionBy {
			c, _ := b.Column(p)
			values[p] = formatPartitionValue(c.Values[i])
		}
		key := partitionDir(partitionBy, values)
		g, ok := groups[key]
		if !ok {
			g = &group{values: values}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, i)
	}
	if b.Len() == 0 {
		return nil, nil
	}

	adds := make([]*addFile, 0, len(order))
	for _, key := range order {
		g := groups[key]
		part := b
		if len(partitionBy) > 0 {
			part = b.Take(g.rows).Without(partitionBy...)
		}
		add, err := t.writeFile(key, part, g.values)
		if err != nil {
			return nil, err
		}
		add.DataChange = true
		adds = append(adds, add)
	}
	return adds, nil
}

func (t *Table) writeFile(dir string, b *batch.Batch, values map[string]*string) (*addFile, error) {
	data, err := encodeParquet(b, t.mem)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("part-00000-%s-c000.snappy.parquet", uuid.NewString())
	rel := name
	if dir != "" {
		rel = dir + "/" + name
	}
	full := filepath.Join(t.Path, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("deltalake: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("deltalake: write %s: %w", rel, err)
	}
	stats, _ := jsonString(fileStats{NumRecords: int64(b.Len())})
	if values == nil {
		values = map[string]*string{}
	}
	return &addFile{
		Path:             encodePath(rel),
		PartitionValues:  values,
		Size:             int64(len(data)),
		ModificationTime: t.now().UnixMilli(),
		Stats:            stats,
	}, nil
}

// Read returns every row of the current version. Files are read concurrently
// and concatenated in path order.
func (t *Table) Read(ctx context.Context) (*batch.Batch, error) {
	snap, err := loadSnapshot(t.Path)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("deltalake: %s: %w", t.Path, fs.ErrNotExist)
	}
	parts, err := t.readFiles(ctx, snap, snap.sortedActive())
	if err != nil {
		return nil, err
	}
	out := batch.New(filepath.Base(t.Path), 0)
	for _, c := range snap.Columns {
		out.Columns = append(out.Columns, batch.Column{Name: c.Name, Type: c.Type, Values: []any{}})
	}
	for _, p := range parts {
		if err := out.Concat(p); err != nil {
			return nil, err
		}
	}
	restoreTypes(out, snap.Columns)
	return out, nil
}

func (t *Table) readFiles(ctx context.Context, snap *snapshot, paths []string) ([]*batch.Batch, error) {
	parts := make([]*batch.Batch, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readParallel)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			b, err := decodeParquet(gctx, filepath.Join(t.Path, filepath.FromSlash(p)), snap.Columns, snap.Active[p].PartitionValues, t.mem)
			if err != nil {
				return err
			}
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// restoreTypes pins column types to the table schema; Concat re-infers them
// and an all-null column would otherwise read back as a string.
func restoreTypes(b *batch.Batch, cols []Column) {
	for i := range b.Columns {
		if i < len(cols) {
			b.Columns[i].Type = cols[i].Type
		}
	}
}

// Optimize compacts the active files of each partition into a single file.
// It commits nothing and returns -1 when no partition has more than one file.
func (t *Table) Optimize(ctx context.Context) (int64, error) {
	snap, err := loadSnapshot(t.Path)
	if err != nil {
		return -1, err
	}
	if snap == nil {
		return -1, fmt.Errorf("deltalake: %s: %w", t.Path, fs.ErrNotExist)
	}

	byPartition := map[string][]string{}
	var keys []string
	for _, p := range snap.sortedActive() {
		key := partitionDir(snap.Meta.PartitionColumns, snap.Active[p].PartitionValues)
		if _, ok := byPartition[key]; !ok {
			keys = append(keys, key)
		}
		byPartition[key] = append(byPartition[key], p)
	}
	sort.Strings(keys)

	now := t.now().UnixMilli()
	var actions []action
	removed, added := 0, 0
	for _, key := range keys {
		paths := byPartition[key]
		if len(paths) < 2 {
			continue
		}
		parts, err := t.readFiles(ctx, snap, paths)
		if err != nil {
			return -1, err
		}
		merged := parts[0]
		for _, p := range parts[1:] {
			if err := merged.Concat(p); err != nil {
				return -1, err
			}
		}
		restoreTypes(merged, snap.Columns)
		values := snap.Active[paths[0]].PartitionValues
		add, err := t.writeFile(key, merged.Without(snap.Meta.PartitionColumns...), values)
		if err != nil {
			return -1, err
		}
		actions = append(actions, action{Add: add})
		added++
		for _, p := range paths {
			old := snap.Active[p]
			actions = append(actions, action{Remove: &removeFile{
				Path:                 old.Path,
				DeletionTimestamp:    now,
				DataChange:           false,
				ExtendedFileMetadata: true,
				PartitionValues:      old.PartitionValues,
				Size:                 old.Size,
			}})
			removed++
		}
	}
	if len(actions) == 0 {
		return -1, nil
	}
	actions = append(actions, action{CommitInfo: &commitInfo{
		Timestamp: now,
		Operation: "OPTIMIZE",
		OperationParameters: map[string]string{
			"filesAdded":   fmt.Sprint(added),
			"filesRemoved": fmt.Sprint(removed),
		},
		EngineInfo: engineInfo,
	}})
	version := snap.Version + 1
	if err := commit(t.Path, version, actions); err != nil {
		return -1, fmt.Errorf("deltalake: commit optimize: %w", err)
	}
	return version, nil
}

// Vacuum deletes data files that the current version no longer references
// and that are older than retention. Tombstoned files age from their
// deletion timestamp, unreferenced files from their modification time. It
// returns the deleted paths relative to the table root.
func (t *Table) Vacuum(ctx context.Context, retention time.Duration) ([]string, error) {
	snap, err := loadSnapshot(t.Path)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("deltalake: %s: %w", t.Path, fs.ErrNotExist)
	}
	cutoff := t.now().Add(-retention)

	var deleted []string
	err = filepath.WalkDir(t.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(t.Path, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".parquet") {
			return nil
		}
		if _, active := snap.Active[rel]; active {
			return nil
		}
		var ts time.Time
		if rm, ok := snap.Removed[rel]; ok {
			ts = time.UnixMilli(rm.DeletionTimestamp)
		} else {
			info, err := d.Info()
			if err != nil {
				return err
			}
			ts = info.ModTime()
		}
		if !ts.Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("deltalake: vacuum %s: %w", rel, err)
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

func sameColumns(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
