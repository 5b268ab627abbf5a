package deltalake

import (
	"encoding/json"
	"fmt"

	"synthstream/internal/batch"
)

// Log actions, one JSON object per line in _delta_log/<version>.json.
// Only the fields this package reads or writes are modeled.

type action struct {
	Protocol   *protocol   `json:"protocol,omitempty"`
	MetaData   *metaData   `json:"metaData,omitempty"`
	Add        *addFile    `json:"add,omitempty"`
	Remove     *removeFile `json:"remove,omitempty"`
	CommitInfo *commitInfo `json:"commitInfo,omitempty"`
}

type protocol struct {
	MinReaderVersion int `json:"minReaderVersion"`
	MinWriterVersion int `json:"minWriterVersion"`
}

type format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options"`
}

type metaData struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Format           format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration"`
	CreatedTime      int64             `json:"createdTime"`
}

type addFile struct {
	Path             string             `json:"path"`
	PartitionValues  map[string]*string `json:"partitionValues"`
	Size             int64              `json:"size"`
	ModificationTime int64              `json:"modificationTime"`
	DataChange       bool               `json:"dataChange"`
	Stats            string             `json:"stats,omitempty"`
}

type removeFile struct {
	Path                 string             `json:"path"`
	DeletionTimestamp    int64              `json:"deletionTimestamp"`
	DataChange           bool               `json:"dataChange"`
	ExtendedFileMetadata bool               `json:"extendedFileMetadata"`
	PartitionValues      map[string]*string `json:"partitionValues"`
	Size                 int64              `json:"size"`
}

type commitInfo struct {
	Timestamp           int64             `json:"timestamp"`
	Operation           string            `json:"operation"`
	OperationParameters map[string]string `json:"operationParameters"`
	EngineInfo          string            `json:"engineInfo"`
}

type fileStats struct {
	NumRecords int64 `json:"numRecords"`
}

// structType is the Delta schema serialization.
type structType struct {
	Type   string        `json:"type"`
	Fields []structField `json:"fields"`
}

type structField struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Nullable bool           `json:"nullable"`
	Metadata map[string]any `json:"metadata"`
}

// Column describes one table column as recorded in the log.
type Column struct {
	Name string
	Type batch.Type
}

func deltaType(t batch.Type) string {
	switch t {
	case batch.Int64:
		return "long"
	case batch.Float64:
		return "double"
	case batch.Bool:
		return "boolean"
	case batch.Timestamp:
		return "timestamp"
	}
	return "string"
}

func batchType(s string) (batch.Type, error) {
	switch s {
	case "long", "integer", "short", "byte":
		return batch.Int64, nil
	case "double", "float":
		return batch.Float64, nil
	case "boolean":
		return batch.Bool, nil
	case "timestamp", "timestamp_ntz":
		return batch.Timestamp, nil
	case "string":
		return batch.String, nil
	}
	return 0, fmt.Errorf("deltalake: unsupported column type %q", s)
}

func columnsOf(b *batch.Batch) []Column {
	out := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		out[i] = Column{Name: c.Name, Type: c.Type}
	}
	return out
}

func encodeSchema(cols []Column) (string, error) {
	st := structType{Type: "struct", Fields: make([]structField, len(cols))}
	for i, c := range cols {
		st.Fields[i] = structField{Name: c.Name, Type: deltaType(c.Type), Nullable: true, Metadata: map[string]any{}}
	}
	raw, err := json.Marshal(st)
	return string(raw), err
}

func decodeSchema(s string) ([]Column, error) {
	var st structType
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return nil, fmt.Errorf("deltalake: decode schema: %w", err)
	}
	out := make([]Column, len(st.Fields))
	for i, f := range st.Fields {
		t, err := batchType(f.Type)
		if err != nil {
			return nil, err
		}
		out[i] = Column{Name: f.Name, Type: t}
	}
	return out, nil
}

func jsonString(v any) (string, error) {
	raw, err := json.Marshal(v)
	return string(raw), err
}
