package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sink kinds. Aliases decode into the variant of their canonical kind.
const (
	KindDeltaLake = "delta_lake"
	KindDuckDB    = "duckdb"
	KindSQLite    = "sqlite" // alias: embedded database with the sqlite engine
	KindPostgres  = "postgres"
	KindMSSQL     = "mssql" // alias: relational database, SQL Server dialect
	KindMySQL     = "mysql" // alias: relational database, MySQL dialect
	KindKafka     = "kafka"
	KindIceberg   = "iceberg"
)

// Embedded database engines.
const (
	EngineDuckDB = "duckdb"
	EngineSQLite = "sqlite"
)

// DefaultVacuumRetention mirrors the Delta Lake default retention window.
const DefaultVacuumRetention = 168 * time.Hour

// UnsupportedSinkTypeError reports a sink kind that has no adapter.
type UnsupportedSinkTypeError struct {
	Kind string
}

func (e *UnsupportedSinkTypeError) Error() string {
	return fmt.Sprintf("unsupported sink type: %q", e.Kind)
}

// SinkSpec is implemented by exactly the five sink variants in this package.
type SinkSpec interface {
	// Kind is the canonical dispatch key of the variant.
	Kind() string
	sinkSpec()
}

// DeltaLakeSink appends batches as new versions of a Delta table on disk.
type DeltaLakeSink struct {
	Path        string   `yaml:"path" validate:"required"`
	PartitionBy []string `yaml:"partition_by"`
	// OptimizeEvery triggers compaction when batchIndex%OptimizeEvery == 0.
	OptimizeEvery *int `yaml:"optimize" validate:"omitempty,gt=0"`
	// VacuumEvery triggers retention cleanup when batchIndex%VacuumEvery == 0.
	VacuumEvery     *int          `yaml:"vacuum" validate:"omitempty,gt=0"`
	VacuumRetention time.Duration `yaml:"vacuum_retention" validate:"gte=0"`
}

// EmbeddedDBSink appends batches to a table in an embedded database file.
type EmbeddedDBSink struct {
	Path      string `yaml:"path" validate:"required"`
	TableName string `yaml:"table_name" validate:"required"`
	Engine    string `yaml:"engine" validate:"omitempty,oneof=duckdb sqlite"`
}

// RelationalSink appends batches to a table reachable through a connection
// string. The SQL dialect comes from the URL scheme unless Dialect is set.
type RelationalSink struct {
	ConnectionString string `yaml:"connection_string" validate:"required"`
	TableName        string `yaml:"table_name" validate:"required"`
	Dialect          string `yaml:"dialect" validate:"omitempty,oneof=postgres mssql mysql sqlite"`
}

// KafkaSink publishes one message per row to a topic.
type KafkaSink struct {
	ProducerConfig Options `yaml:"producer_config"`
	Topic          string  `yaml:"topic" validate:"required"`
}

// IcebergSink appends batches to a table in an Iceberg catalog.
type IcebergSink struct {
	TableName         string  `yaml:"table_name" validate:"required"`
	CatalogName       string  `yaml:"catalog_name"`
	CatalogProperties Options `yaml:"catalog_properties"`
}

func (DeltaLakeSink) Kind() string  { return KindDeltaLake }
func (EmbeddedDBSink) Kind() string { return KindDuckDB }
func (RelationalSink) Kind() string { return KindPostgres }
func (KafkaSink) Kind() string      { return KindKafka }
func (IcebergSink) Kind() string    { return KindIceberg }

func (DeltaLakeSink) sinkSpec()  {}
func (EmbeddedDBSink) sinkSpec() {}
func (RelationalSink) sinkSpec() {}
func (KafkaSink) sinkSpec()      {}
func (IcebergSink) sinkSpec()    {}

// Retention returns the configured vacuum retention or the default.
func (s DeltaLakeSink) Retention() time.Duration {
	if s.VacuumRetention > 0 {
		return s.VacuumRetention
	}
	return DefaultVacuumRetention
}

// EngineOrDefault returns the embedded engine, defaulting to duckdb.
func (s EmbeddedDBSink) EngineOrDefault() string {
	if e := strings.TrimSpace(s.Engine); e != "" {
		return strings.ToLower(e)
	}
	return EngineDuckDB
}

// CatalogNameOrDefault returns the catalog name, defaulting to "main".
func (s IcebergSink) CatalogNameOrDefault() string {
	if s.CatalogName != "" {
		return s.CatalogName
	}
	return "main"
}

// Sink is the decoded sink file. Spec is never nil after a successful decode.
type Sink struct {
	Spec SinkSpec
}

// sinkHead carries the discriminator. "type_of_sink" and a wrapping
// "configuration" block are accepted for older sink files.
type sinkHead struct {
	Kind          string     `yaml:"kind"`
	TypeOfSink    string     `yaml:"type_of_sink"`
	Configuration *yaml.Node `yaml:"configuration"`
}

// UnmarshalYAML decodes the variant selected by the kind discriminator.
func (s *Sink) UnmarshalYAML(n *yaml.Node) error {
	var head sinkHead
	if err := n.Decode(&head); err != nil {
		return err
	}
	if head.Configuration != nil {
		return s.UnmarshalYAML(head.Configuration)
	}
	kind := strings.ToLower(strings.TrimSpace(head.Kind))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(head.TypeOfSink))
	}

	spec, err := decodeSpec(kind, n)
	if err != nil {
		return err
	}
	s.Spec = spec
	return nil
}

func decodeSpec(kind string, n *yaml.Node) (SinkSpec, error) {
	switch kind {
	case KindDeltaLake:
		var v DeltaLakeSink
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case KindDuckDB, KindSQLite:
		var v EmbeddedDBSink
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if kind == KindSQLite && v.Engine == "" {
			v.Engine = EngineSQLite
		}
		return v, nil
	case KindPostgres, KindMSSQL, KindMySQL:
		var v RelationalSink
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if kind != KindPostgres && v.Dialect == "" {
			v.Dialect = kind
		}
		return v, nil
	case KindKafka:
		var v KafkaSink
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if v.ProducerConfig == nil {
			v.ProducerConfig = Options{}
		}
		return v, nil
	case KindIceberg:
		var v IcebergSink
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, &UnsupportedSinkTypeError{Kind: kind}
	}
}
