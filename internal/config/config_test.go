package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":       "x",
		"n":       7,
		"f":       float64(3),
		"nstr":    "12",
		"b":       true,
		"bstr":    "false",
		"d":       "250ms",
		"dsec":    2,
		"list":    []any{"a", "b", 3},
		"csv":     "a, b,,c",
		"numeric": 5,
	}

	assert.Equal(t, "x", o.String("s", "def"))
	assert.Equal(t, "5", o.String("numeric", "def"))
	assert.Equal(t, "def", o.String("missing", "def"))
	assert.Equal(t, 7, o.Int("n", 0))
	assert.Equal(t, 3, o.Int("f", 0))
	assert.Equal(t, 12, o.Int("nstr", 0))
	assert.Equal(t, 9, o.Int("missing", 9))
	assert.True(t, o.Bool("b", false))
	assert.False(t, o.Bool("bstr", true))
	assert.Equal(t, 250*time.Millisecond, o.Duration("d", time.Second, 0))
	assert.Equal(t, 2*time.Second, o.Duration("dsec", time.Second, 0))
	assert.Equal(t, []string{"a", "b"}, o.StringSlice("list"))
	assert.Equal(t, []string{"a", "b", "c"}, o.StringSlice("csv"))
	assert.Nil(t, o.StringSlice("missing"))
	assert.True(t, o.Has("s"))
}

func TestParseSink_Variants(t *testing.T) {
	t.Parallel()

	three := 3
	tests := []struct {
		name string
		yaml string
		want SinkSpec
	}{
		{
			name: "delta lake",
			yaml: "kind: delta_lake\npath: ./out\npartition_by: [country]\noptimize: 3\nvacuum_retention: 1h\n",
			want: DeltaLakeSink{Path: "./out", PartitionBy: []string{"country"}, OptimizeEvery: &three, VacuumRetention: time.Hour},
		},
		{
			name: "duckdb",
			yaml: "kind: duckdb\npath: ./db.duckdb\ntable_name: people\n",
			want: EmbeddedDBSink{Path: "./db.duckdb", TableName: "people"},
		},
		{
			name: "sqlite alias selects the sqlite engine",
			yaml: "kind: sqlite\npath: ./db.sqlite\ntable_name: people\n",
			want: EmbeddedDBSink{Path: "./db.sqlite", TableName: "people", Engine: EngineSQLite},
		},
		{
			name: "postgres",
			yaml: "kind: postgres\nconnection_string: postgres://u:p@localhost/db\ntable_name: public.people\n",
			want: RelationalSink{ConnectionString: "postgres://u:p@localhost/db", TableName: "public.people"},
		},
		{
			name: "mysql alias sets the dialect",
			yaml: "kind: mysql\nconnection_string: mysql://u:p@localhost/db\ntable_name: people\n",
			want: RelationalSink{ConnectionString: "mysql://u:p@localhost/db", TableName: "people", Dialect: KindMySQL},
		},
		{
			name: "kafka",
			yaml: "kind: kafka\ntopic: people\nproducer_config:\n  bootstrap.servers: localhost:9092\n",
			want: KafkaSink{Topic: "people", ProducerConfig: Options{"bootstrap.servers": "localhost:9092"}},
		},
		{
			name: "kafka without producer config",
			yaml: "kind: kafka\ntopic: people\n",
			want: KafkaSink{Topic: "people", ProducerConfig: Options{}},
		},
		{
			name: "iceberg",
			yaml: "kind: iceberg\ntable_name: ns.people\ncatalog_properties:\n  type: rest\n  uri: http://localhost:8181\n  rest.retries: 3\n",
			want: IcebergSink{TableName: "ns.people", CatalogProperties: Options{"type": "rest", "uri": "http://localhost:8181", "rest.retries": 3}},
		},
		{
			name: "legacy configuration wrapper",
			yaml: "configuration:\n  type_of_sink: duckdb\n  path: ./db.duckdb\n  table_name: people\n",
			want: EmbeddedDBSink{Path: "./db.duckdb", TableName: "people"},
		},
		{
			name: "kind is case insensitive",
			yaml: "kind: Delta_Lake\npath: ./out\n",
			want: DeltaLakeSink{Path: "./out"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := ParseSink([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Spec)
		})
	}
}

func TestParseSink_UnsupportedKind(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"kind: redis\npath: x\n", "path: x\n"} {
		_, err := ParseSink([]byte(doc))
		var ue *UnsupportedSinkTypeError
		require.True(t, errors.As(err, &ue), "doc %q: got %v", doc, err)
	}
}

func TestParseSink_DecodeError(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{
		"kind: delta_lake\npath: [a, b]\n",
		"kind: iceberg\ntable_name: {ns: people}\n",
	} {
		s, err := ParseSink([]byte(doc))
		require.Error(t, err, doc)
		assert.Nil(t, s.Spec, doc)
	}
}

func TestParseSink_Empty(t *testing.T) {
	t.Parallel()

	_, err := ParseSink([]byte(""))
	require.Error(t, err)
}

func TestSinkDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultVacuumRetention, DeltaLakeSink{}.Retention())
	assert.Equal(t, time.Minute, DeltaLakeSink{VacuumRetention: time.Minute}.Retention())
	assert.Equal(t, EngineDuckDB, EmbeddedDBSink{}.EngineOrDefault())
	assert.Equal(t, EngineSQLite, EmbeddedDBSink{Engine: " SQLite "}.EngineOrDefault())
	assert.Equal(t, "main", IcebergSink{}.CatalogNameOrDefault())
	assert.Equal(t, "prod", IcebergSink{CatalogName: "prod"}.CatalogNameOrDefault())
}
