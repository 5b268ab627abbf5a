package config

import (
	"strings"
	"testing"

	"synthstream/internal/schema"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func knownRefs(refs ...string) func(string) bool {
	m := map[string]bool{}
	for _, r := range refs {
		m[r] = true
	}
	return func(ref string) bool { return m[ref] }
}

func TestValidateTable_Valid(t *testing.T) {
	t.Parallel()

	tbl := schema.Table{
		Name:   "people",
		Locale: "en",
		Fields: []schema.Field{
			{Name: "id", Generator: "numeric.increment"},
			{Name: "first_name", Generator: "person.first_name"},
		},
	}
	issues := ValidateTable(tbl, knownRefs("numeric.increment", "person.first_name"))
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidateTable_Findings(t *testing.T) {
	t.Parallel()

	tbl := schema.Table{
		Fields: []schema.Field{
			{Name: "id", Generator: "numeric.increment"},
			{Name: "id", Generator: "person.first_name"},
			{Name: "bad", Generator: "nodot"},
			{Name: "mystery", Generator: "person.favorite_spaceship"},
			{Name: "empty"},
		},
	}
	issues := ValidateTable(tbl, knownRefs("numeric.increment", "person.first_name"))

	if !hasIssue(t, issues, SeverityError, "name", "must not be empty") {
		t.Errorf("expected missing table name error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "fields[1].name", "duplicate of fields[0]") {
		t.Errorf("expected duplicate warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "fields[2].generator", "provider.method") {
		t.Errorf("expected malformed generator error; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "fields[3].generator", "unknown generator") {
		t.Errorf("expected unknown generator warning; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "fields[4].generator", "must not be empty") {
		t.Errorf("expected missing generator error; got %+v", issues)
	}
	if !HasErrors(issues) {
		t.Errorf("HasErrors = false, want true")
	}
}

func TestValidateTable_NoFields(t *testing.T) {
	t.Parallel()

	issues := ValidateTable(schema.Table{Name: "t"}, nil)
	if !hasIssue(t, issues, SeverityError, "fields", "at least one field") {
		t.Fatalf("expected fields error; got %+v", issues)
	}
}

func TestValidateSink(t *testing.T) {
	t.Parallel()

	zero := 0
	tests := []struct {
		name string
		spec SinkSpec
		sev  IssueSeverity
		path string
		msg  string
	}{
		{"nil", nil, SeverityError, "sink", "missing"},
		{"delta path", DeltaLakeSink{}, SeverityError, "sink.path", "must not be empty"},
		{"delta optimize zero", DeltaLakeSink{Path: "x", OptimizeEvery: &zero}, SeverityError, "sink.optimize", "greater than 0"},
		{"delta empty partition", DeltaLakeSink{Path: "x", PartitionBy: []string{""}}, SeverityError, "sink.partition_by[0]", "must not be empty"},
		{"embedded table", EmbeddedDBSink{Path: "x"}, SeverityError, "sink.table_name", "must not be empty"},
		{"embedded engine", EmbeddedDBSink{Path: "x", TableName: "t", Engine: "oracle"}, SeverityError, "sink.engine", "one of"},
		{"relational dsn", RelationalSink{TableName: "t"}, SeverityError, "sink.connection_string", "must not be empty"},
		{"kafka brokers", KafkaSink{Topic: "t", ProducerConfig: Options{}}, SeverityError, "sink.producer_config", "bootstrap.servers"},
		{"kafka topic", KafkaSink{ProducerConfig: Options{"bootstrap.servers": "k:9092"}}, SeverityError, "sink.topic", "must not be empty"},
		{"iceberg namespace", IcebergSink{TableName: "people", CatalogProperties: Options{"type": "rest"}}, SeverityWarning, "sink.table_name", "namespace"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := ValidateSink(tt.spec)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestValidateSink_Valid(t *testing.T) {
	t.Parallel()

	specs := []SinkSpec{
		DeltaLakeSink{Path: "./out"},
		EmbeddedDBSink{Path: "./db", TableName: "t", Engine: EngineSQLite},
		RelationalSink{ConnectionString: "postgres://localhost/db", TableName: "t"},
		KafkaSink{Topic: "t", ProducerConfig: Options{"bootstrap.servers": "k:9092"}},
		IcebergSink{TableName: "ns.t", CatalogProperties: Options{"type": "rest"}},
	}
	for _, s := range specs {
		if issues := ValidateSink(s); HasErrors(issues) {
			t.Errorf("%T: unexpected errors %+v", s, issues)
		}
	}
}
