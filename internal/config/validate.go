package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"synthstream/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "sink.topic",
// "fields[2].generator"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return yamlName(f.Tag.Get("yaml"), f.Name)
	})
}

// structIssues converts validator failures into issues rooted at prefix.
func structIssues(prefix string, v any) []Issue {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: prefix, Message: err.Error()}}
	}
	out := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Issue{
			Severity: SeverityError,
			Path:     joinPath(prefix, fieldPath(fe.Namespace())),
			Message:  ruleMessage(fe),
		})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "dive":
		return "invalid element"
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// ValidateTable lints a normalized table schema. knows reports whether a
// generator reference can be resolved; a nil knows skips that check.
// Unknown generators are warnings because the resolver may still accept them.
func ValidateTable(t schema.Table, knows func(ref string) bool) []Issue {
	issues := structIssues("", t)

	if len(t.Fields) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "fields",
			Message:  "at least one field is required",
		})
	}

	seen := map[string]int{}
	for i, f := range t.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if f.Name != "" {
			if err := schema.ValidateName(f.Name); err != nil {
				issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: err.Error()})
			}
			if j, dup := seen[f.Name]; dup {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".name",
					Message:  fmt.Sprintf("duplicate of fields[%d]; values overwrite the earlier column", j),
				})
			} else {
				seen[f.Name] = i
			}
		}

		provider, method := schema.SplitGenerator(f.Generator)
		switch {
		case strings.TrimSpace(f.Generator) == "":
			// covered by the required tag
		case provider == "" || method == "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".generator",
				Message:  fmt.Sprintf("generator %q must have the form provider.method", f.Generator),
			})
		case knows != nil && !knows(f.Generator):
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".generator",
				Message:  fmt.Sprintf("unknown generator %q", f.Generator),
			})
		}
	}
	return issues
}

// ValidateSink lints a decoded sink spec.
func ValidateSink(s SinkSpec) []Issue {
	if s == nil {
		return []Issue{{Severity: SeverityError, Path: "sink", Message: "sink is missing"}}
	}
	issues := structIssues("sink", s)

	switch v := s.(type) {
	case DeltaLakeSink:
		for i, p := range v.PartitionBy {
			if strings.TrimSpace(p) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("sink.partition_by[%d]", i),
					Message:  "partition column must not be empty",
				})
			}
		}
	case EmbeddedDBSink:
		if v.EngineOrDefault() == EngineDuckDB && !DuckDBAvailable {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "sink.engine",
				Message:  "duckdb engine is not compiled into this binary (cgo disabled); use engine: sqlite",
			})
		}
	case RelationalSink:
		if v.ConnectionString != "" && v.Dialect == "" {
			if _, err := url.Parse(v.ConnectionString); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "sink.connection_string",
					Message:  "connection string is not a valid URL",
				})
			}
		}
	case KafkaSink:
		if len(v.ProducerConfig.StringSlice("bootstrap.servers")) == 0 &&
			len(v.ProducerConfig.StringSlice("brokers")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sink.producer_config",
				Message:  `producer_config must set "bootstrap.servers"`,
			})
		}
	case IcebergSink:
		if !strings.Contains(v.TableName, ".") && v.TableName != "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "sink.table_name",
				Message:  "table name has no namespace; catalogs usually expect namespace.table",
			})
		}
		if len(v.CatalogProperties) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "sink.catalog_properties",
				Message:  "no catalog properties; the catalog will be resolved from the environment",
			})
		}
	}
	return issues
}

// DuckDBAvailable is flipped on by the duckdb engine registration, which is
// only compiled with cgo.
var DuckDBAvailable bool

func joinPath(prefix, p string) string {
	switch {
	case prefix == "":
		return p
	case p == "":
		return prefix
	}
	return prefix + "." + p
}

// fieldPath drops the root struct name from a validator namespace:
// "Table.fields[0].generator" becomes "fields[0].generator".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func yamlName(tag, def string) string {
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return def
	}
	return name
}
