// Package schema defines the declarative table schema that drives synthetic
// record generation: a named table with a locale and an ordered list of
// fields, each pointing at a generator reference ("provider.method") plus its
// positional and keyword arguments.
//
// Schemas are authored as YAML:
//
//	name: people
//	description: Sample people table
//	locale: en
//	fields:
//	  - name: id
//	    description: Row identifier
//	    generator: numeric.increment
//	  - name: First Name
//	    description: Given name
//	    generator: person.first_name
//	  - name: birth_date
//	    description: Date of birth
//	    generator: datetime.datetime
//	    kwargs: {start: 1950, end: 2005}
//
// Field names are normalized when a schema is parsed ("First Name" becomes
// "first_name").
package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultLocale is used when a schema omits the locale.
const DefaultLocale = "en"

// Table is a declarative table schema.
type Table struct {
	Name        string  `yaml:"name" json:"name" validate:"required"`
	Description string  `yaml:"description" json:"description"`
	Locale      string  `yaml:"locale" json:"locale"`
	Fields      []Field `yaml:"fields" json:"fields" validate:"dive"`
}

// Field maps one output column to a generator reference.
type Field struct {
	Name        string         `yaml:"name" json:"name" validate:"required"`
	Description string         `yaml:"description" json:"description"`
	Generator   string         `yaml:"generator" json:"generator" validate:"required"`
	Args        []any          `yaml:"args" json:"args"`
	Kwargs      map[string]any `yaml:"kwargs" json:"kwargs"`

	// Older schema files spell the generator keys with a mimesis_field_
	// prefix. Normalize folds them into the fields above.
	LegacyGenerator string         `yaml:"mimesis_field_name,omitempty" json:"-"`
	LegacyArgs      []any          `yaml:"mimesis_field_args,omitempty" json:"-"`
	LegacyKwargs    map[string]any `yaml:"mimesis_field_kwargs,omitempty" json:"-"`
}

// String renders the field the way it shows up in error messages.
func (f Field) String() string {
	return fmt.Sprintf("%s (%s)", f.Name, f.Generator)
}

// FieldNames returns the field names in schema order. Duplicates are kept.
func (t Table) FieldNames() []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Name
	}
	return out
}

// NormalizeName trims, replaces spaces with underscores and lowercases a
// field name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// ValidateName reports whether a normalized name is usable as a column name:
// it must be alphanumeric or contain an underscore.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("field name must not be empty")
	}
	if strings.Contains(name, "_") {
		return nil
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("field name %q must be alphanumeric or contain underscores only", name)
		}
	}
	return nil
}

// Normalize applies NormalizeName to every field and fills the default locale.
// It returns the first invalid field name it finds.
func (t *Table) Normalize() error {
	if strings.TrimSpace(t.Locale) == "" {
		t.Locale = DefaultLocale
	}
	for i := range t.Fields {
		n := NormalizeName(t.Fields[i].Name)
		if err := ValidateName(n); err != nil {
			return fmt.Errorf("fields[%d]: %w", i, err)
		}
		t.Fields[i].Name = n
		t.Fields[i].foldLegacy()
		if t.Fields[i].Args == nil {
			t.Fields[i].Args = []any{}
		}
		if t.Fields[i].Kwargs == nil {
			t.Fields[i].Kwargs = map[string]any{}
		}
	}
	return nil
}

// SplitGenerator splits "provider.method" into its two parts. A reference
// without a dot is returned as a bare method with an empty provider.
func SplitGenerator(ref string) (provider, method string) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return "", ref
	}
	return ref[:i], ref[i+1:]
}

func (f *Field) foldLegacy() {
	if f.Generator == "" {
		f.Generator = f.LegacyGenerator
	}
	if len(f.Args) == 0 && len(f.LegacyArgs) > 0 {
		f.Args = f.LegacyArgs
	}
	if len(f.Kwargs) == 0 && len(f.LegacyKwargs) > 0 {
		f.Kwargs = f.LegacyKwargs
	}
	f.LegacyGenerator, f.LegacyArgs, f.LegacyKwargs = "", nil, nil
}
