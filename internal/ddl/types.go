package ddl

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMP)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name and an ordered list of columns. FQN is in
// dotted form ("schema.table") and each segment is quoted by the dialect,
// unless Raw is set, in which case FQN is emitted verbatim.
type TableDef struct {
	FQN     string
	Raw     bool
	Columns []ColumnDef
}
