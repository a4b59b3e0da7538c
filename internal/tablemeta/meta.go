// Package tablemeta caches per-table metadata (column list, key columns,
// slicing column) behind a single-flight-protected fetch, as described by
// the row model & metadata cache contract.
package tablemeta

import "github.com/dtpipe/dtpipe/internal/rowdata"

// Column describes one column's name and encoded type.
type Column struct {
	Name string
	Type string // dialect-reported type name, e.g. "int8", "varchar"
}

// TbMeta is immutable once loaded; it is re-fetched only when a DDL event
// invalidates the cache entry for its (schema, table) key.
type TbMeta struct {
	Schema  string
	Table   string
	Columns []Column
	// IDCols is the ordered primary/unique key used for WHERE clauses in
	// single-row and batch-delete statements.
	IDCols []string
	// OrderCol is the slicing column for the sliced-scan snapshot
	// algorithm. Empty when no deterministic, strictly-monotone-per-row
	// column exists for this table; the snapshot extractor then falls
	// back to a single streaming cursor.
	OrderCol string
	// ColTypeMap maps column name to its encoded type, duplicating the
	// information in Columns for O(1) lookup during value decode.
	ColTypeMap map[string]string
}

// QualifiedName returns "schema.table".
func (m TbMeta) QualifiedName() string {
	if m.Schema == "" {
		return m.Table
	}
	return m.Schema + "." + m.Table
}

// HasOrderCol reports whether the sliced scan can be used for this table.
func (m TbMeta) HasOrderCol() bool { return m.OrderCol != "" }

// NonKeyColumns returns every column name not present in IDCols, in
// declaration order — the set an upsert's SET clause must cover.
func (m TbMeta) NonKeyColumns() []string {
	key := make(map[string]struct{}, len(m.IDCols))
	for _, c := range m.IDCols {
		key[c] = struct{}{}
	}
	out := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		if _, isKey := key[c.Name]; !isKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// Fetcher issues the dialect-specific system-catalog queries that build a
// TbMeta on cache miss. Structural fetcher internals are out of core scope;
// the engine depends only on this contract.
type Fetcher interface {
	FetchTableMeta(schema, table string) (TbMeta, error)
}

// DefaultKindFor reports the rowdata.Kind a dialect type name decodes to.
// Both the Postgres and MySQL extractors, and the engine's snapshot resume
// path, use this one shared mapping.
func DefaultKindFor(dialectType string) rowdata.Kind {
	switch dialectType {
	case "int2", "int4", "int8", "smallint", "int", "integer", "bigint", "tinyint":
		return rowdata.KindInt
	case "bool", "boolean":
		return rowdata.KindBool
	case "float4", "float8", "real", "double", "double precision":
		return rowdata.KindFloat
	case "numeric", "decimal":
		return rowdata.KindDecimal
	case "json", "jsonb":
		return rowdata.KindJSON
	case "bytea", "blob", "varbinary", "binary":
		return rowdata.KindBlob
	case "timestamp", "timestamptz", "timestamp with time zone":
		return rowdata.KindTimestamp
	case "date":
		return rowdata.KindDate
	case "time":
		return rowdata.KindTime
	case "datetime":
		return rowdata.KindDateTime
	default:
		return rowdata.KindString
	}
}
