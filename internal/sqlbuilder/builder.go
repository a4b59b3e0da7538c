// Package sqlbuilder specifies the per-dialect SQL builder contract. The
// core engine depends only on this contract — per-dialect SQL text
// internals are out of scope beyond what's needed to exercise the
// sinker/extractor behaviors this package's callers cover.
package sqlbuilder

import (
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// Bind is one positional parameter value paired with its column, in the
// order the builder placed it in the generated SQL.
type Bind struct {
	Col   string
	Value rowdata.ColValue
}

// Builder is consumed by the sinker set; it never touches a connection.
// Placeholders are dialect-specific ("?" for MySQL, "$n" for Postgres).
type Builder interface {
	// Quote quotes a single identifier.
	Quote(col string) string
	// QuoteCols quotes a comma-joined identifier list.
	QuoteCols(cols []string) string
	// Placeholder returns the i-th (1-based) positional placeholder for
	// col. MySQL builders ignore i and always return "?".
	Placeholder(i int, col string) string

	// InsertQuery builds a single-row upsert statement for row, returning
	// the SQL text and its ordered binds.
	InsertQuery(meta tablemeta.TbMeta, row rowdata.RowData) (sql string, binds []Bind)
	// BatchInsertQuery builds a chunked multi-VALUES upsert statement for
	// rows[start:start+n].
	BatchInsertQuery(meta tablemeta.TbMeta, rows []rowdata.RowData, start, n int) (sql string, binds []Bind)
	// BatchDeleteQuery builds a "DELETE WHERE (id_cols) IN (...)" statement
	// for rows[start:start+n].
	BatchDeleteQuery(meta tablemeta.TbMeta, rows []rowdata.RowData, start, n int) (sql string, binds []Bind)
	// QueryInfo builds a single-row UPDATE or DELETE statement keyed by
	// id_cols, used by the serial fallback path.
	QueryInfo(meta tablemeta.TbMeta, row rowdata.RowData) (sql string, binds []Bind)
}

// Fetcher is consumed by the structure extractor; out of core scope beyond
// its output contract.
type Fetcher interface {
	FetchVersion() (string, error)
	GetCreateDatabaseStatement(schema string) (rowdata.Statement, error)
	GetCreateTableStatements(schema, prefix string) ([]rowdata.Statement, error)
}

// Router maps a source (schema, table) to a destination (schema, table)
// and renames individual columns, the only schema transformation the
// engine performs.
type Router interface {
	Route(srcSchema, srcTable string) (dstSchema, dstTable string)
	RouteColumn(srcSchema, srcTable, col string) string
}
