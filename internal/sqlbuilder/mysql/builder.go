// Package mysql implements the sqlbuilder.Builder contract for MySQL: "?"
// placeholders and INSERT ... ON DUPLICATE KEY UPDATE upserts.
package mysql

import (
	"fmt"
	"strings"

	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// Builder implements sqlbuilder.Builder for MySQL.
type Builder struct{}

// Quote backtick-quotes a single identifier.
func (Builder) Quote(col string) string { return "`" + strings.ReplaceAll(col, "`", "``") + "`" }

// QuoteCols quotes a comma-joined identifier list.
func (b Builder) QuoteCols(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = b.Quote(c)
	}
	return strings.Join(out, ", ")
}

// Placeholder always returns "?"; MySQL placeholders are unnumbered.
func (Builder) Placeholder(_ int, _ string) string { return "?" }

func qTable(schema, table string) string {
	if schema == "" {
		return "`" + table + "`"
	}
	return "`" + schema + "`.`" + table + "`"
}

// InsertQuery builds a single-row upsert via ON DUPLICATE KEY UPDATE.
func (b Builder) InsertQuery(meta tablemeta.TbMeta, row rowdata.RowData) (string, []sqlbuilder.Bind) {
	cols := make([]string, 0, len(meta.Columns))
	binds := make([]sqlbuilder.Bind, 0, len(meta.Columns))
	for _, c := range meta.Columns {
		v, ok := row.After[c.Name]
		if !ok {
			continue
		}
		cols = append(cols, c.Name)
		binds = append(binds, sqlbuilder.Bind{Col: c.Name, Value: v})
	}
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qTable(meta.Schema, meta.Table), b.QuoteCols(cols), strings.Join(placeholders, ", "))
	sql += b.onDuplicateClause(meta, cols)
	return sql, binds
}

// BatchInsertQuery builds a chunked multi-VALUES upsert for rows[start:start+n].
func (b Builder) BatchInsertQuery(meta tablemeta.TbMeta, rows []rowdata.RowData, start, n int) (string, []sqlbuilder.Bind) {
	end := start + n
	if end > len(rows) {
		end = len(rows)
	}
	cols := columnNames(meta)
	ph := "(" + strings.Repeat("?, ", len(cols)-1) + "?)"

	var valuesClauses []string
	var binds []sqlbuilder.Bind
	for _, row := range rows[start:end] {
		valuesClauses = append(valuesClauses, ph)
		for _, c := range cols {
			v, ok := row.After[c]
			if !ok {
				v = rowdata.Null()
			}
			binds = append(binds, sqlbuilder.Bind{Col: c, Value: v})
		}
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", qTable(meta.Schema, meta.Table), b.QuoteCols(cols), strings.Join(valuesClauses, ", "))
	sql += b.onDuplicateClause(meta, cols)
	return sql, binds
}

// BatchDeleteQuery builds "DELETE WHERE (id_cols) IN ((...),(...))".
func (b Builder) BatchDeleteQuery(meta tablemeta.TbMeta, rows []rowdata.RowData, start, n int) (string, []sqlbuilder.Bind) {
	end := start + n
	if end > len(rows) {
		end = len(rows)
	}
	tuplePh := "(" + strings.Repeat("?, ", len(meta.IDCols)-1) + "?)"
	var tuples []string
	var binds []sqlbuilder.Bind
	for _, row := range rows[start:end] {
		tuples = append(tuples, tuplePh)
		for _, col := range meta.IDCols {
			binds = append(binds, sqlbuilder.Bind{Col: col, Value: row.Before[col]})
		}
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE (%s) IN (%s)", qTable(meta.Schema, meta.Table), b.QuoteCols(meta.IDCols), strings.Join(tuples, ", "))
	return sql, binds
}

// QueryInfo builds a single-row UPDATE or DELETE keyed by id_cols.
func (b Builder) QueryInfo(meta tablemeta.TbMeta, row rowdata.RowData) (string, []sqlbuilder.Bind) {
	switch row.Op {
	case rowdata.OpDelete:
		where, binds := b.whereClause(meta, row.Before)
		sql := fmt.Sprintf("DELETE FROM %s WHERE %s", qTable(meta.Schema, meta.Table), where)
		return sql, binds
	case rowdata.OpUpdate:
		var sets []string
		var binds []sqlbuilder.Bind
		for _, col := range meta.NonKeyColumns() {
			v, ok := row.After[col]
			if !ok {
				continue
			}
			sets = append(sets, b.Quote(col)+" = ?")
			binds = append(binds, sqlbuilder.Bind{Col: col, Value: v})
		}
		where, whereBinds := b.whereClause(meta, row.Before)
		binds = append(binds, whereBinds...)
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", qTable(meta.Schema, meta.Table), strings.Join(sets, ", "), where)
		return sql, binds
	default:
		return b.InsertQuery(meta, row)
	}
}

func (b Builder) whereClause(meta tablemeta.TbMeta, before map[string]rowdata.ColValue) (string, []sqlbuilder.Bind) {
	var clauses []string
	var binds []sqlbuilder.Bind
	for _, col := range meta.IDCols {
		clauses = append(clauses, b.Quote(col)+" = ?")
		binds = append(binds, sqlbuilder.Bind{Col: col, Value: before[col]})
	}
	return strings.Join(clauses, " AND "), binds
}

func (b Builder) onDuplicateClause(meta tablemeta.TbMeta, insertedCols []string) string {
	key := make(map[string]struct{}, len(meta.IDCols))
	for _, c := range meta.IDCols {
		key[c] = struct{}{}
	}
	var sets []string
	for _, c := range insertedCols {
		if _, isKey := key[c]; isKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", b.Quote(c), b.Quote(c)))
	}
	if len(sets) == 0 {
		return ""
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func columnNames(meta tablemeta.TbMeta) []string {
	out := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		out[i] = c.Name
	}
	return out
}

var _ sqlbuilder.Builder = Builder{}
