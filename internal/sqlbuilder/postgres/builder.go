// Package postgres implements the sqlbuilder.Builder contract for
// PostgreSQL: $n placeholders and ON CONFLICT ... DO UPDATE upserts.
package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// Builder implements sqlbuilder.Builder for Postgres.
type Builder struct{}

// Quote double-quotes a single identifier.
func (Builder) Quote(col string) string { return `"` + strings.ReplaceAll(col, `"`, `""`) + `"` }

// QuoteCols quotes a comma-joined identifier list.
func (b Builder) QuoteCols(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = b.Quote(c)
	}
	return strings.Join(out, ", ")
}

// Placeholder returns "$i" regardless of col, per the Postgres wire
// protocol's positional-parameter convention.
func (Builder) Placeholder(i int, _ string) string { return "$" + strconv.Itoa(i) }

// InsertQuery builds a single-row upsert: INSERT ... ON CONFLICT (id_cols)
// DO UPDATE SET col=EXCLUDED.col for every non-key column.
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

	placeholders := make([]string, len(binds))
	for i := range binds {
		placeholders[i] = b.Placeholder(i+1, binds[i].Col)
	}

	sql := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		qSchema(meta.Schema), qTable(meta.Table), b.QuoteCols(cols), strings.Join(placeholders, ", "))

	sql += b.upsertClause(meta, cols, len(binds))
	return sql, binds
}

// BatchInsertQuery builds a chunked multi-VALUES upsert for rows[start:start+n].
func (b Builder) BatchInsertQuery(meta tablemeta.TbMeta, rows []rowdata.RowData, start, n int) (string, []sqlbuilder.Bind) {
	end := start + n
	if end > len(rows) {
		end = len(rows)
	}
	cols := columnNames(meta)

	var valuesClauses []string
	var binds []sqlbuilder.Bind
	placeholderIdx := 1
	for _, row := range rows[start:end] {
		placeholders := make([]string, len(cols))
		for i, c := range cols {
			v, ok := row.After[c]
			if !ok {
				v = rowdata.Null()
			}
			placeholders[i] = b.Placeholder(placeholderIdx, c)
			binds = append(binds, sqlbuilder.Bind{Col: c, Value: v})
			placeholderIdx++
		}
		valuesClauses = append(valuesClauses, "("+strings.Join(placeholders, ", ")+")")
	}

	sql := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
		qSchema(meta.Schema), qTable(meta.Table), b.QuoteCols(cols), strings.Join(valuesClauses, ", "))
	sql += b.upsertClauseContinuing(meta, cols, placeholderIdx)
	return sql, binds
}

// BatchDeleteQuery builds "DELETE WHERE (id_cols) IN ((...),(...))".
func (b Builder) BatchDeleteQuery(meta tablemeta.TbMeta, rows []rowdata.RowData, start, n int) (string, []sqlbuilder.Bind) {
	end := start + n
	if end > len(rows) {
		end = len(rows)
	}
	var tuples []string
	var binds []sqlbuilder.Bind
	idx := 1
	for _, row := range rows[start:end] {
		placeholders := make([]string, len(meta.IDCols))
		for i, col := range meta.IDCols {
			v := row.Before[col]
			placeholders[i] = b.Placeholder(idx, col)
			binds = append(binds, sqlbuilder.Bind{Col: col, Value: v})
			idx++
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
	}
	sql := fmt.Sprintf("DELETE FROM %s.%s WHERE (%s) IN (%s)",
		qSchema(meta.Schema), qTable(meta.Table), b.QuoteCols(meta.IDCols), strings.Join(tuples, ", "))
	return sql, binds
}

// QueryInfo builds a single-row UPDATE or DELETE keyed by id_cols.
func (b Builder) QueryInfo(meta tablemeta.TbMeta, row rowdata.RowData) (string, []sqlbuilder.Bind) {
	switch row.Op {
	case rowdata.OpDelete:
		return b.deleteOne(meta, row)
	case rowdata.OpUpdate:
		return b.updateOne(meta, row)
	default:
		return b.InsertQuery(meta, row)
	}
}

func (b Builder) deleteOne(meta tablemeta.TbMeta, row rowdata.RowData) (string, []sqlbuilder.Bind) {
	where, binds := b.whereClause(meta, row.Before, 1)
	sql := fmt.Sprintf("DELETE FROM %s.%s WHERE %s", qSchema(meta.Schema), qTable(meta.Table), where)
	return sql, binds
}

func (b Builder) updateOne(meta tablemeta.TbMeta, row rowdata.RowData) (string, []sqlbuilder.Bind) {
	var sets []string
	var binds []sqlbuilder.Bind
	idx := 1
	for _, col := range meta.NonKeyColumns() {
		v, ok := row.After[col]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", b.Quote(col), b.Placeholder(idx, col)))
		binds = append(binds, sqlbuilder.Bind{Col: col, Value: v})
		idx++
	}
	where, whereBinds := b.whereClause(meta, row.Before, idx)
	binds = append(binds, whereBinds...)
	sql := fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s",
		qSchema(meta.Schema), qTable(meta.Table), strings.Join(sets, ", "), where)
	return sql, binds
}

func (b Builder) whereClause(meta tablemeta.TbMeta, before map[string]rowdata.ColValue, startIdx int) (string, []sqlbuilder.Bind) {
	var clauses []string
	var binds []sqlbuilder.Bind
	idx := startIdx
	for _, col := range meta.IDCols {
		clauses = append(clauses, fmt.Sprintf("%s = %s", b.Quote(col), b.Placeholder(idx, col)))
		binds = append(binds, sqlbuilder.Bind{Col: col, Value: before[col]})
		idx++
	}
	return strings.Join(clauses, " AND "), binds
}

// upsertClause appends ON CONFLICT (id_cols) DO UPDATE SET col=EXCLUDED.col
// for every non-key column, numbering no extra placeholders (EXCLUDED
// references the just-inserted row, so it needs none).
func (b Builder) upsertClause(meta tablemeta.TbMeta, insertedCols []string, _ int) string {
	return b.conflictClause(meta, insertedCols)
}

func (b Builder) upsertClauseContinuing(meta tablemeta.TbMeta, insertedCols []string, _ int) string {
	return b.conflictClause(meta, insertedCols)
}

func (b Builder) conflictClause(meta tablemeta.TbMeta, insertedCols []string) string {
	if len(meta.IDCols) == 0 {
		return ""
	}
	key := make(map[string]struct{}, len(meta.IDCols))
	for _, c := range meta.IDCols {
		key[c] = struct{}{}
	}
	var sets []string
	for _, c := range insertedCols {
		if _, isKey := key[c]; isKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", b.Quote(c), b.Quote(c)))
	}
	if len(sets) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", b.QuoteCols(meta.IDCols))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", b.QuoteCols(meta.IDCols), strings.Join(sets, ", "))
}

func columnNames(meta tablemeta.TbMeta) []string {
	out := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		out[i] = c.Name
	}
	return out
}

func qSchema(schema string) string {
	if schema == "" {
		return "public"
	}
	return `"` + schema + `"`
}

func qTable(table string) string { return `"` + table + `"` }

var _ sqlbuilder.Builder = Builder{}
