package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// SnapshotSource implements extractor.SnapshotSource: the two sliced-scan
// SQL shapes plus a single-cursor fallback, against a pgxpool.Pool.
type SnapshotSource struct {
	Pool *Pool
}

func quoteIdent(s string) string { return `"` + s + `"` }

func qualifiedName(schema, table string) string {
	if schema == "" {
		schema = "public"
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// FetchSlice issues the first-slice or keyset-continuation query depending
// on whether start is the None sentinel.
func (s *SnapshotSource) FetchSlice(ctx context.Context, meta tablemeta.TbMeta, start rowdata.ColValue, sliceSize int) ([]rowdata.RowData, error) {
	qn := qualifiedName(meta.Schema, meta.Table)
	orderCol := quoteIdent(meta.OrderCol)

	var rows pgx.Rows
	var err error
	if start.IsNone() {
		sql := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC LIMIT $1", qn, orderCol)
		rows, err = s.Pool.Raw().Query(ctx, sql, sliceSize)
	} else {
		sql := fmt.Sprintf("SELECT * FROM %s WHERE %s > $1 ORDER BY %s ASC LIMIT $2", qn, orderCol, orderCol)
		rows, err = s.Pool.Raw().Query(ctx, sql, bindStart(start), sliceSize)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRows(rows, meta)
}

// FetchAll streams the whole table via a single cursor; used only when the
// table has no order_col.
func (s *SnapshotSource) FetchAll(ctx context.Context, meta tablemeta.TbMeta, emit func(rowdata.RowData) error) error {
	qn := qualifiedName(meta.Schema, meta.Table)
	rows, err := s.Pool.Raw().Query(ctx, fmt.Sprintf("SELECT * FROM %s", qn))
	if err != nil {
		return err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		row := valuesToRow(meta, fields, vals)
		if err := emit(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func collectRows(rows pgx.Rows, meta tablemeta.TbMeta) ([]rowdata.RowData, error) {
	fields := rows.FieldDescriptions()
	var out []rowdata.RowData
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, valuesToRow(meta, fields, vals))
	}
	return out, rows.Err()
}

func valuesToRow(meta tablemeta.TbMeta, fields []pgx.FieldDescription, vals []any) rowdata.RowData {
	after := make(map[string]rowdata.ColValue, len(vals))
	for i, v := range vals {
		name := fields[i].Name
		after[name] = toColValue(meta.ColTypeMap[name], v)
	}
	return rowdata.RowData{
		Schema: meta.Schema,
		Table:  meta.Table,
		Op:     rowdata.OpInsert,
		After:  after,
	}
}

func toColValue(dialectType string, v any) rowdata.ColValue {
	if v == nil {
		return rowdata.Null()
	}
	kind := tablemeta.DefaultKindFor(dialectType)
	switch kind {
	case rowdata.KindInt:
		switch n := v.(type) {
		case int64:
			return rowdata.ColValue{Kind: rowdata.KindInt, Int: n}
		case int32:
			return rowdata.ColValue{Kind: rowdata.KindInt, Int: int64(n)}
		}
	case rowdata.KindFloat:
		if f, ok := v.(float64); ok {
			return rowdata.ColValue{Kind: rowdata.KindFloat, Float: f}
		}
	case rowdata.KindBool:
		if b, ok := v.(bool); ok {
			return rowdata.ColValue{Kind: rowdata.KindBool, Bool: b}
		}
	case rowdata.KindBlob:
		if b, ok := v.([]byte); ok {
			return rowdata.ColValue{Kind: rowdata.KindBlob, Bytes: b}
		}
	case rowdata.KindJSON:
		if b, ok := v.([]byte); ok {
			return rowdata.ColValue{Kind: rowdata.KindJSON, Bytes: b}
		}
	}
	return rowdata.ColValue{Kind: kind, Text: fmt.Sprintf("%v", v)}
}

func bindStart(v rowdata.ColValue) any {
	switch v.Kind {
	case rowdata.KindInt:
		return v.Int
	case rowdata.KindUnsigned:
		return v.Uint
	case rowdata.KindFloat:
		return v.Float
	case rowdata.KindBlob:
		return v.Bytes
	default:
		return v.Text
	}
}
