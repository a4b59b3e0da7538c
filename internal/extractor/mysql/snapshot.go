package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// SnapshotSource implements extractor.SnapshotSource for MySQL.
type SnapshotSource struct {
	DB *DB
}

func quoteIdent(s string) string { return "`" + s + "`" }

func qualifiedName(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// FetchSlice issues the first-slice or keyset-continuation query depending
// on whether start is the None sentinel.
func (s *SnapshotSource) FetchSlice(ctx context.Context, meta tablemeta.TbMeta, start rowdata.ColValue, sliceSize int) ([]rowdata.RowData, error) {
	qn := qualifiedName(meta.Schema, meta.Table)
	orderCol := quoteIdent(meta.OrderCol)

	var rows *sql.Rows
	var err error
	if start.IsNone() {
		query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC LIMIT ?", qn, orderCol)
		rows, err = s.DB.Raw().QueryContext(ctx, query, sliceSize)
	} else {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s > ? ORDER BY %s ASC LIMIT ?", qn, orderCol, orderCol)
		rows, err = s.DB.Raw().QueryContext(ctx, query, bindStart(start), sliceSize)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows, meta)
}

// FetchAll streams the whole table via a single cursor; used only when the
// table has no order_col.
func (s *SnapshotSource) FetchAll(ctx context.Context, meta tablemeta.TbMeta, emit func(rowdata.RowData) error) error {
	qn := qualifiedName(meta.Schema, meta.Table)
	rows, err := s.DB.Raw().QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", qn))
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		row, err := scanOneRow(rows, meta, cols)
		if err != nil {
			return err
		}
		if err := emit(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanRows(rows *sql.Rows, meta tablemeta.TbMeta) ([]rowdata.RowData, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []rowdata.RowData
	for rows.Next() {
		row, err := scanOneRow(rows, meta, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanOneRow(rows *sql.Rows, meta tablemeta.TbMeta, cols []string) (rowdata.RowData, error) {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return rowdata.RowData{}, err
	}
	after := make(map[string]rowdata.ColValue, len(cols))
	for i, name := range cols {
		after[name] = toColValue(meta.ColTypeMap[name], raw[i])
	}
	return rowdata.RowData{Schema: meta.Schema, Table: meta.Table, Op: rowdata.OpInsert, After: after}, nil
}

func toColValue(dialectType string, v any) rowdata.ColValue {
	if v == nil {
		return rowdata.Null()
	}
	kind := tablemeta.DefaultKindFor(dialectType)
	switch b := v.(type) {
	case []byte:
		switch kind {
		case rowdata.KindBlob, rowdata.KindJSON:
			return rowdata.ColValue{Kind: kind, Bytes: b}
		default:
			return rowdata.ColValue{Kind: kind, Text: string(b)}
		}
	case int64:
		if kind == rowdata.KindInt {
			return rowdata.ColValue{Kind: rowdata.KindInt, Int: b}
		}
	case float64:
		if kind == rowdata.KindFloat {
			return rowdata.ColValue{Kind: rowdata.KindFloat, Float: b}
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
