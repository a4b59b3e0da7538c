package rowdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowDataValidate(t *testing.T) {
	col := ColValue{Kind: KindInt, Int: 1}
	tests := []struct {
		name    string
		row     RowData
		wantErr bool
	}{
		{"valid insert", RowData{Op: OpInsert, After: map[string]ColValue{"id": col}}, false},
		{"insert with before image", RowData{Op: OpInsert, Before: map[string]ColValue{"id": col}, After: map[string]ColValue{"id": col}}, true},
		{"insert with empty after", RowData{Op: OpInsert, After: map[string]ColValue{}}, true},
		{"valid delete", RowData{Op: OpDelete, Before: map[string]ColValue{"id": col}}, false},
		{"delete with after image", RowData{Op: OpDelete, Before: map[string]ColValue{"id": col}, After: map[string]ColValue{"id": col}}, true},
		{"valid update", RowData{Op: OpUpdate, Before: map[string]ColValue{"id": col}, After: map[string]ColValue{"id": col}}, false},
		{"update column count mismatch", RowData{Op: OpUpdate, Before: map[string]ColValue{"id": col}, After: map[string]ColValue{"id": col, "name": col}}, true},
		{"update column set mismatch", RowData{Op: OpUpdate, Before: map[string]ColValue{"id": col}, After: map[string]ColValue{"name": col}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.row.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRowDataQualifiedName(t *testing.T) {
	tests := []struct {
		schema, table, want string
	}{
		{"public", "orders", "public.orders"},
		{"", "orders", "orders"},
	}
	for _, tt := range tests {
		r := RowData{Schema: tt.schema, Table: tt.table}
		require.Equal(t, tt.want, r.QualifiedName())
	}
}

func TestRowOpString(t *testing.T) {
	tests := []struct {
		op   RowOp
		want string
	}{
		{OpInsert, "insert"},
		{OpUpdate, "update"},
		{OpDelete, "delete"},
		{RowOp(99), "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.op.String())
	}
}
