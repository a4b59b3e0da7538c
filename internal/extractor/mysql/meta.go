package mysql

import (
	"context"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// MetaFetcher implements tablemeta.Fetcher against MySQL's
// information_schema.
type MetaFetcher struct {
	DB *DB
}

// FetchTableMeta loads column list, primary-key id_cols, and — when the
// primary key is a single auto-increment-friendly numeric or binary
// column — an order_col for the sliced-scan algorithm.
func (f *MetaFetcher) FetchTableMeta(schema, table string) (tablemeta.TbMeta, error) {
	ctx := context.Background()

	rows, err := f.DB.Raw().QueryContext(ctx, `
		SELECT column_name, data_type, column_key
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return tablemeta.TbMeta{}, engineerr.Wrap(engineerr.KindConnSetup, schema, table, err)
	}
	defer rows.Close()

	var cols []tablemeta.Column
	var idCols []string
	typeMap := map[string]string{}
	for rows.Next() {
		var name, typ, key string
		if err := rows.Scan(&name, &typ, &key); err != nil {
			return tablemeta.TbMeta{}, engineerr.Wrap(engineerr.KindEncoding, schema, table, err)
		}
		cols = append(cols, tablemeta.Column{Name: name, Type: typ})
		typeMap[name] = typ
		if key == "PRI" {
			idCols = append(idCols, name)
		}
	}
	if err := rows.Err(); err != nil {
		return tablemeta.TbMeta{}, engineerr.Wrap(engineerr.KindConnSetup, schema, table, err)
	}
	if len(cols) == 0 {
		return tablemeta.TbMeta{}, engineerr.New(engineerr.KindMetaNotFound, schema, table, "table has no columns or does not exist")
	}

	meta := tablemeta.TbMeta{Schema: schema, Table: table, Columns: cols, IDCols: idCols, ColTypeMap: typeMap}
	if len(idCols) == 1 && isOrderableType(typeMap[idCols[0]]) {
		meta.OrderCol = idCols[0]
	}
	return meta, nil
}

func isOrderableType(dataType string) bool {
	switch dataType {
	case "tinyint", "smallint", "mediumint", "int", "bigint", "decimal", "binary", "varbinary":
		return true
	default:
		return false
	}
}

var _ tablemeta.Fetcher = (*MetaFetcher)(nil)
