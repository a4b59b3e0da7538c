package postgres

import (
	"context"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// MetaFetcher implements tablemeta.Fetcher against Postgres system catalogs.
type MetaFetcher struct {
	Pool *Pool
}

// FetchTableMeta loads column list, primary-key id_cols, and — when the
// primary key is a single strictly-monotone numeric or binary column — an
// order_col usable by the sliced-scan snapshot algorithm.
func (f *MetaFetcher) FetchTableMeta(schema, table string) (tablemeta.TbMeta, error) {
	ctx := context.Background()
	if schema == "" {
		schema = "public"
	}

	rows, err := f.Pool.Raw().Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return tablemeta.TbMeta{}, engineerr.Wrap(engineerr.KindConnSetup, schema, table, err)
	}
	defer rows.Close()

	var cols []tablemeta.Column
	typeMap := map[string]string{}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return tablemeta.TbMeta{}, engineerr.Wrap(engineerr.KindEncoding, schema, table, err)
		}
		cols = append(cols, tablemeta.Column{Name: name, Type: typ})
		typeMap[name] = typ
	}
	if err := rows.Err(); err != nil {
		return tablemeta.TbMeta{}, engineerr.Wrap(engineerr.KindConnSetup, schema, table, err)
	}
	if len(cols) == 0 {
		return tablemeta.TbMeta{}, engineerr.New(engineerr.KindMetaNotFound, schema, table, "table has no columns or does not exist")
	}

	idCols, err := f.fetchPrimaryKey(ctx, schema, table)
	if err != nil {
		return tablemeta.TbMeta{}, err
	}

	meta := tablemeta.TbMeta{
		Schema:     schema,
		Table:      table,
		Columns:    cols,
		IDCols:     idCols,
		ColTypeMap: typeMap,
	}
	if len(idCols) == 1 {
		if t := typeMap[idCols[0]]; isOrderableType(t) {
			meta.OrderCol = idCols[0]
		}
	}
	return meta, nil
}

func (f *MetaFetcher) fetchPrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := f.Pool.Raw().Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE i.indisprimary AND n.nspname = $1 AND c.relname = $2
		ORDER BY array_position(i.indkey, a.attnum)`, schema, table)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindConnSetup, schema, table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, engineerr.Wrap(engineerr.KindEncoding, schema, table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func isOrderableType(dataType string) bool {
	switch dataType {
	case "smallint", "integer", "bigint", "numeric", "bytea", "uuid":
		return true
	default:
		return false
	}
}

var _ tablemeta.Fetcher = (*MetaFetcher)(nil)
