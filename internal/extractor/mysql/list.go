package mysql

import "context"

// TableRef names one base table to snapshot.
type TableRef struct {
	Schema string
	Table  string
}

// ListTables returns every base table in schema.
func ListTables(ctx context.Context, db *DB, schema string) ([]TableRef, error) {
	rows, err := db.Raw().QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableRef
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, TableRef{Schema: schema, Table: name})
	}
	return out, rows.Err()
}
