package mysql

import (
	"context"
	"fmt"

	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
)

// StructFetcher implements sqlbuilder.Fetcher for MySQL via SHOW CREATE
// TABLE / SHOW CREATE DATABASE.
type StructFetcher struct {
	DB *DB
}

// FetchVersion reports the connected server's version string.
func (f *StructFetcher) FetchVersion() (string, error) {
	var version string
	err := f.DB.Raw().QueryRowContext(context.Background(), "SELECT VERSION()").Scan(&version)
	return version, err
}

// GetCreateDatabaseStatement returns the CREATE DATABASE statement for schema.
func (f *StructFetcher) GetCreateDatabaseStatement(schema string) (rowdata.Statement, error) {
	var name, stmt string
	err := f.DB.Raw().QueryRowContext(context.Background(),
		fmt.Sprintf("SHOW CREATE DATABASE `%s`", schema)).Scan(&name, &stmt)
	if err != nil {
		return rowdata.Statement{}, err
	}
	return rowdata.Statement{Kind: rowdata.DdlCreateDatabase, Text: stmt}, nil
}

// GetCreateTableStatements returns one CREATE TABLE statement per table in
// schema, optionally filtered to names starting with prefix.
func (f *StructFetcher) GetCreateTableStatements(schema, prefix string) ([]rowdata.Statement, error) {
	ctx := context.Background()
	rows, err := f.DB.Raw().QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = ?", schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if prefix == "" || containsPrefix(name, prefix) {
			tables = append(tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]rowdata.Statement, 0, len(tables))
	for _, t := range tables {
		var name, stmt string
		if err := f.DB.Raw().QueryRowContext(ctx,
			fmt.Sprintf("SHOW CREATE TABLE `%s`.`%s`", schema, t)).Scan(&name, &stmt); err != nil {
			return nil, err
		}
		out = append(out, rowdata.Statement{Kind: rowdata.DdlCreateTable, Text: stmt})
	}
	return out, nil
}

func containsPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

var _ sqlbuilder.Fetcher = (*StructFetcher)(nil)
