package postgres

import (
	"context"
	"os/exec"
	"strings"

	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
)

// StructFetcher implements sqlbuilder.Fetcher for Postgres by shelling out
// to pg_dump --schema-only. Structural fetcher internals are out of core
// scope; this exists only to give the structure extractor a real output to
// emit.
type StructFetcher struct {
	DSN  string
	Pool *Pool
}

// FetchVersion reports the connected server's version string.
func (f *StructFetcher) FetchVersion() (string, error) {
	var version string
	err := f.Pool.Raw().QueryRow(context.Background(), "SHOW server_version").Scan(&version)
	return version, err
}

// GetCreateDatabaseStatement returns a CREATE SCHEMA statement for schema
// (Postgres has no cross-cluster CREATE DATABASE equivalent worth
// replaying; schema creation is the practical analogue).
func (f *StructFetcher) GetCreateDatabaseStatement(schema string) (rowdata.Statement, error) {
	return rowdata.Statement{
		Kind: rowdata.DdlCreateDatabase,
		Text: "CREATE SCHEMA IF NOT EXISTS " + quoteIdent(schema),
	}, nil
}

// GetCreateTableStatements dumps schema-only DDL for every table in schema
// via pg_dump, splitting it into one Statement per CREATE TABLE.
func (f *StructFetcher) GetCreateTableStatements(schema, prefix string) ([]rowdata.Statement, error) {
	cmd := exec.Command("pg_dump", f.DSN,
		"--schema-only", "--no-owner", "--no-privileges",
		"--schema="+schema)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return splitCreateTableStatements(string(out), prefix), nil
}

// splitCreateTableStatements extracts each "CREATE TABLE ... ;" block from
// a pg_dump schema-only output, ignoring comments and non-table statements.
func splitCreateTableStatements(dump, prefix string) []rowdata.Statement {
	var out []rowdata.Statement
	var current strings.Builder
	inTable := false
	for _, line := range strings.Split(dump, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(trimmed), "CREATE TABLE") {
			inTable = true
			current.Reset()
		}
		if inTable {
			current.WriteString(line)
			current.WriteByte('\n')
			if strings.HasSuffix(trimmed, ");") {
				inTable = false
				stmt := current.String()
				if prefix == "" || strings.Contains(stmt, prefix) {
					out = append(out, rowdata.Statement{Kind: rowdata.DdlCreateTable, Text: stmt})
				}
			}
		}
	}
	return out
}

var _ sqlbuilder.Fetcher = (*StructFetcher)(nil)
