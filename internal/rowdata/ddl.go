package rowdata

// DdlType classifies a DDL statement for routing/logging purposes. The
// structural fetchers that populate this (out of core scope — we only
// depend on their output) may leave it Unknown.
type DdlType uint8

const (
	DdlUnknown DdlType = iota
	DdlCreateDatabase
	DdlCreateTable
	DdlAlterTable
	DdlDropTable
)

// Statement is the parsed structured form of a DDL statement, when a
// fetcher produces one instead of (or alongside) raw SQL text. The core
// engine treats it as opaque payload it passes through to the sinker.
type Statement struct {
	Kind DdlType
	Text string
}

// DdlData carries one schema-change event. Either Query or Statement must
// be present.
type DdlData struct {
	Schema    string
	Table     string // optional: empty for database-level statements
	Query     string
	Statement *Statement
	DdlType   DdlType
}

// Validate checks that at least one payload form is present.
func (d DdlData) Validate() error {
	if d.Query == "" && d.Statement == nil {
		return errInvariant("ddl data has neither query nor statement")
	}
	return nil
}
