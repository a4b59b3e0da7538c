// Package engineerr defines the engine's single structured error type,
// covering every failure kind the pipeline escalates through.
package engineerr

import "fmt"

// Kind tags the category of failure. Components return errors; the
// orchestrator is the single escalation point.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConfig: invalid configuration. Fatal, surfaced to caller.
	KindConfig
	// KindConnSetup: cannot connect. Retried by caller with backoff;
	// fatal after the retry limit.
	KindConnSetup
	// KindMetaNotFound: referenced object absent. Fatal for that table.
	KindMetaNotFound
	// KindExtractIo: transient source read error. Retry once; escalate.
	KindExtractIo
	// KindSinkExecute: destination statement failure. Batch path falls
	// back to serial; serial path escalates.
	KindSinkExecute
	// KindEncoding: value cannot be represented. Fatal; indicates schema
	// drift.
	KindEncoding
	// KindCancelled: shutdown observed. Clean termination, not an error
	// to the user.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnSetup:
		return "conn_setup"
	case KindMetaNotFound:
		return "meta_not_found"
	case KindExtractIo:
		return "extract_io"
	case KindSinkExecute:
		return "sink_execute"
	case KindEncoding:
		return "encoding"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the engine's one structured error type: {kind, schema?, table?,
// inner}. User-visible output is a single Error plus the log trail.
type Error struct {
	Kind   Kind
	Schema string
	Table  string
	Inner  error
}

func (e *Error) Error() string {
	loc := e.Schema
	if e.Table != "" {
		if loc != "" {
			loc += "."
		}
		loc += e.Table
	}
	if loc == "" {
		if e.Inner != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Inner)
		}
		return e.Kind.String()
	}
	if e.Inner != nil {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, loc, e.Inner)
	}
	return fmt.Sprintf("%s[%s]", e.Kind, loc)
}

func (e *Error) Unwrap() error { return e.Inner }

// New builds an Error with no wrapped cause.
func New(kind Kind, schema, table, msg string) *Error {
	return &Error{Kind: kind, Schema: schema, Table: table, Inner: fmt.Errorf("%s", msg)}
}

// Wrap builds an Error wrapping an existing error.
func Wrap(kind Kind, schema, table string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Schema: schema, Table: table, Inner: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return KindUnknown
	}
	return e.Kind
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }
