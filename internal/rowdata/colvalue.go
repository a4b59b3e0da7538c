// Package rowdata defines the wire-neutral row, DDL, and pipeline item types
// that flow from an Extractor through the queue to a Sinker.
package rowdata

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a ColValue.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUnsigned
	KindFloat
	KindString
	KindDecimal
	KindTime
	KindDate
	KindDateTime
	KindTimestamp
	KindJSON
	KindBlob
	KindNone
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUnsigned:
		return "unsigned"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDecimal:
		return "decimal"
	case KindTime:
		return "time"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTimestamp:
		return "timestamp"
	case KindJSON:
		return "json"
	case KindBlob:
		return "blob"
	case KindNone:
		return "none"
	default:
		return "unknown"
	}
}

// ColValue is a tagged column value. None is distinct from Null: None means
// "absent/unbound", used as the snapshot slice-start sentinel before the
// first slice has been read; Null means a SQL NULL.
type ColValue struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	Text   string // carries String/Decimal/Time/Date/DateTime/Timestamp textual form
	Bytes  []byte // carries Json/Blob
	Charset string
}

// Null returns the Null sentinel.
func Null() ColValue { return ColValue{Kind: KindNull} }

// None returns the None sentinel, used as an unbound slice-start value.
func None() ColValue { return ColValue{Kind: KindNone} }

// IsNone reports whether v is the None sentinel.
func (v ColValue) IsNone() bool { return v.Kind == KindNone }

// IsNull reports whether v is SQL NULL.
func (v ColValue) IsNull() bool { return v.Kind == KindNull }

// Compare orders two ColValues using each kind's native ordering: numeric for
// Int/Unsigned/Float, byte-wise for Blob/String-as-binary, lexical for text
// kinds. Compare is only meaningful between values of the same Kind. The
// sliced scan does not call it: it takes each new start value from the
// last row of the previous slice.
func (v ColValue) Compare(other ColValue) int {
	switch v.Kind {
	case KindInt:
		switch {
		case v.Int < other.Int:
			return -1
		case v.Int > other.Int:
			return 1
		default:
			return 0
		}
	case KindUnsigned:
		switch {
		case v.Uint < other.Uint:
			return -1
		case v.Uint > other.Uint:
			return 1
		default:
			return 0
		}
	case KindFloat:
		switch {
		case v.Float < other.Float:
			return -1
		case v.Float > other.Float:
			return 1
		default:
			return 0
		}
	case KindBlob:
		return compareBytes(v.Bytes, other.Bytes)
	default:
		return compareBytes([]byte(v.Text), []byte(other.Text))
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ParseColValue parses text — a persisted order_col value previously
// produced by ColValue.String() — back into a typed ColValue of kind, the
// inverse conversion a snapshot resume needs to seed SnapshotExtractor's
// StartAfter cursor. kind should come from the same column's current
// metadata, not be guessed from the text.
func ParseColValue(kind Kind, text string) (ColValue, error) {
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return ColValue{}, fmt.Errorf("parse int order_col value %q: %w", text, err)
		}
		return ColValue{Kind: KindInt, Int: n}, nil
	case KindUnsigned:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return ColValue{}, fmt.Errorf("parse unsigned order_col value %q: %w", text, err)
		}
		return ColValue{Kind: KindUnsigned, Uint: n}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return ColValue{}, fmt.Errorf("parse float order_col value %q: %w", text, err)
		}
		return ColValue{Kind: KindFloat, Float: f}, nil
	case KindBlob:
		b, err := hex.DecodeString(text)
		if err != nil {
			return ColValue{}, fmt.Errorf("parse blob order_col value %q: %w", text, err)
		}
		return ColValue{Kind: KindBlob, Bytes: b}, nil
	default:
		return ColValue{Kind: kind, Text: text}, nil
	}
}

func (v ColValue) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindNone:
		return "<none>"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUnsigned:
		return fmt.Sprintf("%d", v.Uint)
	case KindFloat:
		return fmt.Sprintf("%v", v.Float)
	case KindJSON:
		return fmt.Sprintf("%dB", len(v.Bytes))
	case KindBlob:
		return hex.EncodeToString(v.Bytes)
	default:
		return v.Text
	}
}
