// Package sinker applies RowData/DdlData to the destination: batches with
// upsert-on-conflict, falling back to a serial per-row path on batch
// failure or on mixed/unsupported operation sets.
package sinker

import (
	"context"
	"sync"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// Sinker is the capability set every sinker implements — default no-op
// bodies let a dialect override only what it needs, mirroring the source
// connector library's trait-with-defaults shape. Close must be idempotent.
type Sinker interface {
	SinkDML(ctx context.Context, rows []rowdata.RowData, batch bool) error
	SinkDDL(ctx context.Context, ddls []rowdata.DdlData, batch bool) error
	SinkRaw(ctx context.Context, items []rowdata.DtItem, batch bool) error
	RefreshMeta(ctx context.Context, ddls []rowdata.DdlData) error
	Close(ctx context.Context) error
	ID() string
}

// Base embeds into concrete sinkers, supplying no-op defaults and
// once-only Close semantics: an embedder's Close passes its teardown to
// CloseOnce.
type Base struct {
	closeOnce sync.Once
}

func (*Base) SinkRaw(ctx context.Context, items []rowdata.DtItem, batch bool) error { return nil }
func (*Base) RefreshMeta(ctx context.Context, ddls []rowdata.DdlData) error         { return nil }
func (*Base) ID() string                                                           { return "" }

// CloseOnce runs closeFn at most once across repeated Close calls.
func (b *Base) CloseOnce(closeFn func() error) error {
	var err error
	b.closeOnce.Do(func() { err = closeFn() })
	return err
}

// Bind converts a ColValue to the value a database driver expects for a
// positional parameter.
func Bind(v rowdata.ColValue) any {
	switch v.Kind {
	case rowdata.KindNull, rowdata.KindNone:
		return nil
	case rowdata.KindBool:
		return v.Bool
	case rowdata.KindInt:
		return v.Int
	case rowdata.KindUnsigned:
		return v.Uint
	case rowdata.KindFloat:
		return v.Float
	case rowdata.KindJSON, rowdata.KindBlob:
		return v.Bytes
	default:
		return v.Text
	}
}
