package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/rs/zerolog"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

const standbyInterval = time.Second

// CDCSource implements extractor.CDCSource via PostgreSQL logical
// replication: one long-lived replication connection, pgoutput decoding,
// and a buffered channel the receive loop feeds so Next never blocks the
// wire-read goroutine.
type CDCSource struct {
	conn        *pgconn.PgConn
	logger      zerolog.Logger
	slotName    string
	publication string

	relations map[uint32]relationInfo
	items     chan itemOrErr
	confirmed pglogrepl.LSN
}

type relationInfo struct {
	schema, table string
	columns       []string
}

type itemOrErr struct {
	item rowdata.DtItem
	err  error
}

// NewCDCSource starts streaming from startLSN on the existing replication
// slot slotName; it does not create the slot.
func NewCDCSource(ctx context.Context, conn *pgconn.PgConn, slotName, publication string, startLSN pglogrepl.LSN, logger zerolog.Logger) (*CDCSource, error) {
	s := &CDCSource{
		conn:        conn,
		logger:      logger.With().Str("component", "postgres-cdc").Logger(),
		slotName:    slotName,
		publication: publication,
		relations:   make(map[uint32]relationInfo),
		items:       make(chan itemOrErr, 4096),
		confirmed:   startLSN,
	}

	pluginArgs := []string{
		"proto_version '1'",
		fmt.Sprintf("publication_names '%s'", publication),
	}
	if err := pglogrepl.StartReplication(ctx, conn, slotName, startLSN, pglogrepl.StartReplicationOptions{
		PluginArgs: pluginArgs,
	}); err != nil {
		return nil, fmt.Errorf("start replication: %w", err)
	}

	go s.receiveLoop(ctx)
	return s, nil
}

// Next implements extractor.CDCSource.
func (s *CDCSource) Next(ctx context.Context) (rowdata.DtItem, error) {
	select {
	case <-ctx.Done():
		return rowdata.DtItem{}, ctx.Err()
	case next, ok := <-s.items:
		if !ok {
			return rowdata.DtItem{}, io.EOF
		}
		return next.item, next.err
	}
}

// ConfirmPosition sends a standby status update acknowledging pos as
// flushed.
func (s *CDCSource) ConfirmPosition(ctx context.Context, pos rowdata.Position) error {
	lsn, err := pglogrepl.ParseLSN(pos.Coord)
	if err != nil {
		return err
	}
	s.confirmed = lsn
	return pglogrepl.SendStandbyStatusUpdate(ctx, s.conn, pglogrepl.StandbyStatusUpdate{
		WALWritePosition: lsn,
		WALFlushPosition: lsn,
		WALApplyPosition: lsn,
	})
}

func (s *CDCSource) receiveLoop(ctx context.Context) {
	defer close(s.items)
	ticker := time.NewTicker(standbyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = pglogrepl.SendStandbyStatusUpdate(ctx, s.conn, pglogrepl.StandbyStatusUpdate{
				WALWritePosition: s.confirmed,
			})
		default:
		}

		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		msg, err := s.conn.ReceiveMessage(rctx)
		cancel()
		if err != nil {
			if pgconn.Timeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.emit(rowdata.DtItem{}, err)
			return
		}

		switch m := msg.(type) {
		case *pgproto3.CopyData:
			if err := s.handleCopyData(m.Data); err != nil {
				s.emit(rowdata.DtItem{}, err)
				return
			}
		case *pgproto3.ErrorResponse:
			s.emit(rowdata.DtItem{}, errors.New(m.Message))
			return
		}
	}
}

func (s *CDCSource) handleCopyData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case pglogrepl.PrimaryKeepaliveMessageByteID:
		ka, err := pglogrepl.ParsePrimaryKeepaliveMessage(data[1:])
		if err != nil {
			return err
		}
		if ka.ReplyRequested {
			s.confirmed = ka.ServerWALEnd
		}
		return nil
	case pglogrepl.XLogDataByteID:
		xld, err := pglogrepl.ParseXLogData(data[1:])
		if err != nil {
			return err
		}
		return s.decodeWAL(xld)
	}
	return nil
}

func (s *CDCSource) decodeWAL(xld pglogrepl.XLogData) error {
	msg, err := pglogrepl.Parse(xld.WALData)
	if err != nil {
		return err
	}
	pos := rowdata.Position{Kind: rowdata.PositionPostgresLSN, Coord: xld.WALStart.String()}

	switch m := msg.(type) {
	case *pglogrepl.RelationMessage:
		cols := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			cols[i] = c.Name
		}
		s.relations[m.RelationID] = relationInfo{schema: m.Namespace, table: m.RelationName, columns: cols}
		return nil
	case *pglogrepl.BeginMessage:
		return nil
	case *pglogrepl.CommitMessage:
		s.emit(rowdata.NewCommitItem(pos), nil)
		return nil
	case *pglogrepl.InsertMessage:
		rel, ok := s.relations[m.RelationID]
		if !ok {
			return nil
		}
		row := rowdata.RowData{Schema: rel.schema, Table: rel.table, Op: rowdata.OpInsert,
			After: decodeTuple(rel.columns, m.Tuple), Position: pos}
		s.emit(rowdata.NewRowItem(row), nil)
		return nil
	case *pglogrepl.UpdateMessage:
		rel, ok := s.relations[m.RelationID]
		if !ok {
			return nil
		}
		before := decodeTuple(rel.columns, m.OldTuple)
		after := decodeTuple(rel.columns, m.NewTuple)
		if len(before) == 0 {
			before = after
		}
		row := rowdata.RowData{Schema: rel.schema, Table: rel.table, Op: rowdata.OpUpdate,
			Before: before, After: after, Position: pos}
		s.emit(rowdata.NewRowItem(row), nil)
		return nil
	case *pglogrepl.DeleteMessage:
		rel, ok := s.relations[m.RelationID]
		if !ok {
			return nil
		}
		row := rowdata.RowData{Schema: rel.schema, Table: rel.table, Op: rowdata.OpDelete,
			Before: decodeTuple(rel.columns, m.OldTuple), Position: pos}
		s.emit(rowdata.NewRowItem(row), nil)
		return nil
	}
	return nil
}

func decodeTuple(cols []string, tuple *pglogrepl.TupleData) map[string]rowdata.ColValue {
	if tuple == nil {
		return nil
	}
	out := make(map[string]rowdata.ColValue, len(tuple.Columns))
	for i, col := range tuple.Columns {
		if i >= len(cols) {
			break
		}
		switch col.DataType {
		case 'n':
			out[cols[i]] = rowdata.Null()
		case 'u':
			out[cols[i]] = rowdata.None()
		default:
			out[cols[i]] = rowdata.ColValue{Kind: rowdata.KindString, Text: string(col.Data)}
		}
	}
	return out
}

func (s *CDCSource) emit(item rowdata.DtItem, err error) {
	s.items <- itemOrErr{item: item, err: err}
}
