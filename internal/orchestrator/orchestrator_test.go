package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dtpipe/dtpipe/internal/extractor"
	"github.com/dtpipe/dtpipe/internal/lifecycle"
	"github.com/dtpipe/dtpipe/internal/parallelizer"
	"github.com/dtpipe/dtpipe/internal/position"
	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/router"
	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// scriptedExtractor pushes a fixed sequence of items then returns.
type scriptedExtractor struct {
	extractor.Base
	items  []rowdata.DtItem
	closes int
}

func (s *scriptedExtractor) Close(ctx context.Context) error {
	s.closes++
	return nil
}

func (s *scriptedExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	for _, it := range s.items {
		if err := q.Push(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// recordingSinker counts DML rows and DDL statements applied, and tracks
// RefreshMeta/Close calls.
type recordingSinker struct {
	mu        sync.Mutex
	rows      []rowdata.RowData
	ddls      []rowdata.DdlData
	refreshed int
	closes    int
}

func (s *recordingSinker) SinkDML(ctx context.Context, rows []rowdata.RowData, batch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *recordingSinker) SinkDDL(ctx context.Context, ddls []rowdata.DdlData, batch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ddls = append(s.ddls, ddls...)
	return nil
}

func (s *recordingSinker) RefreshMeta(ctx context.Context, ddls []rowdata.DdlData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed++
	return nil
}

func (s *recordingSinker) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordingSinker) ID() string { return "test-sinker" }

func insertItem(table string, id int) rowdata.DtItem {
	return rowdata.NewRowItem(rowdata.RowData{
		Schema: "src",
		Table:  table,
		Op:     rowdata.OpInsert,
		After:  map[string]rowdata.ColValue{"id": {Kind: rowdata.KindInt, Int: int64(id)}},
	})
}

func ddlItem(table string) rowdata.DtItem {
	return rowdata.NewDdlItem(rowdata.DdlData{Schema: "src", Table: table, Query: "CREATE TABLE " + table + " (id int)"})
}

func newTestOrchestrator(t *testing.T, ex extractor.Extractor, sinker Sinker) *Orchestrator {
	t.Helper()
	q := queue.New(0, 0)
	shutdown := lifecycle.NewShutdownFlag()
	par := parallelizer.New(1, parallelizer.ModeSnapshot)
	rtr := router.New()
	rtr.AddTableRoute("src", "orders", "dst", "orders_v2")

	dir := t.TempDir()
	pos, err := position.Open(dir + "/pos")
	require.NoError(t, err)

	return New(ex, []Sinker{sinker}, par, q, shutdown, pos, rtr, zerolog.Nop())
}

func TestRunAppliesRowsAndDdlInOrder(t *testing.T) {
	ex := &scriptedExtractor{items: []rowdata.DtItem{
		ddlItem("orders"),
		insertItem("orders", 1),
		insertItem("orders", 2),
		rowdata.NewCommitItem(rowdata.Position{Kind: rowdata.PositionPostgresLSN, Coord: "0/1"}),
	}}
	sink := &recordingSinker{}
	orc := newTestOrchestrator(t, ex, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, orc.Run(ctx))

	require.Len(t, sink.ddls, 1)
	require.Len(t, sink.rows, 2)
	require.Equal(t, 1, sink.refreshed)
	require.Equal(t, "0/1", orc.Position.CDCCoordinate())
}

func TestRunRoutesTableAndSchemaNames(t *testing.T) {
	ex := &scriptedExtractor{items: []rowdata.DtItem{insertItem("orders", 1)}}
	sink := &recordingSinker{}
	orc := newTestOrchestrator(t, ex, sink)

	require.NoError(t, orc.Run(context.Background()))
	require.Len(t, sink.rows, 1)
	require.Equal(t, "dst", sink.rows[0].Schema)
	require.Equal(t, "orders_v2", sink.rows[0].Table)
}

func TestCloseTearsDownSinkersAndExtractorExactlyOnce(t *testing.T) {
	ex := &scriptedExtractor{}
	sink := &recordingSinker{}
	orc := newTestOrchestrator(t, ex, sink)

	require.NoError(t, orc.Close(context.Background()))
	require.NoError(t, orc.Close(context.Background()))
	require.Equal(t, 1, sink.closes)
	require.Equal(t, 1, ex.closes)
}
