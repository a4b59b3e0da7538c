// Package engine wires a config.Config into a runnable orchestrator.Orchestrator:
// it resolves dialects to concrete extractor/sinker/meta implementations and
// connects the source/destination pools before handing them to an
// orchestrator.Orchestrator.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dtpipe/dtpipe/internal/config"
	"github.com/dtpipe/dtpipe/internal/extractor"
	extmysql "github.com/dtpipe/dtpipe/internal/extractor/mysql"
	extpg "github.com/dtpipe/dtpipe/internal/extractor/postgres"
	"github.com/dtpipe/dtpipe/internal/lifecycle"
	"github.com/dtpipe/dtpipe/internal/orchestrator"
	"github.com/dtpipe/dtpipe/internal/parallelizer"
	"github.com/dtpipe/dtpipe/internal/position"
	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/router"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	sinkmysql "github.com/dtpipe/dtpipe/internal/sinker/mysql"
	sinkpg "github.com/dtpipe/dtpipe/internal/sinker/postgres"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// queueCapItems bounds the transfer queue on item count; byte cap is left
// unbounded (0) since row width varies too much across tables to budget
// usefully at this layer.
const queueCapItems = 20000

// destination bundles the destination-side handles every run needs: one
// sinker per parallel slot and a teardown func for the underlying pool.
type destination struct {
	sinkers []orchestrator.Sinker
	closeFn func() error
}

// Engine holds the configuration and logger a Run* method builds from. Each
// Run* method opens its own connections and closes them before it returns.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New prepares an Engine for cfg; it does not connect until a Run* method
// is called.
func New(cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger.With().Str("component", "engine").Logger()}
}

// RunSnapshot performs schema copy followed by the full initial data copy,
// across Snapshot.Workers parallel table extractors, and returns only
// after every table has drained into the destination.
func (e *Engine) RunSnapshot(ctx context.Context) error {
	pos, err := position.Open(e.cfg.PositionFile)
	if err != nil {
		return fmt.Errorf("open position file: %w", err)
	}

	dst, err := e.connectDestination(ctx)
	if err != nil {
		return err
	}
	defer dst.closeFn()

	ex, srcClose, err := e.buildSnapshotExtractor(ctx, pos)
	if err != nil {
		return err
	}
	defer srcClose()

	q := queue.New(queueCapItems, 0)
	shutdown := lifecycle.NewShutdownFlag()
	par := parallelizer.New(e.cfg.Snapshot.ParallelSize, parallelizer.ModeSnapshot)
	rtr := router.New()

	orc := orchestrator.New(ex, dst.sinkers, par, q, shutdown, pos, rtr, e.logger)
	defer orc.Close(ctx)

	return orc.Run(ctx)
}

// RunCDC streams changes from a Postgres source, applying them in
// ModeSerial so global source order is preserved. Any other source dialect
// returns an error without connecting.
func (e *Engine) RunCDC(ctx context.Context, startLSN string) error {
	if e.cfg.Source.Dialect != config.DialectPostgres {
		return fmt.Errorf("CDC streaming is only wired for a postgres source, got %q", e.cfg.Source.Dialect)
	}

	pos, err := position.Open(e.cfg.PositionFile)
	if err != nil {
		return fmt.Errorf("open position file: %w", err)
	}
	if startLSN == "" {
		if coord := pos.CDCCoordinate(); coord != "" {
			startLSN = coord
		}
	}
	lsn, err := pglogrepl.ParseLSN(startLSN)
	if err != nil {
		lsn = 0
	}

	dst, err := e.connectDestination(ctx)
	if err != nil {
		return err
	}
	defer dst.closeFn()

	replConn, err := pgconn.Connect(ctx, e.cfg.Source.ReplicationDSN())
	if err != nil {
		return fmt.Errorf("replication connection: %w", err)
	}
	defer replConn.Close(ctx)

	src, err := extpg.NewCDCSource(ctx, replConn, e.cfg.Replication.SlotName, e.cfg.Replication.Publication, lsn, e.logger)
	if err != nil {
		return fmt.Errorf("start replication: %w", err)
	}

	ex := &extractor.CDCExtractor{Source: src, Shutdown: lifecycle.NewShutdownFlag(), Logger: e.logger}

	q := queue.New(queueCapItems, 0)
	shutdown := lifecycle.NewShutdownFlag()
	par := parallelizer.New(1, parallelizer.ModeSerial)
	rtr := router.New()

	orc := orchestrator.New(ex, dst.sinkers, par, q, shutdown, pos, rtr, e.logger)
	defer orc.Close(ctx)

	return orc.Run(ctx)
}

func (e *Engine) connectDestination(ctx context.Context) (*destination, error) {
	switch e.cfg.Dest.Dialect {
	case config.DialectPostgres:
		pool, err := pgxpool.New(ctx, e.cfg.Dest.DSN())
		if err != nil {
			return nil, fmt.Errorf("destination pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("destination ping: %w", err)
		}
		wrapped := extpg.NewPool(pool)
		metaCache := tablemeta.New(&extpg.MetaFetcher{Pool: wrapped})

		sinkers := make([]orchestrator.Sinker, e.cfg.Snapshot.ParallelSize)
		for i := range sinkers {
			sinkers[i] = sinkpg.New(wrapped, metaCache, e.cfg.Snapshot.BatchSize, fmt.Sprintf("pg-sinker-%d", i), e.logger)
		}
		return &destination{
			sinkers: sinkers,
			closeFn: func() error { pool.Close(); return nil },
		}, nil

	case config.DialectMySQL:
		db, err := extmysql.Open(e.cfg.Dest.DSN())
		if err != nil {
			return nil, fmt.Errorf("destination db: %w", err)
		}
		if err := db.Raw().PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("destination ping: %w", err)
		}
		metaCache := tablemeta.New(&extmysql.MetaFetcher{DB: db})

		sinkers := make([]orchestrator.Sinker, e.cfg.Snapshot.ParallelSize)
		for i := range sinkers {
			sinkers[i] = sinkmysql.New(db, metaCache, e.cfg.Snapshot.BatchSize, fmt.Sprintf("mysql-sinker-%d", i), e.logger)
		}
		return &destination{
			sinkers: sinkers,
			closeFn: func() error { return db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported destination dialect %q", e.cfg.Dest.Dialect)
	}
}

// buildSnapshotExtractor builds a structure extractor followed by one
// SnapshotExtractor per table, fanned out under Snapshot.Workers. The two
// run as a Sequence, not as peers of one FanOut: the structure extractor
// must finish pushing every CREATE DATABASE/CREATE TABLE item before any
// snapshot extractor pushes its first row, or the consumer could apply an
// INSERT against a table the destination doesn't have yet.
func (e *Engine) buildSnapshotExtractor(ctx context.Context, pos *position.Store) (extractor.Extractor, func() error, error) {
	// flushMu serializes position-file writes from concurrent table workers.
	var flushMu sync.Mutex
	switch e.cfg.Source.Dialect {
	case config.DialectPostgres:
		pool, err := pgxpool.New(ctx, e.cfg.Source.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("source pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("source ping: %w", err)
		}
		wrapped := extpg.NewPool(pool)
		schema := e.cfg.Source.EffectiveSchema()
		metaFetcher := &extpg.MetaFetcher{Pool: wrapped}
		srcMeta := tablemeta.New(metaFetcher)

		tables, err := extpg.ListTables(ctx, wrapped, schema)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("list source tables: %w", err)
		}

		structFetcher := &extpg.StructFetcher{DSN: e.cfg.Source.DSN(), Pool: wrapped}
		structureEx := &extractor.StructureExtractor{Fetcher: structFetcher, Schema: schema}
		snapSource := &extpg.SnapshotSource{Pool: wrapped}
		var snapshotExs []extractor.Extractor
		for _, t := range tables {
			meta, err := srcMeta.Get(t.Schema, t.Table)
			if err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("fetch meta for %s.%s: %w", t.Schema, t.Table, err)
			}
			table := t
			snapshotExs = append(snapshotExs, &extractor.SnapshotExtractor{
				Source:     snapSource,
				Meta:       meta,
				SliceSize:  e.cfg.Snapshot.SliceSize,
				Shutdown:   lifecycle.NewShutdownFlag(),
				Logger:     e.logger,
				StartAfter: e.resumeStart(pos, meta),
				OnSlicePosition: func(v rowdata.ColValue) {
					pos.SetTableOrderValue(table.Schema, table.Table, v.String())
					flushMu.Lock()
					defer flushMu.Unlock()
					if err := pos.Flush(); err != nil {
						e.logger.Warn().Err(err).Msg("position flush failed")
					}
				},
			})
		}
		seq := &extractor.Sequence{Extractors: []extractor.Extractor{
			structureEx,
			&extractor.FanOut{Extractors: snapshotExs, Workers: e.cfg.Snapshot.Workers},
		}}
		return seq, func() error { pool.Close(); return nil }, nil

	case config.DialectMySQL:
		db, err := extmysql.Open(e.cfg.Source.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("source db: %w", err)
		}
		if err := db.Raw().PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("source ping: %w", err)
		}
		schema := e.cfg.Source.EffectiveSchema()
		metaFetcher := &extmysql.MetaFetcher{DB: db}
		srcMeta := tablemeta.New(metaFetcher)

		tables, err := extmysql.ListTables(ctx, db, schema)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("list source tables: %w", err)
		}

		structFetcher := &extmysql.StructFetcher{DB: db}
		structureEx := &extractor.StructureExtractor{Fetcher: structFetcher, Schema: schema}
		snapSource := &extmysql.SnapshotSource{DB: db}
		var snapshotExs []extractor.Extractor
		for _, t := range tables {
			meta, err := srcMeta.Get(t.Schema, t.Table)
			if err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("fetch meta for %s.%s: %w", t.Schema, t.Table, err)
			}
			table := t
			snapshotExs = append(snapshotExs, &extractor.SnapshotExtractor{
				Source:     snapSource,
				Meta:       meta,
				SliceSize:  e.cfg.Snapshot.SliceSize,
				Shutdown:   lifecycle.NewShutdownFlag(),
				Logger:     e.logger,
				StartAfter: e.resumeStart(pos, meta),
				OnSlicePosition: func(v rowdata.ColValue) {
					pos.SetTableOrderValue(table.Schema, table.Table, v.String())
					flushMu.Lock()
					defer flushMu.Unlock()
					if err := pos.Flush(); err != nil {
						e.logger.Warn().Err(err).Msg("position flush failed")
					}
				},
			})
		}
		seq := &extractor.Sequence{Extractors: []extractor.Extractor{
			structureEx,
			&extractor.FanOut{Extractors: snapshotExs, Workers: e.cfg.Snapshot.Workers},
		}}
		return seq, func() error { return db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported source dialect %q", e.cfg.Source.Dialect)
	}
}

// resumeStart returns the sliced-scan cursor a SnapshotExtractor for meta's
// table should start from: the last order_col value persisted for it, if
// any, so an interrupted snapshot resumes instead of rescanning from the
// top. A malformed persisted value is logged and ignored rather than
// failing the run, since a full rescan is always a safe fallback.
func (e *Engine) resumeStart(pos *position.Store, meta tablemeta.TbMeta) rowdata.ColValue {
	if !meta.HasOrderCol() {
		return rowdata.None()
	}
	raw, ok := pos.TableOrderValue(meta.Schema, meta.Table)
	if !ok {
		return rowdata.None()
	}
	kind := tablemeta.DefaultKindFor(meta.ColTypeMap[meta.OrderCol])
	v, err := rowdata.ParseColValue(kind, raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("table", meta.QualifiedName()).
			Msg("discarding malformed resume position, rescanning table from the start")
		return rowdata.None()
	}
	return v
}
