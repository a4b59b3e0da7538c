//go:build integration

package engine_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dtpipe/dtpipe/internal/config"
	"github.com/dtpipe/dtpipe/internal/engine"
	"github.com/dtpipe/dtpipe/internal/testutil"
)

func TestMain(m *testing.M) {
	rt := testutil.ContainerRuntime()
	if rt == "" {
		fmt.Fprintln(os.Stderr, "SKIP: no container runtime found (docker or podman)")
		os.Exit(0)
	}

	alreadyRunning := testutil.TryPing(testutil.SourceDSN()) && testutil.TryPing(testutil.DestDSN())
	if !alreadyRunning {
		fmt.Fprintf(os.Stderr, "starting test containers with %s...\n", rt)
		if err := testutil.RunCompose("up", "-d", "--wait"); err != nil {
			if err2 := testutil.RunCompose("up", "-d"); err2 != nil {
				fmt.Fprintf(os.Stderr, "compose up failed: %v\n", err2)
				os.Exit(1)
			}
		}
	}

	code := m.Run()

	if !alreadyRunning {
		_ = testutil.RunCompose("down", "-v")
	}
	os.Exit(code)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Source: config.DatabaseConfig{
			Dialect: config.DialectPostgres, Host: "localhost", Port: 55432,
			User: "postgres", Password: "source", DBName: "source",
		},
		Dest: config.DatabaseConfig{
			Dialect: config.DialectPostgres, Host: "localhost", Port: 55433,
			User: "postgres", Password: "dest", DBName: "dest",
		},
		Replication: config.ReplicationConfig{SlotName: "dtpipe_it_slot", Publication: "dtpipe_it_pub"},
		Snapshot:    config.SnapshotConfig{Workers: 2, SliceSize: 10, BatchSize: 5, ParallelSize: 2},
		PositionFile: t.TempDir() + "/pos",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// TestRunSnapshotCopiesRows exercises the full snapshot path against real
// Postgres containers: seed a source table, run the engine's snapshot, and
// assert the destination ends up with the same row count.
func TestRunSnapshotCopiesRows(t *testing.T) {
	cfg := testConfig(t)

	srcPool := testutil.MustConnectPool(t, cfg.Source.DSN())
	dstPool := testutil.MustConnectPool(t, cfg.Dest.DSN())

	testutil.CreateTestTable(t, srcPool, "public", "dt_it_items", 25)
	t.Cleanup(func() { testutil.DropTestTable(t, srcPool, "public", "dt_it_items") })
	t.Cleanup(func() { testutil.DropTestTable(t, dstPool, "public", "dt_it_items") })

	eng := engine.New(cfg, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, eng.RunSnapshot(ctx))
	require.Equal(t, int64(25), testutil.TableRowCount(t, dstPool, "public", "dt_it_items"))
}
