package integration

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/spawnkeep/internal/catalog"
	"github.com/udisondev/spawnkeep/internal/difficulty"
	"github.com/udisondev/spawnkeep/internal/display"
	"github.com/udisondev/spawnkeep/internal/spawn"
	"github.com/udisondev/spawnkeep/internal/world"
)

// schemaCounter provides unique schema names for parallel suites.
var schemaCounter atomic.Uint32

// acquireSchema creates an isolated PostgreSQL schema and returns a DSN with
// search_path pointing at it. The schema is dropped via t.Cleanup.
func acquireSchema(t testing.TB) string {
	t.Helper()
	ctx := context.Background()

	schemaName := fmt.Sprintf("test_%d", schemaCounter.Add(1))

	conn, err := pgx.Connect(ctx, sharedPGBaseDSN)
	if err != nil {
		t.Fatalf("connect to shared postgres: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE SCHEMA "+schemaName); err != nil {
		t.Fatalf("create schema %s: %v", schemaName, err)
	}

	t.Cleanup(func() {
		cleanCtx := context.Background()
		cleanConn, err := pgx.Connect(cleanCtx, sharedPGBaseDSN)
		if err != nil {
			t.Logf("cleanup: connect failed: %v", err)
			return
		}
		defer cleanConn.Close(cleanCtx)
		if _, err := cleanConn.Exec(cleanCtx, "DROP SCHEMA "+schemaName+" CASCADE"); err != nil {
			t.Logf("cleanup: drop schema %s: %v", schemaName, err)
		}
	})

	// Append search_path to DSN
	sep := "&"
	if !strings.Contains(sharedPGBaseDSN, "?") {
		sep = "?"
	}
	return sharedPGBaseDSN + sep + "search_path=" + schemaName
}

// keeperEnv is a registry with real in-process collaborators on top of a
// persistent store. The world starts with loaded regions and no observers.
type keeperEnv struct {
	reg     *spawn.Registry
	codec   *spawn.Codec
	world   *world.World
	factory *world.Factory
}

func newKeeperEnv(store spawn.Store) keeperEnv {
	w := world.New("world")
	factory := world.NewFactory(w)
	codec := spawn.NewCodec(catalog.Default(), 20)
	reg := spawn.NewRegistry(codec, store, spawn.Deps{
		Factory: factory,
		World:   w,
		// The global cooldown compares against the wall clock; a
		// nanosecond keeps it out of the way.
		Delays:                 difficulty.New(time.Nanosecond),
		Display:                display.Noop{},
		DefaultCapacity:        10,
		DefaultDetectionRadius: 16,
	}, spawn.DefaultConfig())
	return keeperEnv{reg: reg, codec: codec, world: w, factory: factory}
}

// makeRecords builds n records with distinct keys.
func makeRecords(n int) []spawn.Record {
	recs := make([]spawn.Record, 0, n)
	for i := range n {
		recs = append(recs, testRecord(fmt.Sprintf("world,%d,64,0", i), "skeleton:3@false#5"))
	}
	return recs
}

// testRecord builds a fully populated snapshot record.
func testRecord(key, data string) spawn.Record {
	return spawn.Record{
		Key:         key,
		Data:        data,
		Visible:     true,
		DisplayMode: 1,
		Properties: spawn.RecordProperties{
			Group:           "undead",
			DisplayName:     "Dark Crypt",
			TimeWindow:      "night",
			Weather:         "storm",
			RadiusX:         4,
			RadiusY:         1,
			RadiusZ:         4,
			Capacity:        12,
			DetectionRadius: 24.5,
		},
	}
}
