package spawn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/udisondev/spawnkeep/internal/model"
)

type stubStore struct {
	recs         map[string]Record
	loadErr      error
	saveAllErrs  []error // consumed per SaveAll call; nil = success
	saveAllCalls int
	deleted      []string
}

func newStubStore() *stubStore {
	return &stubStore{recs: make(map[string]Record)}
}

func (st *stubStore) LoadAll(context.Context) ([]Record, error) {
	if st.loadErr != nil {
		return nil, st.loadErr
	}
	out := make([]Record, 0, len(st.recs))
	for _, rec := range st.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (st *stubStore) Save(_ context.Context, rec Record) error {
	st.recs[rec.Key] = rec
	return nil
}

func (st *stubStore) SaveAll(_ context.Context, recs []Record) error {
	st.saveAllCalls++
	if len(st.saveAllErrs) > 0 {
		err := st.saveAllErrs[0]
		st.saveAllErrs = st.saveAllErrs[1:]
		if err != nil {
			return err
		}
	}
	st.recs = make(map[string]Record, len(recs))
	for _, rec := range recs {
		st.recs[rec.Key] = rec
	}
	return nil
}

func (st *stubStore) Delete(_ context.Context, key string) error {
	delete(st.recs, key)
	st.deleted = append(st.deleted, key)
	return nil
}

func newTestRegistry(env *testEnv, store Store) *Registry {
	return NewRegistry(testCodec(), store, env.deps(), DefaultConfig())
}

func TestRegistry_CreateAndLookup(t *testing.T) {
	env := newTestEnv()
	store := newStubStore()
	r := newTestRegistry(env, store)
	ctx := context.Background()

	s, err := r.Create(ctx, testPos, "zombie:1@false#2", Properties{Group: "crypts"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID() != "world_10_64_3" {
		t.Errorf("spawner id = %q, want world_10_64_3", s.ID())
	}

	if got, ok := r.Get("world_10_64_3"); !ok || got != s {
		t.Error("Get() by id did not return the created spawner")
	}
	if got, ok := r.GetAt(testPos); !ok || got != s {
		t.Error("GetAt() did not return the created spawner")
	}
	// Any location inside the block resolves to the same spawner.
	loc := model.NewLocation("world", 10.9, 64.2, 3.01)
	if got, ok := r.GetAtLocation(loc); !ok || got != s {
		t.Error("GetAtLocation() did not fall back to block coordinates")
	}

	if _, ok := store.recs[testPos.StoreKey()]; !ok {
		t.Error("Create() did not persist the record")
	}

	// Same block again is rejected.
	if _, err := r.Create(ctx, testPos, "zombie:1@false#1", Properties{}); !errors.Is(err, ErrSpawnerExists) {
		t.Errorf("duplicate Create() error = %v, want ErrSpawnerExists", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_CreateRejectsInvalidData(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())

	// One bad token rejects the whole request.
	_, err := r.Create(context.Background(), testPos, "zombie:1@false#2,dragon:1@false#1", Properties{})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Create() error = %v, want ErrInvalidEntry", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after rejected create, want 0", r.Count())
	}
}

func TestRegistry_Load(t *testing.T) {
	env := newTestEnv()
	store := newStubStore()
	store.recs["world,10,64,3"] = Record{
		Key:         "world,10,64,3",
		Data:        "zombie:2@false#3,skeleton:2@false#2",
		Visible:     true,
		DisplayMode: 1,
		Properties: RecordProperties{
			Group:      "crypts",
			TimeWindow: "night",
			Weather:    "storm",
			RadiusX:    2, RadiusY: 1, RadiusZ: 2,
			Capacity: 8,
		},
	}
	// Legacy record saved by an older build: no valid gating strings.
	store.recs["world,-5,70,8"] = Record{
		Key:  "world,-5,70,8",
		Data: "witch:3@false#1",
	}
	// Broken key: skipped entirely.
	store.recs["world,ten,64,3"] = Record{Key: "world,ten,64,3", Data: "zombie:1@false#1"}
	// One bad token: valid remainder survives.
	store.recs["world,0,64,0"] = Record{
		Key:  "world,0,64,0",
		Data: "zombie:1@false#2,dragon:9@false#1",
	}

	r := newTestRegistry(env, store)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if r.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", r.Count())
	}

	s, ok := r.GetAt(model.NewBlockPos("world", 10, 64, 3))
	if !ok {
		t.Fatal("loaded spawner not found by position")
	}
	props := s.Props()
	if props.Group != "crypts" {
		t.Errorf("Group = %q, want crypts", props.Group)
	}
	if props.TimeWindow != model.TimeNight {
		t.Errorf("TimeWindow = %v, want night", props.TimeWindow)
	}
	if props.Weather == nil || *props.Weather != model.WeatherStorm {
		t.Errorf("Weather = %v, want storm", props.Weather)
	}
	if props.Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", props.Capacity)
	}
	if s.DisplayMode() != model.DisplayCounts {
		t.Errorf("DisplayMode = %v, want counts", s.DisplayMode())
	}
	if got := len(s.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}

	partial, ok := r.GetAt(model.NewBlockPos("world", 0, 64, 0))
	if !ok {
		t.Fatal("record with one bad token was dropped entirely")
	}
	if got := len(partial.Entries()); got != 1 {
		t.Errorf("partial record entries = %d, want 1", got)
	}

	if got := r.ByGroup("crypts"); len(got) != 1 {
		t.Errorf("ByGroup(crypts) = %d spawners, want 1", len(got))
	}
}

func TestRegistry_LoadStoreFailure(t *testing.T) {
	env := newTestEnv()
	store := newStubStore()
	store.loadErr = errors.New("disk gone")

	r := newTestRegistry(env, store)
	if err := r.Load(context.Background()); err == nil {
		t.Fatal("Load() expected error, got nil")
	}
}

func TestRegistry_RecordsRoundTrip(t *testing.T) {
	env := newTestEnv()
	store := newStubStore()
	r := newTestRegistry(env, store)
	ctx := context.Background()

	storm := model.WeatherStorm
	s, err := r.Create(ctx, testPos, "skeleton:3@false#2,zombie:3@true#1", Properties{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s.SetGroup("crypts")
	s.SetDisplayName("East Crypt")
	s.SetTimeWindow(model.TimeNight)
	s.SetWeather(&storm)
	s.SetJitterRadius(2, 1, 2)
	s.SetCapacityOverride(7)
	s.SetDisplayMode(model.DisplayFull)
	s.SetVisible(false)

	if err := r.PersistAll(ctx); err != nil {
		t.Fatalf("PersistAll() error = %v", err)
	}

	// A fresh registry restored from the same store matches.
	r2 := newTestRegistry(newTestEnv(), store)
	if err := r2.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s2, ok := r2.GetAt(testPos)
	if !ok {
		t.Fatal("restored spawner not found")
	}

	if got, want := testCodec().Format(s2.Entries()), testCodec().Format(s.Entries()); got != want {
		t.Errorf("restored entries = %q, want %q", got, want)
	}
	p1, p2 := s.Props(), s2.Props()
	if p2.Group != p1.Group || p2.DisplayName != p1.DisplayName {
		t.Errorf("restored group/name = %q/%q, want %q/%q", p2.Group, p2.DisplayName, p1.Group, p1.DisplayName)
	}
	if p2.TimeWindow != p1.TimeWindow {
		t.Errorf("restored TimeWindow = %v, want %v", p2.TimeWindow, p1.TimeWindow)
	}
	if p2.Weather == nil || *p2.Weather != *p1.Weather {
		t.Errorf("restored Weather = %v, want %v", p2.Weather, p1.Weather)
	}
	if p2.RadiusX != 2 || p2.RadiusY != 1 || p2.RadiusZ != 2 {
		t.Errorf("restored radii = %v/%v/%v, want 2/1/2", p2.RadiusX, p2.RadiusY, p2.RadiusZ)
	}
	if p2.Capacity != 7 {
		t.Errorf("restored Capacity = %d, want 7", p2.Capacity)
	}
	if s2.Visible() != false {
		t.Error("restored Visible = true, want false")
	}
	if s2.DisplayMode() != model.DisplayFull {
		t.Errorf("restored DisplayMode = %v, want full", s2.DisplayMode())
	}
}

func TestRegistry_NotifyUnitRemoved(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	s, err := r.Create(ctx, testPos, "zombie:1@false#2", Properties{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r.tick(ctx, baseTime)
	if s.LiveCount() != 2 {
		t.Fatalf("LiveCount() = %d, want 2", s.LiveCount())
	}

	id := anyLiveUnit(t, env.factory)
	env.factory.Remove(id)
	if !r.NotifyUnitRemoved(id, baseTime) {
		t.Fatal("NotifyUnitRemoved() = false for tracked unit")
	}
	if s.LiveCount() != 1 || s.PendingCount() != 1 {
		t.Errorf("after notify: live %d pending %d, want 1/1", s.LiveCount(), s.PendingCount())
	}

	if r.NotifyUnitRemoved(model.UnitID(4242), baseTime) {
		t.Error("NotifyUnitRemoved() = true for unknown unit")
	}
	if r.NotifyUnitRemoved(id, baseTime) {
		t.Error("NotifyUnitRemoved() = true for already-removed unit")
	}
}

func TestRegistry_TickGuardsFillWhilePending(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	s, err := r.Create(ctx, testPos, "zombie:1@false#2", Properties{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r.tick(ctx, baseTime)

	id := anyLiveUnit(t, env.factory)
	env.factory.Remove(id)
	r.NotifyUnitRemoved(id, baseTime)

	// Raise the desired count while a respawn is outstanding. The fill
	// path must wait for the respawn queue to drain.
	entries, err := testCodec().Parse("zombie:1@false#3")
	if err != nil {
		t.Fatalf("parsing entries: %v", err)
	}
	s.SetEntries(entries)

	r.tick(ctx, baseTime.Add(time.Second))
	if s.LiveCount() != 1 {
		t.Fatalf("fill ran while respawn pending: live = %d, want 1", s.LiveCount())
	}

	// Once the respawn fires the queue drains; the next tick tops up.
	ready := baseTime.Add(env.delays.delay)
	r.tick(ctx, ready)
	if s.LiveCount() != 2 || s.PendingCount() != 0 {
		t.Fatalf("after respawn tick: live %d pending %d, want 2/0", s.LiveCount(), s.PendingCount())
	}
	r.tick(ctx, ready.Add(time.Second))
	if s.LiveCount() != 3 {
		t.Errorf("after fill tick: live = %d, want 3", s.LiveCount())
	}
}

func TestRegistry_TickIsolatesFailures(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	if _, err := r.Create(ctx, model.NewBlockPos("world", 0, 64, 0), "zombie:1@false#1", Properties{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := r.Create(ctx, model.NewBlockPos("world", 50, 64, 0), "skeleton:1@false#1", Properties{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Every factory call fails this tick; both spawners must still be
	// attempted and the tick must not panic.
	env.factory.failAfter = 0
	r.tick(ctx, baseTime)

	env.factory.failAfter = -1
	r.tick(ctx, baseTime.Add(time.Second))

	total := 0
	for _, s := range r.All() {
		total += s.LiveCount()
	}
	if total != 2 {
		t.Errorf("live units after recovery = %d, want 2", total)
	}
}

func TestRegistry_Remove(t *testing.T) {
	env := newTestEnv()
	store := newStubStore()
	r := newTestRegistry(env, store)
	ctx := context.Background()

	s, err := r.Create(ctx, testPos, "zombie:1@false#2", Properties{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r.tick(ctx, baseTime)
	if s.LiveCount() != 2 {
		t.Fatalf("LiveCount() = %d, want 2", s.LiveCount())
	}

	if err := r.Remove(ctx, testPos); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, ok := r.GetAt(testPos); ok {
		t.Error("spawner still registered after Remove()")
	}
	if len(env.factory.live) != 0 {
		t.Errorf("Remove() left %d live units", len(env.factory.live))
	}
	if len(store.deleted) != 1 || store.deleted[0] != testPos.StoreKey() {
		t.Errorf("store.Delete calls = %v, want [%s]", store.deleted, testPos.StoreKey())
	}

	if err := r.Remove(ctx, testPos); !errors.Is(err, ErrSpawnerNotFound) {
		t.Errorf("second Remove() error = %v, want ErrSpawnerNotFound", err)
	}
}

func TestRegistry_Groups(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	mk := func(x int, group string) *Spawner {
		t.Helper()
		s, err := r.Create(ctx, model.NewBlockPos("world", x, 64, 0), "zombie:1@false#1", Properties{Group: group})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return s
	}
	mk(0, "crypts")
	mk(16, "crypts")
	moved := mk(32, "camps")

	if got := len(r.ByGroup("crypts")); got != 2 {
		t.Errorf("ByGroup(crypts) = %d, want 2", got)
	}
	if got := len(r.ByGroup("camps")); got != 1 {
		t.Errorf("ByGroup(camps) = %d, want 1", got)
	}

	// The index is derived: changing a spawner's group shows up after a
	// rebuild, not before.
	moved.SetGroup("crypts")
	if got := len(r.ByGroup("crypts")); got != 2 {
		t.Errorf("ByGroup(crypts) before rebuild = %d, want 2", got)
	}
	r.RebuildGroups()
	if got := len(r.ByGroup("crypts")); got != 3 {
		t.Errorf("ByGroup(crypts) after rebuild = %d, want 3", got)
	}
	if got := len(r.ByGroup("camps")); got != 0 {
		t.Errorf("ByGroup(camps) after rebuild = %d, want 0", got)
	}

	want := []string{"crypts"}
	if got := r.Groups(); len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Groups() = %v, want %v", got, want)
	}
}

func TestRegistry_Near(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	near, err := r.Create(ctx, model.NewBlockPos("world", 0, 64, 0), "zombie:1@false#1", Properties{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := r.Create(ctx, model.NewBlockPos("world", 100, 64, 0), "zombie:1@false#1", Properties{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := r.Create(ctx, model.NewBlockPos("nether", 0, 64, 0), "zombie:1@false#1", Properties{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got := r.Near(model.NewLocation("world", 2, 64, 2), 10)
	if len(got) != 1 || got[0] != near {
		t.Errorf("Near() = %d spawners, want just the close one", len(got))
	}
	if got := r.Near(model.NewLocation("world", 0, 64, 0), 500); len(got) != 2 {
		t.Errorf("Near() with wide radius = %d, want 2 (other world excluded)", len(got))
	}
}

func TestRegistry_PersistAllRetries(t *testing.T) {
	env := newTestEnv()
	store := newStubStore()
	r := newTestRegistry(env, store)
	ctx := context.Background()

	if _, err := r.Create(ctx, testPos, "zombie:1@false#1", Properties{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	store.saveAllCalls = 0
	store.saveAllErrs = []error{errors.New("disk full"), nil}
	if err := r.PersistAll(ctx); err != nil {
		t.Errorf("PersistAll() with one failure = %v, want nil after retry", err)
	}
	if store.saveAllCalls != 2 {
		t.Errorf("SaveAll calls = %d, want 2", store.saveAllCalls)
	}

	store.saveAllCalls = 0
	store.saveAllErrs = []error{errors.New("disk full"), errors.New("disk full")}
	if err := r.PersistAll(ctx); err == nil {
		t.Error("PersistAll() with persistent failure = nil, want error")
	}
	if store.saveAllCalls != 2 {
		t.Errorf("SaveAll calls = %d, want 2 (no unbounded retry)", store.saveAllCalls)
	}
}

func TestRegistry_CreateFromTemplate(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	s, err := r.CreateFromTemplate(ctx, testPos, "graveyard")
	if err != nil {
		t.Fatalf("CreateFromTemplate() error = %v", err)
	}
	if len(s.Entries()) == 0 {
		t.Error("template spawner has no entries")
	}
	if s.Props().DisplayName != "graveyard" {
		t.Errorf("template display name = %q, want graveyard", s.Props().DisplayName)
	}

	if _, err := r.CreateFromTemplate(ctx, model.NewBlockPos("world", 99, 64, 99), "bogus"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("unknown template error = %v, want ErrUnknownTemplate", err)
	}
}

// Every bundled template must parse strictly against the default catalog.
func TestTemplates_AllValid(t *testing.T) {
	c := testCodec()
	names := TemplateNames()
	if len(names) == 0 {
		t.Fatal("no templates defined")
	}
	for _, name := range names {
		data, ok := TemplateData(name)
		if !ok {
			t.Fatalf("TemplateData(%q) missing", name)
		}
		entries, err := c.ParseStrict(data)
		if err != nil {
			t.Errorf("template %q does not parse: %v", name, err)
		}
		if model.DesiredTotal(entries) == 0 {
			t.Errorf("template %q has zero desired units", name)
		}
	}
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv()
	cfg := Config{TickInterval: 5 * time.Millisecond}
	r := NewRegistry(testCodec(), newStubStore(), env.deps(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestRegistry_SweepReportsThroughSpawners(t *testing.T) {
	env := newTestEnv()
	r := newTestRegistry(env, newStubStore())
	ctx := context.Background()

	s, err := r.Create(ctx, testPos, "zombie:1@false#2", Properties{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r.tick(ctx, baseTime)

	// One unit silently despawns in the world.
	id := anyLiveUnit(t, env.factory)
	env.factory.Remove(id)

	r.sweepStale()
	if s.LiveCount() != 1 {
		t.Errorf("LiveCount() after sweep = %d, want 1", s.LiveCount())
	}
	// The swept unit is no longer routable.
	if r.NotifyUnitRemoved(id, baseTime) {
		t.Error("swept unit still routed to a spawner")
	}
}
